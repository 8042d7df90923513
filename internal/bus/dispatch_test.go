package bus

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"partnerd/internal/assign"
	"partnerd/internal/duty"
)

type recordingPub struct {
	subjects []string
	values   []any
	err      error
}

func (p *recordingPub) PublishJSON(subject string, v any) error {
	p.subjects = append(p.subjects, subject)
	p.values = append(p.values, v)
	return p.err
}

func newDispatch(pub Publisher) *Dispatch {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Dispatch{
		Stores:        assign.NewRegistry(nil, log),
		Pub:           pub,
		EventsSubject: "jobs.events",
		Log:           log,
	}
}

func TestHandleOfferFillsPartnerSlot(t *testing.T) {
	d := newDispatch(&recordingPub{})
	defer d.Stores.Close()

	d.HandleOffer(context.Background(), []byte(`{"partner_id":"p1","job":{"id":"j1","kind":"instant","earnings":450}}`))

	job, ok := d.Stores.Store("p1").Pending()
	if !ok || job.ID != "j1" || job.Earnings != 450 {
		t.Fatalf("pending = %+v %v", job, ok)
	}
	if _, ok := d.Stores.Store("p2").Pending(); ok {
		t.Fatal("offer leaked to another partner")
	}
}

func TestHandleOfferIgnoresBadPayloads(t *testing.T) {
	d := newDispatch(&recordingPub{})
	defer d.Stores.Close()

	d.HandleOffer(context.Background(), []byte(`not json`))
	d.HandleOffer(context.Background(), []byte(`{"job":{"kind":"instant"}}`))
	d.HandleOffer(context.Background(), []byte(`{"partner_id":"p1","job":{"kind":"bogus"}}`))

	if _, ok := d.Stores.Store("p1").Pending(); ok {
		t.Fatal("invalid offer was accepted")
	}
}

func TestPublishSkipsTracking(t *testing.T) {
	pub := &recordingPub{err: errors.New("disconnected")}
	d := newDispatch(pub)
	defer d.Stores.Close()

	d.Publish(assign.Event{Type: assign.EventTracking})
	d.Publish(assign.Event{Type: assign.EventAccepted, PartnerID: "p1"})

	if len(pub.subjects) != 1 || pub.subjects[0] != "jobs.events" {
		t.Fatalf("published to %v", pub.subjects)
	}
}

func TestHandleOfferSkipsOffDutyPartner(t *testing.T) {
	d := newDispatch(&recordingPub{})
	defer d.Stores.Close()
	d.Duty = duty.NewRoster()

	payload := []byte(`{"partner_id":"p1","job":{"kind":"instant"}}`)
	d.HandleOffer(context.Background(), payload)
	if _, ok := d.Stores.Store("p1").Pending(); ok {
		t.Fatal("off-duty partner received an offer")
	}

	_ = d.Duty.Set("p1", true, nil)
	d.HandleOffer(context.Background(), payload)
	if _, ok := d.Stores.Store("p1").Pending(); !ok {
		t.Fatal("on-duty partner did not receive the offer")
	}
}
