package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"partnerd/internal/assign"
	"partnerd/internal/duty"
)

// OfferMessage is what the dispatch side publishes to offer a job to one
// partner.
type OfferMessage struct {
	PartnerID string     `json:"partner_id"`
	Job       assign.Job `json:"job"`
}

type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Dispatch bridges the message bus and the partner stores: inbound offers
// go into the addressed partner's store and committed transitions go back
// out on the events subject.
type Dispatch struct {
	Stores        *assign.Registry
	Duty          *duty.Roster // nil means every partner is reachable
	Pub           Publisher
	EventsSubject string
	Log           logrus.FieldLogger
}

// HandleOffer decodes one offer message and places it in the partner's
// pending slot.
func (d *Dispatch) HandleOffer(_ context.Context, data []byte) {
	var msg OfferMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.Log.WithError(err).Warn("bad offer payload")
		return
	}
	if msg.PartnerID == "" {
		d.Log.Warn("offer without partner_id")
		return
	}

	log := d.Log.WithFields(logrus.Fields{"partner_id": msg.PartnerID, "job_id": msg.Job.ID})
	if d.Duty != nil && !d.Duty.Online(msg.PartnerID) {
		log.Info("offer skipped: partner off duty")
		return
	}
	err := d.Stores.Store(msg.PartnerID).Offer(msg.Job)
	switch {
	case err == nil:
	case errors.Is(err, assign.ErrOffDuty):
		log.Info("offer skipped: partner off duty")
	case errors.Is(err, assign.ErrAlreadyPending):
		log.Info("offer skipped: partner already has a pending request")
	default:
		log.WithError(err).Warn("offer rejected")
	}
}

// Publish is an assign event subscriber. Tracking ticks are not published.
func (d *Dispatch) Publish(ev assign.Event) {
	if ev.Type == assign.EventTracking {
		return
	}
	if err := d.Pub.PublishJSON(d.EventsSubject, ev); err != nil {
		d.Log.WithError(err).WithFields(logrus.Fields{
			"partner_id": ev.PartnerID,
			"job_id":     ev.Job.ID,
			"event":      ev.Type,
		}).Warn("publish event failed")
	}
}
