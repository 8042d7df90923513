package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"partnerd/internal/assign"
	"partnerd/internal/auth"
)

// EventsHandler streams a partner's committed transitions as server-sent
// events.
type EventsHandler struct {
	Stores    *assign.Registry
	Log       logrus.FieldLogger
	KeepAlive time.Duration
	Buffer    int // events held for a slow client before dropping
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	pid := auth.PartnerIDFromContext(r.Context())
	buffer := h.Buffer
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan assign.Event, buffer)
	// the callback runs inside the store's delivery step: never block it
	unsubscribe := h.Stores.Store(pid).Subscribe(func(ev assign.Event) {
		select {
		case ch <- ev:
		default:
			h.Log.WithField("partner_id", pid).Warn("event stream lagging, event dropped")
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-ch:
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
			flusher.Flush()
		}
	}
}
