package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"partnerd/internal/assign"
	"partnerd/internal/auth"
	"partnerd/internal/duty"
)

type JobHandler struct {
	Stores *assign.Registry
	Duty   *duty.Roster
	Now    func() time.Time
}

type coordsReq struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type offerReq struct {
	ID             string    `json:"id" validate:"omitempty,max=64"`
	Kind           string    `json:"kind" validate:"required,oneof=instant scheduled"`
	ScheduledAt    *string   `json:"scheduled_at" validate:"required_if=Kind scheduled"` // RFC3339
	Earnings       int64     `json:"earnings" validate:"gte=0"`
	Service        string    `json:"service" validate:"max=200"`
	Customer       string    `json:"customer" validate:"max=200"`
	Location       string    `json:"location" validate:"max=500"`
	CustomerCoords coordsReq `json:"customer_coords"`
	PartnerCoords  coordsReq `json:"partner_coords"`
	DistanceKm     float64   `json:"distance_km" validate:"gte=0"`
	ETAMinutes     int       `json:"eta_minutes" validate:"gte=0"`
}

func (req offerReq) job() (assign.Job, error) {
	j := assign.Job{
		ID:       strings.TrimSpace(req.ID),
		Kind:     assign.Kind(req.Kind),
		Earnings: req.Earnings,
		Details: assign.Details{
			Service:        req.Service,
			Customer:       req.Customer,
			Location:       req.Location,
			CustomerCoords: assign.Coords(req.CustomerCoords),
			PartnerCoords:  assign.Coords(req.PartnerCoords),
			DistanceKm:     req.DistanceKm,
			ETAMinutes:     req.ETAMinutes,
		},
	}
	if req.ScheduledAt != nil && strings.TrimSpace(*req.ScheduledAt) != "" {
		t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			return assign.Job{}, err
		}
		j.ScheduledAt = &t
	}
	return j, nil
}

func (h *JobHandler) store(r *http.Request) *assign.Store {
	return h.Stores.Store(auth.PartnerIDFromContext(r.Context()))
}

func (h *JobHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *JobHandler) onDuty(r *http.Request) bool {
	return h.Duty == nil || h.Duty.Online(auth.PartnerIDFromContext(r.Context()))
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

func (h *JobHandler) Offer(w http.ResponseWriter, r *http.Request) {
	var req offerReq
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	job, err := req.job()
	if err != nil {
		badRequest(w, "invalid scheduled_at (RFC3339)")
		return
	}
	h.offer(w, r, job)
}

// Simulate offers a canned job, standing in for the dispatch side.
func (h *JobHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	kind := assign.Kind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	if kind == "" {
		kind = assign.KindInstant
	}
	if kind != assign.KindInstant && kind != assign.KindScheduled {
		badRequest(w, "kind must be instant or scheduled")
		return
	}
	h.offer(w, r, sampleOffer(kind, h.now()))
}

func (h *JobHandler) offer(w http.ResponseWriter, r *http.Request, job assign.Job) {
	if !h.onDuty(r) {
		writeError(w, assign.ErrOffDuty)
		return
	}
	s := h.store(r)
	if err := s.Offer(job); err != nil {
		writeError(w, err)
		return
	}
	pending, _ := s.Pending()
	writeJSON(w, http.StatusCreated, pendingDTO{Job: pending, SecondsRemaining: seconds(s.OfferRemaining())})
}

type pendingDTO struct {
	Job              assign.Job `json:"job"`
	SecondsRemaining int        `json:"seconds_remaining"`
}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func (h *JobHandler) Pending(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	job, ok := s.Pending()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, pendingDTO{Job: job, SecondsRemaining: seconds(s.OfferRemaining())})
}

func (h *JobHandler) Accept(w http.ResponseWriter, r *http.Request) {
	job, err := h.store(r).Accept()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.store(r).Reject()
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) Availability(w http.ResponseWriter, r *http.Request) {
	var req offerReq
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	job, err := req.job()
	if err != nil {
		badRequest(w, "invalid scheduled_at (RFC3339)")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": h.store(r).CheckAvailability(job),
	})
}

func (h *JobHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store(r).Assignments())
}

func (h *JobHandler) Active(w http.ResponseWriter, r *http.Request) {
	job, ok := h.store(r).ActiveJob()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store(r).History())
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.store(r).Cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	next := assign.Status(strings.TrimSpace(strings.ToLower(req.Status)))
	if !next.Valid() {
		badRequest(w, "unknown status")
		return
	}
	if err := h.store(r).Advance(chi.URLParam(r, "id"), next); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.store(r).StartTrip(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.store(r).Tracking()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func sampleOffer(kind assign.Kind, now time.Time) assign.Job {
	j := assign.Job{
		Kind: kind,
		Details: assign.Details{
			Location:       "Sector 45, Gurgaon",
			CustomerCoords: assign.Coords{Latitude: 28.4595, Longitude: 77.0266},
			PartnerCoords:  assign.Coords{Latitude: 28.4495, Longitude: 77.0166},
			DistanceKm:     2.5,
			ETAMinutes:     12,
		},
	}
	if kind == assign.KindInstant {
		j.Earnings = 450
		j.Details.Service = "Emergency Pipe Fix"
		j.Details.Customer = "Rahul Kumar"
		return j
	}
	at := now.Add(2 * time.Hour)
	j.ScheduledAt = &at
	j.Earnings = 800
	j.Details.Service = "Scheduled Maintenance"
	j.Details.Customer = "Sita Sharma"
	return j
}
