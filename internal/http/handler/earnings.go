package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"partnerd/internal/auth"
	"partnerd/internal/history"
)

type HistoryReader interface {
	List(ctx context.Context, partnerID string, limit int) ([]history.Record, error)
	Earnings(ctx context.Context, partnerID string, since time.Time) (history.Earnings, error)
}

type EarningsHandler struct {
	Repo HistoryReader
	Now  func() time.Time
}

type recordDTO struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Earnings    int64      `json:"earnings"`
	Service     string     `json:"service"`
	Customer    string     `json:"customer"`
	Location    string     `json:"location"`
	Trail       []string   `json:"trail"`
	AcceptedAt  *time.Time `json:"accepted_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

func (h *EarningsHandler) History(w http.ResponseWriter, r *http.Request) {
	pid := auth.PartnerIDFromContext(r.Context())

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := h.Repo.List(r.Context(), pid, limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]recordDTO, 0, len(rows))
	for _, rec := range rows {
		out = append(out, recordDTO{
			JobID:       rec.JobID,
			Kind:        rec.Kind,
			Status:      rec.Status,
			Earnings:    rec.Earnings,
			Service:     rec.Service,
			Customer:    rec.Customer,
			Location:    rec.Location,
			Trail:       []string(rec.Trail),
			AcceptedAt:  rec.AcceptedAt,
			CompletedAt: rec.CompletedAt,
			CancelledAt: rec.CancelledAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Earnings reports completed-job totals for the last N days (default 7).
func (h *EarningsHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	pid := auth.PartnerIDFromContext(r.Context())

	days := 7
	if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			badRequest(w, "days must be between 1 and 365")
			return
		}
		days = n
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	y, m, d := now().UTC().Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	out, err := h.Repo.Earnings(r.Context(), pid, since)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if out.Days == nil {
		out.Days = []history.DayTotal{}
	}
	writeJSON(w, http.StatusOK, out)
}
