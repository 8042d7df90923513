package http

import (
	"net/http"

	"partnerd/internal/assign"
	"partnerd/internal/auth"
	"partnerd/internal/config"
	"partnerd/internal/duty"
	"partnerd/internal/http/handler"
	mw "partnerd/internal/http/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Deps struct {
	DB      *gorm.DB
	JWT     *auth.JWT
	Stores  *assign.Registry
	Duty    *duty.Roster
	History handler.HistoryReader
	Wallet  handler.WalletStore
	Log     logrus.FieldLogger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(d.Log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, AutoApprove: cfg.AutoApprove}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(d.JWT)).Get("/me", me.Me)

	jobsH := &handler.JobHandler{Stores: d.Stores, Duty: d.Duty}
	dutyH := &handler.DutyHandler{Stores: d.Stores, Roster: d.Duty}
	eventsH := &handler.EventsHandler{Stores: d.Stores, Log: d.Log}
	earnH := &handler.EarningsHandler{Repo: d.History}
	walletH := &handler.WalletHandler{Repo: d.Wallet}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))
		r.Use(auth.RequireApproved)

		r.Get("/duty", dutyH.Get)
		r.Put("/duty", dutyH.Set)

		r.Get("/earnings", earnH.Earnings)
		r.Get("/history", earnH.History)

		r.Get("/wallet", walletH.Get)
		r.Post("/wallet/withdrawals", walletH.Withdraw)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/offers", jobsH.Offer)
			r.Post("/offers/simulate", jobsH.Simulate)
			r.Get("/offers/pending", jobsH.Pending)
			r.Post("/offers/accept", jobsH.Accept)
			r.Post("/offers/reject", jobsH.Reject)

			r.Post("/availability", jobsH.Availability)
			r.Get("/assignments", jobsH.Assignments)
			r.Get("/active", jobsH.Active)
			r.Get("/history", jobsH.History)
			r.Get("/tracking", jobsH.Tracking)
			r.Get("/events", eventsH.Stream)

			r.Post("/{id}/cancel", jobsH.Cancel)
			r.Post("/{id}/status", jobsH.UpdateStatus)
			r.Post("/{id}/trip", jobsH.StartTrip)
		})
	})

	return r
}
