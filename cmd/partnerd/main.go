package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partnerd/internal/assign"
	"partnerd/internal/auth"
	"partnerd/internal/bus"
	"partnerd/internal/config"
	"partnerd/internal/db"
	"partnerd/internal/duty"
	"partnerd/internal/history"
	httpx "partnerd/internal/http"
	"partnerd/internal/logging"
	"partnerd/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.WithError(err).Fatal("db migrate")
	}

	stores := assign.NewRegistry(assign.RealClock(), log)
	defer stores.Close()
	roster := duty.NewRoster()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// history writer
	historyRepo := &history.Repo{DB: gdb}
	writer := history.NewWriter(historyRepo, log, cfg.HistoryBuffer)
	stores.Subscribe(writer.Handle)
	writerDone := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(writerDone)
	}()

	if cfg.NATSURL != "" {
		bc, err := bus.Connect(cfg.NATSURL, log)
		if err != nil {
			log.WithError(err).Fatal("nats connect")
		}
		defer bc.Close()

		dispatch := &bus.Dispatch{
			Stores:        stores,
			Duty:          roster,
			Pub:           bc,
			EventsSubject: cfg.EventsSubject,
			Log:           log,
		}
		stores.Subscribe(dispatch.Publish)
		if _, err := bc.SubscribeJSON(cfg.OffersSubject, dispatch.HandleOffer); err != nil {
			log.WithError(err).Fatal("nats subscribe")
		}
		log.WithField("subject", cfg.OffersSubject).Info("listening for job offers")
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:      gdb,
		JWT:     auth.NewJWT(cfg.JWTSecret),
		Stores:  stores,
		Duty:    roster,
		History: historyRepo,
		Wallet:  &wallet.Repo{DB: gdb},
		Log:     log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()

	// flush terminal jobs still queued for persistence
	<-writerDone
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if left := writer.Drain(drainCtx); left > 0 {
		log.WithField("records", left).Error("history records lost at shutdown")
	}
}
