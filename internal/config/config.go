package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret   string
	AutoApprove bool // new partners skip manual verification

	LogLevel  string
	LogFormat string // text/json

	NATSURL       string
	OffersSubject string
	EventsSubject string

	HistoryBuffer int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		AutoApprove:          getenv("AUTO_APPROVE_PARTNERS", "false") == "true",
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "text"),
		NATSURL:              getenv("NATS_URL", ""),
		OffersSubject:        getenv("OFFERS_SUBJECT", "jobs.offers"),
		EventsSubject:        getenv("EVENTS_SUBJECT", "jobs.events"),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	buf, err := strconv.Atoi(getenv("HISTORY_BUFFER", "256"))
	if err != nil || buf <= 0 {
		return Config{}, fmt.Errorf("invalid HISTORY_BUFFER: %q", os.Getenv("HISTORY_BUFFER"))
	}
	cfg.HistoryBuffer = buf

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
