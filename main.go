package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/proctorlive/backend/internal/admin"
	"github.com/proctorlive/backend/internal/audit"
	"github.com/proctorlive/backend/internal/auth"
	"github.com/proctorlive/backend/internal/config"
	"github.com/proctorlive/backend/internal/gateway"
	"github.com/proctorlive/backend/internal/presence"
	"github.com/proctorlive/backend/internal/proctor"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pres := presence.NewTracker(redisClient, cfg.PresenceTTL, log)

	publisher := audit.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	defer publisher.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret)
	registry := proctor.NewRegistry()
	tracker := proctor.NewTracker(registry)
	router := gateway.NewRouter(log)
	ctrl := proctor.NewController(registry, tracker, router, publisher, pres, log)
	server := gateway.NewServer(verifier, router, ctrl, pres, cfg.AllowedOrigins, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go ctrl.RunSweeper(sweepCtx, cfg.SweepInterval, cfg.StaleAfter)

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Get("/ws", server.ServeWS)
	mux.Mount("/api", admin.NewHandler(verifier, ctrl, log).Routes())

	log.Info("proctoring coordinator listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Error("listen failed", "err", err)
		os.Exit(1)
	}
}
