package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/speakfree/reporting/internal/convstore"
	"github.com/speakfree/reporting/internal/db"
	"github.com/speakfree/reporting/internal/dialogue"
	"github.com/speakfree/reporting/internal/directory"
	"github.com/speakfree/reporting/internal/history"
	"github.com/speakfree/reporting/internal/httpapi"
	"github.com/speakfree/reporting/internal/intake"
	"github.com/speakfree/reporting/internal/messaging"
	"github.com/speakfree/reporting/internal/moderation"
	"github.com/speakfree/reporting/internal/ratelimit"
	"github.com/speakfree/reporting/internal/trust"
)

func main() {
	log.Println("Starting SpeakFree intake service...")

	httpAddr := envOr("HTTP_ADDR", ":8080")
	databaseURL := envOr("DATABASE_URL", "postgres://localhost:5432/speakfree?sslmode=disable")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")

	// Database setup.
	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Redis setup: conversation contexts and rate limiting share the
	// same instance.
	contexts, err := convstore.NewRedisStore(redisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer contexts.Close()

	limiter := ratelimit.NewLimiter(redis.NewClient(&redis.Options{Addr: redisAddr}))

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "speakfree-intake"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Wire the intake flow.
	dir := directory.NewStore(conn)
	gate := moderation.NewGate()
	finalizer := intake.NewFinalizer(conn, dir)
	machine := dialogue.NewMachine(dir, finalizer)
	service := intake.NewService(machine, contexts, intake.NewConvStore(conn),
		finalizer, limiter, natsClient)

	hist := history.NewStore(conn)
	api := httpapi.NewServer(service, gate, moderation.NewStore(conn),
		trust.NewEngine(hist), hist)

	server := &http.Server{
		Addr:         httpAddr,
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("SpeakFree intake service running")
		log.Printf("  http_addr:  %s", httpAddr)
		log.Printf("  redis_addr: %s", redisAddr)
		log.Printf("  nats_url:   %s", natsConfig.URL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	natsClient.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
