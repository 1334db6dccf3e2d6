package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speakfree/reporting/internal/db"
	"github.com/speakfree/reporting/internal/messaging"
	"github.com/speakfree/reporting/internal/metrics"
	"github.com/speakfree/reporting/internal/moderation"
)

func main() {
	log.Println("Starting SpeakFree moderation service...")

	databaseURL := "postgres://localhost:5432/speakfree?sslmode=disable"
	if v := os.Getenv("DATABASE_URL"); v != "" {
		databaseURL = v
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer conn.Close()

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "speakfree-moderator"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	gate := moderation.NewGate()
	store := moderation.NewStore(conn)

	// Check each message and publish the verdict back to the session's
	// result subject.
	err = natsClient.SubscribeModerationCheck(func(data []byte) {
		var req moderation.CheckRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("[moderator] failed to unmarshal request: %v", err)
			return
		}

		verdict := gate.Check(req.Message)

		action := "allowed"
		if !verdict.Allowed {
			action = "blocked"
			log.Printf("[moderator] BLOCKED session=%s type=%s score=%d",
				req.SessionID, verdict.ContentType, verdict.Score)
		}
		metrics.ModerationChecks.WithLabelValues(action).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Log(ctx, req.Message, verdict, action); err != nil {
			log.Printf("[moderator] log verdict: %v", err)
		}
		cancel()

		result := moderation.CheckResult{SessionID: req.SessionID, Verdict: verdict}
		respData, err := json.Marshal(result)
		if err != nil {
			log.Printf("[moderator] failed to marshal result: %v", err)
			return
		}
		if err := natsClient.PublishModerationResult(req.SessionID, respData); err != nil {
			log.Printf("[moderator] failed to publish result: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to moderation checks: %v", err)
	}

	log.Printf("SpeakFree moderation service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
