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
	"github.com/speakfree/reporting/internal/directory"
	"github.com/speakfree/reporting/internal/history"
	"github.com/speakfree/reporting/internal/intake"
	"github.com/speakfree/reporting/internal/messaging"
	"github.com/speakfree/reporting/internal/metrics"
	"github.com/speakfree/reporting/internal/trust"
)

func main() {
	log.Println("Starting SpeakFree scoring service...")

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
	natsConfig.Name = "speakfree-scorer"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	store := history.NewStore(conn)
	dir := directory.NewStore(conn)
	engine := trust.NewEngine(store)

	// Score each submitted report and write the outcome back onto the
	// report row. Scoring is advisory: a failed write-back is logged and
	// the report stays visible.
	err = natsClient.SubscribeReportSubmitted(func(data []byte) {
		var event intake.ReportSubmittedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[scorer] failed to unmarshal event: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// Lean events carry only the report code; load the rest from
		// the report row.
		if event.Message == "" {
			report, err := store.ReportForScoring(ctx, event.ReportCode)
			if err != nil || report == nil {
				log.Printf("[scorer] load report=%s: %v", event.ReportCode, err)
				return
			}
			event.Message = report.Message
			event.IPAddress = report.IPAddress
			assess(ctx, engine, store, event, report.SchoolID)
			return
		}

		schoolID, ok := resolveSchool(ctx, dir, event.SchoolCode)
		if !ok {
			log.Printf("[scorer] report=%s school %s unknown, scoring without school signals",
				event.ReportCode, event.SchoolCode)
		}

		assess(ctx, engine, store, event, schoolID)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to submitted reports: %v", err)
	}

	log.Printf("SpeakFree scoring service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}

func assess(ctx context.Context, engine *trust.Engine, store *history.Store,
	event intake.ReportSubmittedEvent, schoolID int64) {
	assessment := engine.Assess(ctx,
		trust.Draft{ReportID: event.ReportCode, SchoolID: schoolID, Message: event.Message},
		trust.Metadata{IPAddress: event.IPAddress})

	metrics.Assessments.WithLabelValues(string(assessment.Severity)).Inc()
	metrics.TrustScore.Observe(float64(assessment.Score))

	if err := store.UpdateReportTrust(ctx, event.ReportCode, assessment); err != nil {
		log.Printf("[scorer] write-back report=%s: %v", event.ReportCode, err)
		return
	}

	log.Printf("[scorer] report=%s score=%d severity=%s blocked=%t review=%t",
		event.ReportCode, assessment.Score, assessment.Severity,
		assessment.Blocked, assessment.NeedsReview)
}

func resolveSchool(ctx context.Context, dir *directory.Store, code string) (int64, bool) {
	if code == "" {
		return 0, false
	}
	school, err := dir.SchoolByCode(ctx, code)
	if err != nil || school == nil {
		return 0, false
	}
	return school.ID, true
}
