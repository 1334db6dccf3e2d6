// Package intake orchestrates the conversational report flow: it owns
// the HTTP-facing service, the conversation persistence, and the
// finalizer that turns a completed dialogue context into a report row.
package intake

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/speakfree/reporting/internal/dialogue"
)

// categoryAliases folds the wider conversational taxonomy onto the
// persisted report categories.
var categoryAliases = map[string]string{
	dialogue.CategoryCyber:         "harcelement",
	dialogue.CategoryTheft:         "fraude",
	dialogue.CategoryWeapon:        "violence",
	dialogue.CategoryAdult:         "abus",
	dialogue.CategorySexualAssault: "abus",
}

// validCategories matches the CHECK constraint on the reports table.
var validCategories = map[string]bool{
	"harcelement":    true,
	"violence":       true,
	"fraude":         true,
	"discrimination": true,
	"abus":           true,
	"drogue":         true,
	"administration": true,
	"infrastructure": true,
	"autre":          true,
}

// NormalizeCategory maps a conversational category onto a persisted
// one. Unknown values fold to "autre"; already-valid values pass
// through, so normalizing twice is a no-op.
func NormalizeCategory(category string) string {
	if mapped, ok := categoryAliases[category]; ok {
		return mapped
	}
	if validCategories[category] {
		return category
	}
	return "autre"
}

const (
	codeSuffixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeSuffixLen   = 5
)

// NewReportCode generates a tracking code: SF-<unix ms>-<5 random chars>.
func NewReportCode(now time.Time) string {
	return fmt.Sprintf("SF-%d-%s", now.UnixMilli(), randomString(codeSuffixLen, codeSuffixChars))
}

// NewAccessCode generates a 6-digit access code.
func NewAccessCode() string {
	return randomString(6, "0123456789")
}

func randomString(n int, charset string) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// broken; there is no useful recovery.
			panic(fmt.Sprintf("intake: random source failed: %v", err))
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out)
}

// Finalizer persists completed dialogue contexts as report rows. It
// implements dialogue.Finalizer.
type Finalizer struct {
	db  *sql.DB
	dir dialogue.Directory
	now func() time.Time
}

// NewFinalizer creates a finalizer writing to the given database and
// resolving schools through the given directory.
func NewFinalizer(db *sql.DB, dir dialogue.Directory) *Finalizer {
	return &Finalizer{db: db, dir: dir, now: time.Now}
}

// Create inserts a report from the collected context and returns the
// tracking and access codes. The school code must resolve; the dialogue
// machine has already validated it but the row may have been removed
// since.
func (f *Finalizer) Create(ctx context.Context, c *dialogue.Context) (*dialogue.Receipt, error) {
	if c.SchoolCode == "" {
		return nil, fmt.Errorf("intake: finalize %s: missing school code", c.SessionID)
	}

	school, err := f.dir.SchoolByCode(ctx, c.SchoolCode)
	if err != nil {
		return nil, fmt.Errorf("intake: finalize %s: %w", c.SessionID, err)
	}
	if school == nil {
		return nil, fmt.Errorf("intake: finalize %s: school %s not found", c.SessionID, c.SchoolCode)
	}

	reportCode := NewReportCode(f.now())
	accessCode := NewAccessCode()

	category := c.Category
	if category == "" {
		category = "autre"
	}
	urgency := c.Urgency
	if urgency == "" {
		urgency = dialogue.UrgencyMedium
	}
	location := c.Location
	if location == "" {
		location = "Non précisé"
	}
	witnesses := c.Witnesses
	if witnesses == "" {
		witnesses = "incertain"
	}
	userType := c.UserType
	if userType == "" {
		userType = "eleve"
	}
	message := c.Description
	if message == "" {
		message = "Signalement créé via l'assistant d'accompagnement"
	}

	var contactJSON any
	if c.Contact != nil {
		contactJSON, err = json.Marshal(c.Contact)
		if err != nil {
			return nil, fmt.Errorf("intake: marshal contact: %w", err)
		}
	}

	const query = `
		INSERT INTO reports
		(report_code, school_id, user_type, category, urgency, title, message,
		 location, witnesses, is_anonymous, status, access_code, contact_info,
		 face_photo, face_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'new', $11, $12, $13, $14)`

	_, err = f.db.ExecContext(ctx, query,
		reportCode,
		school.ID,
		userType,
		NormalizeCategory(category),
		urgency,
		"Signalement "+category,
		message,
		location,
		witnesses,
		c.Contact == nil,
		accessCode,
		contactJSON,
		nullable(c.FacePhoto),
		c.FacePhoto != "",
	)
	if err != nil {
		return nil, fmt.Errorf("intake: insert report: %w", err)
	}

	return &dialogue.Receipt{ReportCode: reportCode, AccessCode: accessCode}, nil
}

// RecordSubmitterIP stamps the submitter address onto the report row
// after creation. The dialogue layer never sees transport metadata, so
// the service adds it here. Best-effort.
func (f *Finalizer) RecordSubmitterIP(ctx context.Context, reportCode, ip string) error {
	if ip == "" {
		return nil
	}
	const query = `UPDATE reports SET ip_address = $2 WHERE report_code = $1`
	if _, err := f.db.ExecContext(ctx, query, reportCode, ip); err != nil {
		return fmt.Errorf("intake: record submitter ip: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
