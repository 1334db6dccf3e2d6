// Package trust implements the anti-abuse scoring engine for report
// submissions. It combines content heuristics with time-windowed
// frequency signals from report history into a single bounded trust
// score, a severity classification and an itemized issue list.
//
// The engine is advisory by design: it never fails a submission. Every
// backing-store error degrades to a neutral signal and the assessment
// completes regardless.
package trust

import (
	"context"
	"time"
)

// Severity is the ordinal escalation level of an assessment or issue.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities for monotonic escalation.
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// escalate returns the higher of the two severities. Severity never
// regresses within a single assessment.
func escalate(current, next Severity) Severity {
	if next.rank() > current.rank() {
		return next
	}
	return current
}

// Score bands on the 0-100 trust scale.
const (
	ScoreVeryLow  = 0
	ScoreLow      = 25
	ScoreMedium   = 50
	ScoreHigh     = 75
	ScoreVeryHigh = 100

	// BaselineScore is where every assessment starts: trusted until
	// signals say otherwise.
	BaselineScore = ScoreHigh
)

// Detection thresholds and windows.
const (
	MaxReportsPerIP24h    = 5
	MaxReportsPerSchool1h = 10
	SimilarityThreshold   = 85
	MinDescriptionLength  = 20

	IPWindow      = 24 * time.Hour
	SchoolWindow  = 1 * time.Hour
	SimilarWindow = 30 * time.Minute
)

// Issue is one detected problem, appended to the assessment in detection
// order.
type Issue struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Severity Severity        `json:"severity"`
	Details  []SimilarReport `json:"details,omitempty"`
}

// SimilarReport identifies an earlier report whose message overlaps the
// one under assessment.
type SimilarReport struct {
	ID         string    `json:"id"`
	Similarity int       `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assessment is the result of scoring one report submission. It is
// created fresh per call and never mutated after Assess returns.
type Assessment struct {
	Score       int       `json:"trust_score"`
	Severity    Severity  `json:"severity"`
	Issues      []Issue   `json:"issues"`
	Blocked     bool      `json:"is_blocked"`
	NeedsReview bool      `json:"needs_review"`
	Timestamp   time.Time `json:"timestamp"`
}

// Flags returns the issue types, used as the abuse_flags write-back on
// the report row.
func (a *Assessment) Flags() []string {
	flags := make([]string, 0, len(a.Issues))
	for _, issue := range a.Issues {
		flags = append(flags, issue.Type)
	}
	return flags
}

// Draft carries the report fields the engine inspects.
type Draft struct {
	ReportID string
	SchoolID int64
	Message  string
}

// Metadata carries submission metadata that is not part of the report
// content itself.
type Metadata struct {
	IPAddress string
}

// Candidate is a recent report considered for similarity comparison.
type Candidate struct {
	ID        string
	Message   string
	CreatedAt time.Time
}

// History is the report-history query interface the engine depends on.
// Implementations may fail; the engine treats every error as an absent
// signal.
type History interface {
	// CountBySubmitter returns the number of reports from the submitter
	// identifier created at or after since.
	CountBySubmitter(ctx context.Context, ip string, since time.Time) (int, error)

	// CountBySchool returns the number of reports for the school created
	// at or after since.
	CountBySchool(ctx context.Context, schoolID int64, since time.Time) (int, error)

	// SimilarCandidates returns non-archived reports for the school
	// created at or after since.
	SimilarCandidates(ctx context.Context, schoolID int64, since time.Time) ([]Candidate, error)

	// LogAssessment persists an assessment for audit. Best-effort.
	LogAssessment(ctx context.Context, reportID, ip string, a *Assessment) error
}
