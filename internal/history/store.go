// Package history provides PostgreSQL-backed report history queries for
// abuse scoring, plus the audit log and trust write-back on report rows.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/speakfree/reporting/internal/trust"
)

// Store queries and updates report history in PostgreSQL. It implements
// trust.History.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CountBySubmitter counts reports from one IP address since the cutoff.
func (s *Store) CountBySubmitter(ctx context.Context, ip string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM reports
		WHERE ip_address = $1 AND created_at > $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count by submitter: %w", err)
	}
	return count, nil
}

// CountBySchool counts reports for one school since the cutoff.
func (s *Store) CountBySchool(ctx context.Context, schoolID int64, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM reports
		WHERE school_id = $1 AND created_at > $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, schoolID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count by school: %w", err)
	}
	return count, nil
}

// SimilarCandidates returns recent non-archived reports for a school.
// The similarity comparison itself happens in the engine.
func (s *Store) SimilarCandidates(ctx context.Context, schoolID int64, since time.Time) ([]trust.Candidate, error) {
	const query = `
		SELECT report_code, message, created_at
		FROM reports
		WHERE school_id = $1
		  AND created_at > $2
		  AND status != 'archived'`

	rows, err := s.db.QueryContext(ctx, query, schoolID, since)
	if err != nil {
		return nil, fmt.Errorf("history: similar candidates: %w", err)
	}
	defer rows.Close()

	var candidates []trust.Candidate
	for rows.Next() {
		var c trust.Candidate
		if err := rows.Scan(&c.ID, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: candidate rows: %w", err)
	}
	return candidates, nil
}

// LogAssessment records an assessment in abuse_logs for audit. Issues
// are marshalled to JSONB.
func (s *Store) LogAssessment(ctx context.Context, reportID, ip string, a *trust.Assessment) error {
	issuesJSON, err := json.Marshal(a.Issues)
	if err != nil {
		return fmt.Errorf("history: marshal issues: %w", err)
	}

	const query = `
		INSERT INTO abuse_logs (report_code, ip_address, trust_score, severity, issues)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.ExecContext(ctx, query, reportID, ip, a.Score, string(a.Severity), issuesJSON)
	if err != nil {
		return fmt.Errorf("history: log assessment: %w", err)
	}
	return nil
}

// UpdateReportTrust writes the assessment outcome back onto the report
// row so admins see the score next to the report.
func (s *Store) UpdateReportTrust(ctx context.Context, reportCode string, a *trust.Assessment) error {
	const query = `
		UPDATE reports
		SET trust_score = $2,
		    abuse_flags = $3,
		    needs_review = $4,
		    blocked = $5
		WHERE report_code = $1`

	res, err := s.db.ExecContext(ctx, query, reportCode, a.Score, pq.Array(a.Flags()), a.NeedsReview, a.Blocked)
	if err != nil {
		return fmt.Errorf("history: update report trust: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: update report trust: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("history: update report trust: report %s not found", reportCode)
	}
	return nil
}

// ReportForScoring is the subset of a report row the scorer needs.
type ReportForScoring struct {
	ReportCode string
	SchoolID   int64
	Message    string
	IPAddress  string
}

// ReportForScoring loads the fields needed to re-assess a stored report.
// Returns nil when the report does not exist.
func (s *Store) ReportForScoring(ctx context.Context, reportCode string) (*ReportForScoring, error) {
	const query = `
		SELECT report_code, school_id, message, COALESCE(ip_address, '')
		FROM reports
		WHERE report_code = $1`

	var r ReportForScoring
	err := s.db.QueryRowContext(ctx, query, reportCode).Scan(&r.ReportCode, &r.SchoolID, &r.Message, &r.IPAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: report for scoring: %w", err)
	}
	return &r, nil
}

// SeverityStat is one row of the 7-day abuse overview.
type SeverityStat struct {
	Severity      string  `json:"severity"`
	Count         int     `json:"count"`
	AvgTrustScore float64 `json:"avg_trust_score"`
}

// AbuseStats aggregates the abuse log over the last 7 days by severity.
func (s *Store) AbuseStats(ctx context.Context) ([]SeverityStat, error) {
	const query = `
		SELECT severity, COUNT(*), AVG(trust_score)
		FROM abuse_logs
		WHERE created_at > NOW() - INTERVAL '7 days'
		GROUP BY severity`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: abuse stats: %w", err)
	}
	defer rows.Close()

	var stats []SeverityStat
	for rows.Next() {
		var st SeverityStat
		if err := rows.Scan(&st.Severity, &st.Count, &st.AvgTrustScore); err != nil {
			return nil, fmt.Errorf("history: scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: stat rows: %w", err)
	}
	return stats, nil
}

// SuspiciousEntry is one flagged abuse-log entry joined with its report.
type SuspiciousEntry struct {
	ReportCode string        `json:"report_code"`
	IPAddress  string        `json:"ip_address,omitempty"`
	TrustScore int           `json:"trust_score"`
	Severity   string        `json:"severity"`
	Issues     []trust.Issue `json:"issues"`
	Category   string        `json:"category,omitempty"`
	Urgency    string        `json:"urgency,omitempty"`
	Status     string        `json:"status,omitempty"`
	SchoolName string        `json:"school_name,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Suspicious returns the most recent flagged entries, newest first.
func (s *Store) Suspicious(ctx context.Context, limit int) ([]SuspiciousEntry, error) {
	const query = `
		SELECT al.report_code, COALESCE(al.ip_address, ''), al.trust_score, al.severity, al.issues, al.created_at,
		       COALESCE(r.category, ''), COALESCE(r.urgency, ''), COALESCE(r.status, ''), COALESCE(s.name, '')
		FROM abuse_logs al
		LEFT JOIN reports r ON r.report_code = al.report_code
		LEFT JOIN schools s ON s.id = r.school_id
		WHERE al.severity IN ('warning', 'critical')
		ORDER BY al.created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: suspicious: %w", err)
	}
	defer rows.Close()

	var entries []SuspiciousEntry
	for rows.Next() {
		var e SuspiciousEntry
		var issuesJSON []byte
		if err := rows.Scan(&e.ReportCode, &e.IPAddress, &e.TrustScore, &e.Severity, &issuesJSON, &e.CreatedAt,
			&e.Category, &e.Urgency, &e.Status, &e.SchoolName); err != nil {
			return nil, fmt.Errorf("history: scan suspicious: %w", err)
		}
		if len(issuesJSON) > 0 {
			// A malformed issues blob downgrades to an empty list rather
			// than failing the whole listing.
			if err := json.Unmarshal(issuesJSON, &e.Issues); err != nil {
				e.Issues = nil
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: suspicious rows: %w", err)
	}
	return entries, nil
}
