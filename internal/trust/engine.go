package trust

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/speakfree/reporting/internal/signals"
)

// Engine scores report submissions against history and content signals.
type Engine struct {
	history History
	now     func() time.Time
}

// NewEngine creates a scoring engine backed by the given report history.
func NewEngine(history History) *Engine {
	return &Engine{history: history, now: time.Now}
}

// Assess scores one report draft. It never returns an error: advisory
// signals that cannot be computed are treated as absent, and the audit
// log write is best-effort. Penalties are cumulative; severity only
// escalates; the final score is clamped to [0, 100].
func (e *Engine) Assess(ctx context.Context, draft Draft, meta Metadata) *Assessment {
	a := &Assessment{
		Score:     BaselineScore,
		Severity:  SeverityNormal,
		Timestamp: e.now(),
	}

	// 1. Submission frequency by IP over 24h.
	if meta.IPAddress != "" {
		count, err := e.history.CountBySubmitter(ctx, meta.IPAddress, a.Timestamp.Add(-IPWindow))
		if err != nil {
			log.Printf("[trust] submitter frequency check failed (signal skipped): %v", err)
			count = 0
		}
		if count >= MaxReportsPerIP24h {
			e.addIssue(a, Issue{
				Type:     "ip_frequency",
				Message:  fmt.Sprintf("%d signalements depuis cette IP en 24h", count),
				Severity: SeverityCritical,
			}, 30)
		}
	}

	// 2. Submission frequency by school over 1h.
	if draft.SchoolID != 0 {
		count, err := e.history.CountBySchool(ctx, draft.SchoolID, a.Timestamp.Add(-SchoolWindow))
		if err != nil {
			log.Printf("[trust] school frequency check failed (signal skipped): %v", err)
			count = 0
		}
		if count >= MaxReportsPerSchool1h {
			e.addIssue(a, Issue{
				Type:     "school_frequency",
				Message:  fmt.Sprintf("%d signalements en 1h pour cette école", count),
				Severity: SeverityWarning,
			}, 15)
		}
	}

	// 3. Near-duplicate reports within the last 30 minutes.
	if draft.Message != "" && draft.SchoolID != 0 {
		similar := e.findSimilar(ctx, draft)
		if len(similar) > 0 {
			e.addIssue(a, Issue{
				Type:     "similar_content",
				Message:  fmt.Sprintf("%d signalement(s) similaire(s) trouvé(s)", len(similar)),
				Severity: SeverityWarning,
				Details:  similar,
			}, 20)
		}
	}

	// 4. Content heuristics.
	e.analyzeContent(a, draft.Message)

	// 5. Minimum useful description length.
	if draft.Message != "" && utf8.RuneCountInString(draft.Message) < MinDescriptionLength {
		e.addIssue(a, Issue{
			Type:     "short_description",
			Message:  "Description trop courte (spam possible)",
			Severity: SeverityWarning,
		}, 10)
	}

	if a.Score < ScoreVeryLow {
		a.Score = ScoreVeryLow
	}
	if a.Score > ScoreVeryHigh {
		a.Score = ScoreVeryHigh
	}

	a.Blocked = a.Score < ScoreLow
	a.NeedsReview = a.Score < ScoreMedium || a.Severity != SeverityNormal

	if a.NeedsReview || a.Blocked {
		if err := e.history.LogAssessment(ctx, draft.ReportID, meta.IPAddress, a); err != nil {
			log.Printf("[trust] assessment log failed for report=%s: %v", draft.ReportID, err)
		}
	}

	log.Printf("[trust] report=%s score=%d severity=%s issues=%d blocked=%v",
		draft.ReportID, a.Score, a.Severity, len(a.Issues), a.Blocked)

	return a
}

// addIssue appends an issue, applies its penalty and escalates severity.
func (e *Engine) addIssue(a *Assessment, issue Issue, penalty int) {
	a.Issues = append(a.Issues, issue)
	a.Score -= penalty
	a.Severity = escalate(a.Severity, issue.Severity)
}

// findSimilar compares the draft message against recent reports for the
// same school and returns those at or above the similarity threshold.
// Fails soft to an empty slice on store errors.
func (e *Engine) findSimilar(ctx context.Context, draft Draft) []SimilarReport {
	candidates, err := e.history.SimilarCandidates(ctx, draft.SchoolID, e.now().Add(-SimilarWindow))
	if err != nil {
		log.Printf("[trust] similar lookup failed (signal skipped): %v", err)
		return nil
	}

	var similar []SimilarReport
	for _, c := range candidates {
		if c.ID == draft.ReportID {
			continue // don't compare the report against itself
		}
		score := signals.Similarity(draft.Message, c.Message)
		if score >= SimilarityThreshold {
			similar = append(similar, SimilarReport{
				ID:         c.ID,
				Similarity: score,
				CreatedAt:  c.CreatedAt,
			})
		}
	}
	return similar
}

// analyzeContent applies the pure content heuristics to the message.
func (e *Engine) analyzeContent(a *Assessment, message string) {
	if message == "" {
		return
	}

	if matched := signals.MatchSuspiciousKeywords(message); len(matched) > 0 {
		e.addIssue(a, Issue{
			Type:     "suspicious_keywords",
			Message:  "Mots suspects détectés: " + strings.Join(matched, ", "),
			Severity: SeverityWarning,
		}, 15*len(matched))
	}

	if signals.HasRepetitivePattern(message) {
		e.addIssue(a, Issue{
			Type:     "repetitive_pattern",
			Message:  "Texte répétitif détecté (spam possible)",
			Severity: SeverityCritical,
		}, 30)
	}

	if signals.IsAllCaps(message) {
		e.addIssue(a, Issue{
			Type:     "all_caps",
			Message:  "Message entièrement en majuscules",
			Severity: SeverityWarning,
		}, 10)
	}

	if signals.HasExcessivePunctuation(message) {
		e.addIssue(a, Issue{
			Type:     "excessive_punctuation",
			Message:  "Ponctuation excessive détectée",
			Severity: SeverityWarning,
		}, 5)
	}
}
