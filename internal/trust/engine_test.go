package trust

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeHistory is an in-memory History for engine tests.
type fakeHistory struct {
	submitterCount int
	schoolCount    int
	candidates     []Candidate

	submitterErr error
	schoolErr    error
	similarErr   error
	logErr       error

	logged []*Assessment
}

func (f *fakeHistory) CountBySubmitter(_ context.Context, _ string, _ time.Time) (int, error) {
	if f.submitterErr != nil {
		return 0, f.submitterErr
	}
	return f.submitterCount, nil
}

func (f *fakeHistory) CountBySchool(_ context.Context, _ int64, _ time.Time) (int, error) {
	if f.schoolErr != nil {
		return 0, f.schoolErr
	}
	return f.schoolCount, nil
}

func (f *fakeHistory) SimilarCandidates(_ context.Context, _ int64, _ time.Time) ([]Candidate, error) {
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.candidates, nil
}

func (f *fakeHistory) LogAssessment(_ context.Context, _, _ string, a *Assessment) error {
	f.logged = append(f.logged, a)
	return f.logErr
}

const cleanMessage = "Un élève de ma classe me harcèle tous les jours dans la cour de récréation"

func hasIssue(a *Assessment, issueType string) bool {
	for _, issue := range a.Issues {
		if issue.Type == issueType {
			return true
		}
	}
	return false
}

func TestAssess_CleanReport(t *testing.T) {
	e := NewEngine(&fakeHistory{})

	a := e.Assess(context.Background(), Draft{ReportID: "SF-1", SchoolID: 1, Message: cleanMessage}, Metadata{IPAddress: "10.0.0.1"})

	if a.Score != BaselineScore {
		t.Errorf("Score = %d, want baseline %d", a.Score, BaselineScore)
	}
	if a.Severity != SeverityNormal {
		t.Errorf("Severity = %q, want %q", a.Severity, SeverityNormal)
	}
	if len(a.Issues) != 0 {
		t.Errorf("Issues = %v, want none", a.Issues)
	}
	if a.Blocked || a.NeedsReview {
		t.Errorf("Blocked=%v NeedsReview=%v, want both false", a.Blocked, a.NeedsReview)
	}
}

func TestAssess_SubmitterFrequency(t *testing.T) {
	// 6th report in 24h from the same IP: critical issue, -30 vs baseline.
	h := &fakeHistory{submitterCount: 5}
	e := NewEngine(h)

	a := e.Assess(context.Background(), Draft{ReportID: "SF-6", SchoolID: 1, Message: cleanMessage}, Metadata{IPAddress: "10.0.0.1"})

	if !hasIssue(a, "ip_frequency") {
		t.Fatalf("expected ip_frequency issue, got %v", a.Issues)
	}
	if a.Score > BaselineScore-30 {
		t.Errorf("Score = %d, want at most %d", a.Score, BaselineScore-30)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Severity = %q, want %q", a.Severity, SeverityCritical)
	}
	if !a.NeedsReview {
		t.Error("NeedsReview = false, want true")
	}
	if len(h.logged) != 1 {
		t.Errorf("assessment log entries = %d, want 1", len(h.logged))
	}
}

func TestAssess_ClampAndBlock(t *testing.T) {
	// Fire every penalty at once: score must clamp to 0, never below.
	h := &fakeHistory{
		submitterCount: 10,
		schoolCount:    20,
		candidates: []Candidate{
			{ID: "SF-OLD", Message: "test test spam", CreatedAt: time.Now()},
		},
	}
	e := NewEngine(h)

	// All-caps, repetitive, suspicious keywords, excessive punctuation, short is
	// excluded (long text) but everything else fires.
	msg := strings.ToUpper("test test spam abcabcabcabc!!!!! encore du texte")

	a := e.Assess(context.Background(), Draft{ReportID: "SF-X", SchoolID: 1, Message: msg}, Metadata{IPAddress: "10.0.0.1"})

	if a.Score < 0 || a.Score > 100 {
		t.Fatalf("Score = %d, want within [0, 100]", a.Score)
	}
	if a.Score != 0 {
		t.Errorf("Score = %d, want clamped to 0", a.Score)
	}
	if !a.Blocked {
		t.Error("Blocked = false, want true")
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Severity = %q, want %q", a.Severity, SeverityCritical)
	}
}

func TestAssess_SeverityNeverRegresses(t *testing.T) {
	// Critical signal first (ip frequency), then warning signals: the
	// assessment must stay critical.
	h := &fakeHistory{submitterCount: 5, schoolCount: 10}
	e := NewEngine(h)

	a := e.Assess(context.Background(), Draft{ReportID: "SF-2", SchoolID: 1, Message: cleanMessage + "!!!!!"}, Metadata{IPAddress: "10.0.0.1"})

	if a.Severity != SeverityCritical {
		t.Fatalf("Severity = %q, want %q", a.Severity, SeverityCritical)
	}

	// And per-issue severities are recorded as detected.
	for _, issue := range a.Issues {
		if issue.Type == "school_frequency" && issue.Severity != SeverityWarning {
			t.Errorf("school_frequency issue severity = %q, want %q", issue.Severity, SeverityWarning)
		}
	}
}

func TestAssess_HistoryFailureFailsSoft(t *testing.T) {
	h := &fakeHistory{
		submitterErr: errors.New("connection refused"),
		schoolErr:    errors.New("connection refused"),
		similarErr:   errors.New("connection refused"),
	}
	e := NewEngine(h)

	a := e.Assess(context.Background(), Draft{ReportID: "SF-3", SchoolID: 1, Message: cleanMessage}, Metadata{IPAddress: "10.0.0.1"})

	if a.Score != BaselineScore {
		t.Errorf("Score = %d, want baseline %d (store failures are absent signals)", a.Score, BaselineScore)
	}
	if len(a.Issues) != 0 {
		t.Errorf("Issues = %v, want none", a.Issues)
	}
}

func TestAssess_LogFailureDoesNotAffectResult(t *testing.T) {
	h := &fakeHistory{submitterCount: 5, logErr: errors.New("disk full")}
	e := NewEngine(h)

	a := e.Assess(context.Background(), Draft{ReportID: "SF-4", SchoolID: 1, Message: cleanMessage}, Metadata{IPAddress: "10.0.0.1"})

	if !hasIssue(a, "ip_frequency") {
		t.Errorf("expected ip_frequency issue despite log failure, got %v", a.Issues)
	}
}

func TestAssess_SimilarReports(t *testing.T) {
	msg := "quelqu'un vole des affaires dans les vestiaires pendant le sport"
	h := &fakeHistory{
		candidates: []Candidate{
			{ID: "SF-A", Message: msg, CreatedAt: time.Now().Add(-10 * time.Minute)},
			{ID: "SF-B", Message: "autre chose sans aucun rapport ici", CreatedAt: time.Now().Add(-5 * time.Minute)},
		},
	}
	e := NewEngine(h)

	a := e.Assess(context.Background(), Draft{ReportID: "SF-NEW", SchoolID: 1, Message: msg}, Metadata{})

	if !hasIssue(a, "similar_content") {
		t.Fatalf("expected similar_content issue, got %v", a.Issues)
	}
	if a.Score != BaselineScore-20 {
		t.Errorf("Score = %d, want %d", a.Score, BaselineScore-20)
	}
	for _, issue := range a.Issues {
		if issue.Type == "similar_content" {
			if len(issue.Details) != 1 || issue.Details[0].ID != "SF-A" {
				t.Errorf("similar details = %v, want one entry for SF-A", issue.Details)
			}
		}
	}
}

func TestAssess_ShortDescription(t *testing.T) {
	e := NewEngine(&fakeHistory{})

	a := e.Assess(context.Background(), Draft{ReportID: "SF-5", SchoolID: 1, Message: "on m'a volé"}, Metadata{})

	if !hasIssue(a, "short_description") {
		t.Fatalf("expected short_description issue, got %v", a.Issues)
	}
	if a.Score != BaselineScore-10 {
		t.Errorf("Score = %d, want %d", a.Score, BaselineScore-10)
	}
}

func TestAssess_KeywordPenaltyPerMatch(t *testing.T) {
	e := NewEngine(&fakeHistory{})

	// Two suspicious keywords, message long enough to skip the length check.
	a := e.Assess(context.Background(), Draft{ReportID: "SF-7", SchoolID: 1, Message: "ceci est un test complètement fake pour voir"}, Metadata{})

	if a.Score != BaselineScore-30 {
		t.Errorf("Score = %d, want %d (15 per keyword)", a.Score, BaselineScore-30)
	}
}

func TestAssessmentFlags(t *testing.T) {
	a := &Assessment{Issues: []Issue{
		{Type: "ip_frequency"},
		{Type: "all_caps"},
	}}
	flags := a.Flags()
	if len(flags) != 2 || flags[0] != "ip_frequency" || flags[1] != "all_caps" {
		t.Errorf("Flags() = %v, want [ip_frequency all_caps]", flags)
	}
}
