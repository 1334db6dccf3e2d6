package moderation

import (
	"strings"
	"testing"
	"time"
)

func TestCheck_EmptyMessage(t *testing.T) {
	g := NewGate()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tabs and newlines", "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Check(tt.input)
			if v.Allowed {
				t.Errorf("Check(%q).Allowed = true, want false", tt.input)
			}
			if v.Score != 0 {
				t.Errorf("Check(%q).Score = %d, want 0 (no scoring for empty input)", tt.input, v.Score)
			}
			if v.Reason == "" {
				t.Errorf("Check(%q).Reason is empty, want a rejection reason", tt.input)
			}
		})
	}
}

func TestCheck_CleanMessages(t *testing.T) {
	g := NewGate()

	clean := []string{
		"bonjour, comment ça va ?",
		"merci pour votre aide",
		"nous avons bien reçu le signalement",
		"pouvez-vous préciser le lieu ?",
		"d'accord, je comprends la situation",
	}

	for _, msg := range clean {
		v := g.Check(msg)
		if !v.Allowed {
			t.Errorf("Check(%q) blocked (score=%d, type=%s), want allowed", msg, v.Score, v.ContentType)
		}
	}
}

func TestCheck_ForbiddenPhrases(t *testing.T) {
	g := NewGate()

	tests := []struct {
		name        string
		input       string
		contentType ContentType
	}{
		{"insult phrase", "espèce de connard tu vas payer", ContentUnknown},
		{"violence threat", "je vais te tuer après les cours crève", ContentViolence},
		{"discrimination", "sale arabe dégage de là pédé", ContentDiscrimination},
		{"family insult", "ta mère et ta race", ContentInsult},
		{"sexual", "envoie moi des nudes ou du sexe", ContentSexual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Check(tt.input)
			if v.Allowed {
				t.Fatalf("Check(%q).Allowed = true, want blocked (score=%d)", tt.input, v.Score)
			}
			if v.ContentType != tt.contentType {
				t.Errorf("Check(%q).ContentType = %q, want %q", tt.input, v.ContentType, tt.contentType)
			}
			if v.Reason != blockReasons[tt.contentType] {
				t.Errorf("Check(%q).Reason = %q, want %q", tt.input, v.Reason, blockReasons[tt.contentType])
			}
		})
	}
}

func TestCheck_PhoneNumber(t *testing.T) {
	// A bare 10-digit sequence matches both the pattern (+8) and the
	// personal_info classifier; combined with a forbidden phrase the score
	// crosses the block threshold.
	g := NewGate()

	v := g.Check("balance son numéro 0612345678 à tout le monde")
	if v.Allowed {
		t.Fatalf("Allowed = true, want blocked (score=%d)", v.Score)
	}
	if v.ContentType != ContentPersonalInfo {
		t.Errorf("ContentType = %q, want %q", v.ContentType, ContentPersonalInfo)
	}
	if v.Score < BlockThreshold {
		t.Errorf("Score = %d, want >= %d", v.Score, BlockThreshold)
	}
}

func TestCheck_StreetAddress(t *testing.T) {
	g := NewGateWithPhrases([]string{"on sait où tu habites"})

	v := g.Check("on sait où tu habites, 12 rue des Lilas")
	if v.Allowed {
		t.Fatalf("Allowed = true, want blocked (score=%d)", v.Score)
	}
	if v.ContentType != ContentPersonalInfo {
		t.Errorf("ContentType = %q, want %q", v.ContentType, ContentPersonalInfo)
	}
}

func TestCheck_ContentTypePriority(t *testing.T) {
	// violence beats every later category even when both match.
	v := DetectContentType("je vais te tuer, ta mère verra, 0612345678")
	if v != ContentViolence {
		t.Errorf("DetectContentType = %q, want %q", v, ContentViolence)
	}
}

func TestScore_Accumulation(t *testing.T) {
	g := NewGateWithPhrases(nil)

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"clean", "bonjour tout le monde", 0},
		{"caps shouting", "ARRETE DE FAIRE CA TOUT DE SUITE", 3},
		{"many bangs", "non non non ! ! ! !", 2},
		{"char run", "morrrrrt de rire", 2},
		{"threat pattern", "tu vas mourir demain", 8},
		{"pattern plus caps", "TU VAS MOURIR DEMAIN C'EST PROMIS", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Score(tt.input); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCheck_WarningBand(t *testing.T) {
	// A single pattern match (8) is allowed but above the warn threshold.
	g := NewGateWithPhrases(nil)

	v := g.Check("tu vas mourir de rire avec cette blague")
	if !v.Allowed {
		t.Fatalf("Allowed = false (score=%d), want allowed", v.Score)
	}
	if v.Warning == "" {
		t.Error("Warning is empty, want a tone warning for score above 5")
	}
}

// TestPerformance keeps the gate fast enough for the synchronous request
// path.
func TestPerformance(t *testing.T) {
	g := NewGate()
	msg := strings.Repeat("message parfaitement normal sans aucun contenu toxique. ", 10)

	const iterations = 1000
	start := time.Now()
	for i := 0; i < iterations; i++ {
		g.Check(msg)
	}
	avg := time.Since(start) / iterations
	t.Logf("average Check latency: %s", avg)

	if avg > time.Millisecond {
		t.Errorf("Check latency %s exceeds 1ms", avg)
	}
}

func BenchmarkCheck(b *testing.B) {
	g := NewGate()
	msg := "bonjour, je voudrais signaler un problème dans la cour de récréation"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Check(msg)
	}
}
