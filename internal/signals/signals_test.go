package signals

import (
	"strings"
	"testing"
)

func TestMatchSuspiciousKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"clean text", "quelqu'un me harcèle dans la cour", nil},
		{"single keyword", "c'est un test", []string{"test"}},
		{"case insensitive", "C'EST UN TEST", []string{"test"}},
		{"multiple keywords", "test blabla fake", []string{"test", "blabla", "fake"}},
		{"phrase keyword", "je dis ça pour rire hein", []string{"pour rire"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSuspiciousKeywords(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("MatchSuspiciousKeywords(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MatchSuspiciousKeywords(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHasRepetitivePattern(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty", "", false},
		{"normal sentence", "il m'a insulté devant tout le monde", false},
		{"seed repeated 4 times", "abcabcabcabc", true},
		{"seed repeated 3 times only", "abcabcabc", false},
		{"long seed repeated", "spamspamspamspam", true},
		{"case insensitive", "AbCabcABCabc", true},
		{"repeat in middle", "bonjour abcabcabcabc merci", true},
		{"two char seed not enough", "ababababab", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRepetitivePattern(tt.input); got != tt.want {
				t.Errorf("HasRepetitivePattern(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsAllCaps(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"short caps", "AU SECOURS", false}, // 10 chars, under the limit
		{"long caps", "QUELQU'UN M'A FRAPPE DANS LA COUR", true},
		{"long mixed", "Quelqu'un m'a frappé dans la cour", false},
		{"exactly 20 chars caps", strings.Repeat("A", 20), false},
		{"21 chars caps", strings.Repeat("A", 21), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAllCaps(tt.input); got != tt.want {
				t.Errorf("IsAllCaps(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasExcessivePunctuation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"normal emphasis", "aidez-moi !!", false},
		{"four marks", "quoi????", false},
		{"five bangs", "urgent!!!!!", true},
		{"mixed run", "quoi?!?!?", true},
		{"spread out", "quoi? vraiment? non! si! bon!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasExcessivePunctuation(tt.input); got != tt.want {
				t.Errorf("HasExcessivePunctuation(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasCharRun(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  bool
	}{
		{"no run", "bonjour", 5, false},
		{"exact run", "morrrrrt", 5, true},
		{"run of four", "morrrrt", 5, false},
		{"unicode run", "héééééé", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCharRun(tt.input, tt.n); got != tt.want {
				t.Errorf("HasCharRun(%q, %d) = %v, want %v", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestUppercaseRatio(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"empty", "", 0},
		{"all lower", "abcd", 0},
		{"all upper", "ABCD", 1},
		{"half upper", "ABcd", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UppercaseRatio(tt.input); got != tt.want {
				t.Errorf("UppercaseRatio(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSimilarity_Identity(t *testing.T) {
	texts := []string{
		"x",
		"quelqu'un me harcèle tous les jours",
		"  Des Espaces Autour  ",
		"UN LONG MESSAGE EN MAJUSCULES AVEC PLUSIEURS MOTS",
	}
	for _, text := range texts {
		if got := Similarity(text, text); got != 100 {
			t.Errorf("Similarity(%q, %q) = %d, want 100", text, text, got)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 0},
		{"one empty", "bonjour tout le monde", "", 0},
		{"case and whitespace insensitive exact", "  Bonjour Tout le Monde ", "bonjour tout le monde", 100},
		{"disjoint vocabulary", "harcèlement dans la cour", "problème devant cantine", 0},
		{"short shared words ignored", "le la un de", "le la un des", 0},
		{"half overlap", "victime harcèlement cour récréation", "victime harcèlement salle classe", 50},
		{"full word overlap different order", "frappé couloir hier soirée", "soirée hier couloir frappé", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
