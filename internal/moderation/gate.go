// Package moderation provides synchronous content filtering for
// discussion messages. It scores each message against a French
// forbidden-phrase list and a set of threat/insult/doxxing patterns,
// classifies the dominant content type, and returns an allow/block
// verdict. The decision itself needs no persistence; logging is the
// caller's concern and is best-effort.
package moderation

import (
	"regexp"
	"strings"

	"github.com/speakfree/reporting/internal/signals"
)

// BlockThreshold is the toxicity score at which a message is blocked.
const BlockThreshold = 10

// WarnThreshold is the score above which an allowed message still gets a
// tone warning.
const WarnThreshold = 5

// ContentType classifies the dominant problem in a blocked message.
type ContentType string

const (
	ContentViolence       ContentType = "violence"
	ContentDiscrimination ContentType = "discrimination"
	ContentInsult         ContentType = "insult"
	ContentSexual         ContentType = "sexual"
	ContentPersonalInfo   ContentType = "personal_info"
	ContentUnknown        ContentType = "unknown"
)

// Verdict is the outcome of checking one message.
type Verdict struct {
	Allowed     bool        `json:"allowed"`
	Score       int         `json:"score"`
	ContentType ContentType `json:"content_type"`
	Reason      string      `json:"reason,omitempty"`
	Warning     string      `json:"warning,omitempty"`
}

// forbiddenPhrases is the default French blocklist: slurs, threats,
// discrimination, doxxing bait and sexual solicitation. Each phrase
// found adds 10 to the score.
var forbiddenPhrases = []string{
	// Insultes graves
	"connard", "salope", "pute", "enculé", "fils de pute", "fdp",
	"ta mère", "ta race", "nique", "fils de", "batard", "bâtard",

	// Violence
	"je vais te tuer", "je te tue", "crève", "mort", "suicid",
	"je vais te frapper", "je vais te massacrer", "je vais te défoncer",

	// Menaces
	"attends moi", "je te retrouve", "tu vas voir", "tu vas payer",
	"on se voit après", "fais gaffe",

	// Discriminations
	"sale noir", "sale blanc", "sale arabe", "sale juif", "pédé", "tarlouze",

	// Cyberharcèlement
	"balance", "cafard", "balancer", "snitch", "on sait où tu habites",

	// Contenu sexuel inapproprié
	"nude", "nudes", "envoie moi", "montre moi", "sexe", "dick pic",
}

// suspiciousPatterns each add 8 to the score when they match. Compiled
// once at package init; RE2 patterns are safe for concurrent use.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(tu|vous)\s+(va|vas|allez)\s+(mourir|crever|souffrir)\b`),
	regexp.MustCompile(`(?i)\b(je|on)\s+(vais|va|allons)\s+(te|vous)\s+(tuer|frapper|massacrer)\b`),
	regexp.MustCompile(`(?i)\b(sale|putain\s+de)\s+[a-z]+\b`),
	regexp.MustCompile(`(?i)\b(ta|ton)\s+(mère|mere|race|gueule)\b`),
	regexp.MustCompile(`(?i)\bfils\s+de\s+\w+\b`),
	regexp.MustCompile(`(?i)\b(merde|putain|bordel)\s+de\s+\w+\b`),
	regexp.MustCompile(`\b\d{10}\b`),       // numéros de téléphone
	regexp.MustCompile(`(?i)\b\d{1,3}\s+rue\b`), // adresses postales
}

// Content-type classifiers, checked in fixed priority order. The first
// match wins and drives the user-facing rejection reason.
var (
	violencePattern       = regexp.MustCompile(`(?i)\b(tuer|mort|suicide|crever)\b`)
	discriminationPattern = regexp.MustCompile(`(?i)\b(sale|putain)\s+(noir|blanc|arabe|juif|pédé)\b`)
	insultPattern         = regexp.MustCompile(`(?i)\b(ta mère|ta race|fils de)\b`)
	sexualPattern         = regexp.MustCompile(`(?i)\b(nudes?|dick|sexe)\b`)
	phonePattern          = regexp.MustCompile(`\d{10}`)
	addressPattern        = regexp.MustCompile(`(?i)\d{1,3}\s+rue`)
)

// blockReasons maps a content type to the user-facing rejection message.
var blockReasons = map[ContentType]string{
	ContentViolence:       "Message bloqué : contient des menaces de violence. Les menaces sont interdites.",
	ContentDiscrimination: "Message bloqué : contient des propos discriminatoires. Le respect de tous est obligatoire.",
	ContentInsult:         "Message bloqué : contient des insultes graves. Reste respectueux dans tes échanges.",
	ContentSexual:         "Message bloqué : contient du contenu sexuel inapproprié. Ce type de contenu est interdit.",
	ContentPersonalInfo:   "Message bloqué : contient des informations personnelles (téléphone, adresse). Ne partage pas ces informations publiquement.",
	ContentUnknown:        "Message bloqué : contenu inapproprié détecté. Reformule ton message de manière respectueuse.",
}

// Gate checks messages against the blocklist and patterns.
type Gate struct {
	phrases  []string
	patterns []*regexp.Regexp
}

// NewGate creates a gate with the default French blocklist and patterns.
func NewGate() *Gate {
	return &Gate{phrases: forbiddenPhrases, patterns: suspiciousPatterns}
}

// NewGateWithPhrases creates a gate with a custom phrase list and the
// default patterns. Used by tests to isolate individual signals.
func NewGateWithPhrases(phrases []string) *Gate {
	return &Gate{phrases: phrases, patterns: suspiciousPatterns}
}

// Check scores a single message and returns the verdict. Empty or
// whitespace-only messages are rejected immediately without scoring.
func (g *Gate) Check(message string) Verdict {
	if strings.TrimSpace(message) == "" {
		return Verdict{
			Allowed:     false,
			ContentType: ContentUnknown,
			Reason:      "Le message ne peut pas être vide",
		}
	}

	score := g.Score(message)
	contentType := DetectContentType(message)

	if score >= BlockThreshold {
		return Verdict{
			Allowed:     false,
			Score:       score,
			ContentType: contentType,
			Reason:      blockReasons[contentType],
		}
	}

	v := Verdict{Allowed: true, Score: score, ContentType: contentType}
	if score > WarnThreshold {
		v.Warning = "Attention au ton de ton message"
	}
	return v
}

// Score computes the raw toxicity score for a message. The accumulator
// is unbounded; only the BlockThreshold comparison matters.
func (g *Gate) Score(message string) int {
	score := 0
	lower := strings.ToLower(message)

	for _, phrase := range g.phrases {
		if strings.Contains(lower, phrase) {
			score += 10
		}
	}

	for _, pattern := range g.patterns {
		if pattern.MatchString(message) {
			score += 8
		}
	}

	// Cris : majuscules sur plus de la moitié du texte.
	if len([]rune(message)) > 10 && signals.UppercaseRatio(message) > 0.5 {
		score += 3
	}

	if strings.Count(message, "!") > 3 {
		score += 2
	}

	if signals.HasCharRun(message, 5) {
		score += 2
	}

	return score
}

// DetectContentType classifies a message into the first matching category
// by fixed priority: violence > discrimination > insult > sexual >
// personal_info > unknown.
func DetectContentType(message string) ContentType {
	switch {
	case violencePattern.MatchString(message):
		return ContentViolence
	case discriminationPattern.MatchString(message):
		return ContentDiscrimination
	case insultPattern.MatchString(message):
		return ContentInsult
	case sexualPattern.MatchString(message):
		return ContentSexual
	case phonePattern.MatchString(message) || addressPattern.MatchString(message):
		return ContentPersonalInfo
	default:
		return ContentUnknown
	}
}
