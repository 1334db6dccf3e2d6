package dialogue

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// schoolCodePattern matches the "3 letters + digits" organization code
// format (e.g. ECO3847, LYC1234) after the input has been uppercased and
// stripped of whitespace.
var schoolCodePattern = regexp.MustCompile(`[A-Z]{3}\d+`)

// schoolNamePattern captures the school name after "s'appelle".
var schoolNamePattern = regexp.MustCompile(`(?i)s'appelle\s+(.+)`)

// categoryRule pairs trigger keywords with the inferred category and an
// optional forced urgency. Order matters: the first rule with a keyword
// hit wins, mirroring the fixed priority of the intake flow.
type categoryRule struct {
	category string
	urgency  string // empty = keep the generic urgency inference
	keywords []string
}

var categoryRules = []categoryRule{
	{CategoryHarassment, "", []string{"harcèlement", "harcele", "insulte", "moque"}},
	{CategoryViolence, "", []string{"violence", "frappe", "bagarre", "coup"}},
	{CategoryDrugs, "", []string{"drogue", "stupéfiant"}},
	{CategoryTheft, "", []string{"vol", "volé", "voler", "racket"}},
	{CategoryWeapon, UrgencyCritical, []string{"arme", "couteau", "pistolet"}},
	{CategoryCyber, "", []string{"cyber", "internet", "réseau", "photo", "vidéo"}},
	{CategoryDiscrimination, "", []string{"discrimination", "racisme", "sexisme", "homophobie"}},
	{CategoryAdult, UrgencyHigh, []string{"professeur", "enseignant", "adulte"}},
	{CategorySexualAssault, UrgencyCritical, []string{"sexuel", "attouchement", "agression"}},
}

// inferCategory matches the lowercased message against the category
// rules. Returns empty strings when nothing matches.
func inferCategory(lower string) (category, urgency string) {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category, rule.urgency
			}
		}
	}
	return "", ""
}

// locationEntry maps trigger keywords onto a canonical location label.
type locationEntry struct {
	label    string
	keywords []string
}

var locationTable = []locationEntry{
	{"Salle de classe", []string{"classe", "salle"}},
	{"Cour de récréation", []string{"cour", "récréation"}},
	{"Couloirs", []string{"couloir"}},
	{"Toilettes", []string{"toilette"}},
	{"Cantine", []string{"cantine"}},
	{"Entrée/Sortie", []string{"entrée", "sortie"}},
	{"Vestiaires", []string{"vestiaire"}},
	{"Transport scolaire", []string{"bus"}},
}

// extractLocation maps the message onto a known location, falling back
// to the raw text (truncated) when no keyword matches.
func extractLocation(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range locationTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.label
			}
		}
	}

	runes := []rune(message)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return message
}

// inferUrgency derives urgency from temporal/frequency keywords in the
// description. Defaults to medium.
func inferUrgency(lower string) string {
	switch {
	case containsAny(lower, "maintenant", "en ce moment", "urgent", "danger"):
		return UrgencyCritical
	case containsAny(lower, "souvent", "tous les jours", "régulier", "chaque jour"):
		return UrgencyHigh
	case containsAny(lower, "parfois", "quelquefois"):
		return UrgencyMedium
	default:
		return UrgencyMedium
	}
}

// parseWitnesses interprets a yes/no/unsure answer.
func parseWitnesses(lower string) string {
	switch {
	case containsAny(lower, "oui", "témoins"):
		return "oui"
	case strings.Contains(lower, "non"):
		return "non"
	default:
		return "incertain"
	}
}

// extractSchoolCode pulls a school code out of free text. It first tries
// the whole cleaned message, then any embedded code-shaped token.
// Returns empty when no candidate is found.
func extractSchoolCode(message string) string {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(message), ""))
	if cleaned == "" {
		return ""
	}
	if schoolCodePattern.FindString(cleaned) == cleaned {
		return cleaned
	}
	return schoolCodePattern.FindString(cleaned)
}

// extractSchoolName returns the school name following "s'appelle", or
// empty when the marker is absent.
func extractSchoolName(message string) string {
	m := schoolNamePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractContactInfo parses the requested "Prénom - Téléphone/Email"
// format, keeping the raw text when the format is not followed.
func extractContactInfo(message string) *ContactInfo {
	parts := strings.SplitN(message, "-", 2)
	if len(parts) == 2 {
		return &ContactInfo{
			Name:  strings.TrimSpace(parts[0]),
			Phone: strings.TrimSpace(parts[1]),
		}
	}
	return &ContactInfo{Raw: strings.TrimSpace(message)}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most n runes for summaries.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
