package dialogue

import (
	"fmt"
	"strings"
)

var categoryLabels = map[string]string{
	CategoryHarassment:     "Harcèlement",
	CategoryViolence:       "Violence",
	CategoryDrugs:          "Drogue",
	CategoryTheft:          "Vol/Racket",
	CategoryWeapon:         "Arme",
	CategoryCyber:          "Cyberharcèlement",
	CategoryDiscrimination: "Discrimination",
	CategoryAdult:          "Implication adulte",
	CategorySexualAssault:  "Agression sexuelle",
}

var urgencyLabels = map[string]string{
	UrgencyCritical: "CRITIQUE",
	UrgencyHigh:     "ÉLEVÉE",
	UrgencyMedium:   "Moyen",
	UrgencyLow:      "Faible",
}

// Summary renders everything collected so far for user confirmation.
func Summary(c *Context) string {
	var b strings.Builder
	b.WriteString("RÉSUMÉ DE TON SIGNALEMENT\n\n")

	if c.Category != "" {
		label := categoryLabels[c.Category]
		if label == "" {
			label = c.Category
		}
		fmt.Fprintf(&b, "Type : %s\n", label)
	}
	if c.Urgency != "" {
		fmt.Fprintf(&b, "Urgence : %s\n", urgencyLabels[c.Urgency])
	}
	if c.Location != "" {
		fmt.Fprintf(&b, "Lieu : %s\n", c.Location)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description : %s\n", truncate(c.Description, 100))
	}
	if c.Witnesses != "" {
		fmt.Fprintf(&b, "Témoins : %s\n", c.Witnesses)
	}
	if c.SchoolCode != "" {
		fmt.Fprintf(&b, "École : %s\n", c.SchoolCode)
	}

	b.WriteString("\nTout est correct ?")
	return b.String()
}

var adviceByCategory = map[string]string{
	CategoryHarassment: `CONSEILS CONTRE LE HARCÈLEMENT :

1. Tu n'es pas seul(e), ce n'est PAS de ta faute
2. Parles-en à un adulte de confiance (parent, CPE, prof)
3. Note tout : dates, lieux, témoins
4. Ne réponds pas aux provocations
5. Bloque si c'est en ligne

Numéros utiles :
- 3020 : Non au harcèlement
- 3018 : Cyberharcèlement`,

	CategoryViolence: `EN CAS DE VIOLENCE :

1. Éloigne-toi du danger si possible
2. Préviens un adulte immédiatement
3. Appelle le 17 si danger immédiat
4. Ne reste pas seul(e)
5. Documente (photos blessures si besoin)`,

	CategoryCyber: `CONTRE LE CYBERHARCÈLEMENT :

1. Ne réponds pas aux messages
2. Bloque l'harceleur
3. Garde les preuves (screenshots)
4. Signale sur la plateforme
5. Parles-en à un adulte

3018 : Cyberharcèlement`,

	CategorySexualAssault: `AGRESSION SEXUELLE :

C'est TRÈS grave et ce n'est PAS de ta faute !

1. Tu es en sécurité maintenant ?
2. Appelle le 119 : Allô Enfance en Danger (gratuit, 24h/24)
3. Parles-en à un adulte de confiance
4. Ne te lave pas si récent (preuves médicales)
5. Porter plainte est ton droit

Tu es très courageux(se) d'en parler.`,

	CategoryWeapon: `ARME DÉTECTÉE :

DANGER IMMÉDIAT :

1. Éloigne-toi immédiatement
2. Appelle le 17 (Police) maintenant
3. Préviens un adulte rapidement
4. Ne t'approche PAS de l'arme
5. Mets-toi en sécurité

La police doit intervenir tout de suite !`,
}

// Advice returns category-specific guidance, with a generic fallback.
func Advice(category string) string {
	if advice, ok := adviceByCategory[category]; ok {
		return advice
	}
	return "Tu fais bien de signaler. L'école va t'aider.\n\nN'hésite pas à demander de l'aide à un adulte de confiance."
}
