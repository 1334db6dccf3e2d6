package dialogue

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Machine drives the guided intake conversation. It is stateless: all
// conversation state lives in the Context passed to Advance, so a single
// Machine serves every session concurrently.
type Machine struct {
	dir Directory
	fin Finalizer
}

// NewMachine builds a dialogue machine with the given school directory
// and report finalizer.
func NewMachine(dir Directory, fin Finalizer) *Machine {
	return &Machine{dir: dir, fin: fin}
}

// Welcome returns the opening message and starter quick actions for a
// fresh session.
func Welcome() Reply {
	return Reply{
		Text: "Bonjour ! Je suis là pour t'aider à signaler un problème dans ton école de manière sécurisée et confidentielle.\n\n" +
			"Je vais te poser quelques questions pour bien comprendre ta situation. Tout est confidentiel.\n\n" +
			"Pour commencer, peux-tu me dire ce qui se passe ?",
		QuickActions: []QuickAction{
			{Label: "Harcèlement", Message: "Je suis victime de harcèlement"},
			{Label: "Violence physique", Message: "Il y a de la violence physique"},
			{Label: "Drogue", Message: "C'est lié à la drogue"},
			{Label: "Arme", Message: "J'ai vu une arme"},
			{Label: "Cyberharcèlement", Message: "Je suis victime de cyberharcelement"},
			{Label: "Situation urgente", Message: "C'est une situation urgente"},
			{Label: "Vol/Racket", Message: "Il y a eu un vol ou du racket"},
			{Label: "Autre problème", Message: "Je veux signaler autre chose"},
		},
	}
}

// Advance processes one user message, mutating c in place and returning
// the reply. It never returns an error: lookup and persistence failures
// surface as apologetic replies while the context stays intact, so the
// user can simply retry.
func (m *Machine) Advance(ctx context.Context, c *Context, message string) Reply {
	lower := strings.ToLower(message)

	switch NextRequiredSlot(c) {
	case SlotCategory:
		return fillCategory(c, lower)
	case SlotLocation:
		return fillLocation(c, message)
	case SlotDescription:
		return fillDescription(c, message, lower)
	case SlotWitnesses:
		return fillWitnesses(c, lower)
	case SlotSchoolCode:
		return m.fillSchoolCode(ctx, c, message, lower)
	case SlotContactDecision:
		return m.fillContactDecision(ctx, c, lower)
	case SlotContactInfo:
		return m.fillContactInfo(ctx, c, message)
	default:
		return m.handleFollowUp(ctx, c, lower)
	}
}

func fillCategory(c *Context, lower string) Reply {
	category, forcedUrgency := inferCategory(lower)
	if category == "" {
		return Reply{
			Text: "Je vois. Peux-tu me donner plus de détails sur ce qui se passe ? Cela m'aidera à mieux comprendre la situation.\n\n" +
				"Par exemple :\n- Est-ce du harcèlement ?\n- De la violence ?\n- Un vol ?\n- Autre chose ?",
			QuickActions: []QuickAction{
				{Label: "Harcèlement", Message: "C'est du harcèlement"},
				{Label: "Violence", Message: "C'est de la violence"},
				{Label: "Drogue", Message: "C'est lié à la drogue"},
				{Label: "Arme", Message: "J'ai vu une arme"},
			},
		}
	}

	c.Category = category
	if forcedUrgency != "" {
		c.Urgency = forcedUrgency
	}

	switch category {
	case CategoryWeapon:
		return Reply{Text: "C'est une situation EXTRÊMEMENT URGENTE. Merci de me le signaler.\n\n" +
			"Où as-tu vu cette arme ? Peux-tu me donner des détails précis ?\n\n" +
			"Si tu es en danger immédiat, contacte aussi les autorités (police 17)."}
	case CategorySexualAssault:
		return Reply{Text: "C'est une situation TRÈS GRAVE. Tu es très courageux(se) de me le dire.\n\n" +
			"Où cela s'est-il passé ?\n\n" +
			"Important : tu peux aussi appeler le 119 (Allô Enfance en Danger) pour parler à quelqu'un immédiatement."}
	case CategoryAdult:
		return Reply{Text: "Je comprends que cela implique un adulte de l'établissement. C'est très sérieux.\n\n" +
			"Peux-tu me dire où cela se passe ?"}
	case CategoryViolence:
		return Reply{Text: "Je comprends qu'il y a une situation de violence. C'est très sérieux et nous allons t'aider.\n\n" +
			"Peux-tu me dire où cela se passe ?"}
	case CategoryDrugs:
		return Reply{Text: "Merci de signaler cette situation de drogue. C'est important.\n\n" +
			"Peux-tu me dire où cela se passe dans l'école ?"}
	case CategoryTheft:
		return Reply{Text: "Je comprends qu'il y a eu un vol ou du racket. Nous allons t'aider.\n\n" +
			"Où est-ce que cela s'est passé ?"}
	case CategoryCyber:
		return Reply{Text: "Je comprends que tu es victime de cyberharcèlement. C'est un problème très sérieux.\n\n" +
			"Où cela se passe-t-il principalement ? (réseaux sociaux, messages, groupes de classe, etc.)"}
	case CategoryDiscrimination:
		return Reply{Text: "Je comprends que tu es victime de discrimination. C'est inacceptable.\n\n" +
			"Peux-tu me dire où cela se passe ?"}
	default:
		return Reply{Text: "Je comprends que tu es victime de harcèlement. C'est très courageux de ta part d'en parler.\n\n" +
			"Peux-tu me dire où cela se passe ? (classe, cour de récréation, couloirs, etc.)"}
	}
}

func fillLocation(c *Context, message string) Reply {
	c.Location = extractLocation(message)
	return Reply{Text: fmt.Sprintf("D'accord, noté pour le lieu : %s\n\n"+
		"Maintenant, peux-tu me décrire ce qui s'est passé ? Donne-moi autant de détails que possible pour que l'administration puisse bien comprendre.", c.Location)}
}

func fillDescription(c *Context, message, lower string) Reply {
	c.Description = message
	if c.Urgency == "" {
		c.Urgency = inferUrgency(lower)
	}

	empathy := "Merci pour ces informations détaillées. Je comprends mieux la situation."
	switch c.Category {
	case CategoryHarassment, CategoryCyber:
		empathy = "Merci d'avoir partagé ça avec moi. Le harcèlement n'est jamais acceptable et tu as raison de le signaler."
	case CategoryViolence:
		empathy = "C'est très courageux de ta part de parler de cette violence. Personne ne devrait vivre ça."
	case CategorySexualAssault:
		empathy = "Merci de ta confiance. Ce que tu vis n'est PAS de ta faute. Tu as bien fait de me le dire."
	}

	return Reply{
		Text: empathy + "\n\nY a-t-il des témoins ? D'autres personnes ont-elles vu ce qui s'est passé ?",
		QuickActions: []QuickAction{
			{Label: "Oui, il y a des témoins", Message: "Oui, il y a des témoins"},
			{Label: "Non, pas de témoins", Message: "Non, personne n'a vu"},
			{Label: "Je ne sais pas", Message: "Je ne sais pas s'il y a des témoins"},
		},
	}
}

func fillWitnesses(c *Context, lower string) Reply {
	c.Witnesses = parseWitnesses(lower)
	return Reply{Text: "Parfait. Maintenant, j'ai besoin de connaître le code de ton école pour créer le signalement.\n\n" +
		"Peux-tu me donner le code de ton école ? (Si tu ne le connais pas, demande à un adulte ou cherche sur le site de ton école)"}
}

func (m *Machine) fillSchoolCode(ctx context.Context, c *Context, message, lower string) Reply {
	if c.AwaitingSchoolName || containsAny(lower, "ne connais pas", "ne sais pas", "s'appelle") {
		return m.lookupSchoolByName(ctx, c, message)
	}

	code := extractSchoolCode(message)
	if code == "" {
		return Reply{
			Text: "Je n'ai pas bien compris le code de ton école.\n\n" +
				"Format attendu : ECO3847 (3 lettres + chiffres)\n\n" +
				"Exemples corrects : ECO3847, LYC1234, COL9876\n\n" +
				"Peux-tu me donner le code de ton école ?\n\n" +
				"Si tu ne le connais pas, tape : \"Je ne connais pas le code\"",
			QuickActions: []QuickAction{
				{Label: "Je ne connais pas le code", Message: "Je ne connais pas le code de mon école"},
			},
		}
	}

	school, err := m.dir.SchoolByCode(ctx, code)
	if err != nil {
		log.Printf("[dialogue] school lookup %s: %v", code, err)
		return Reply{Text: "Désolé, je n'arrive pas à vérifier ce code pour le moment. Peux-tu réessayer dans un instant ?"}
	}
	if school == nil {
		return Reply{
			Text: fmt.Sprintf("Je ne trouve pas le code \"%s\" dans notre système.\n\n"+
				"Voici comment retrouver ton code d'école :\n\n"+
				"1. Demande à un adulte (parent, professeur)\n"+
				"2. Regarde sur le site web de ton école\n"+
				"3. Vérifie tes documents scolaires (carnet, inscription)\n\n"+
				"Le format est : 3 lettres + chiffres (exemple: ECO3847)\n\n"+
				"Tu peux aussi essayer avec le nom de ton école. Tape : \"Mon école s'appelle [nom]\"", code),
			QuickActions: []QuickAction{
				{Label: "Essayer avec le nom", Message: "Je ne connais pas le code, mon école s'appelle"},
				{Label: "Réessayer le code", Message: "Je veux réessayer avec un autre code"},
			},
		}
	}

	c.SchoolCode = code
	c.AwaitingSchoolName = false

	if c.IsUrgent() {
		qualifier := "importante"
		if c.Urgency == UrgencyCritical {
			qualifier = "URGENTE"
		}
		return Reply{
			Text: fmt.Sprintf("École trouvée : %s\n\n"+
				"Étant donné que c'est une situation %s, veux-tu laisser tes coordonnées pour que l'école puisse te contacter rapidement ?\n\n"+
				"C'est optionnel, mais cela peut permettre une intervention plus rapide.", code, qualifier),
			QuickActions: []QuickAction{
				{Label: "Oui, je laisse mes coordonnées", Message: "Oui, je veux laisser mes coordonnées"},
				{Label: "Non, je reste anonyme", Message: "Non, je préfère rester anonyme"},
			},
		}
	}

	return m.finalize(ctx, c, "Parfait ! J'ai toutes les informations nécessaires.\n\n"+
		"Je crée maintenant ton signalement de manière sécurisée. Tu vas recevoir un code de suivi et un code d'accès pour suivre ton dossier.")
}

func (m *Machine) lookupSchoolByName(ctx context.Context, c *Context, message string) Reply {
	name := extractSchoolName(message)
	if name == "" {
		c.AwaitingSchoolName = true
		return Reply{Text: "D'accord, pas de problème !\n\n" +
			"Pour t'aider à trouver ton école, peux-tu me donner son nom ?\n\n" +
			"Écris : \"Mon école s'appelle [nom complet de ton école]\"\n\n" +
			"Exemple : \"Mon école s'appelle Collège Jules Ferry\""}
	}

	schools, err := m.dir.SearchByName(ctx, name)
	if err != nil {
		log.Printf("[dialogue] school search %q: %v", name, err)
		return Reply{Text: "Désolé, la recherche d'école ne répond pas pour le moment. Peux-tu réessayer dans un instant ?"}
	}
	if len(schools) == 0 {
		return Reply{Text: "Je n'ai pas trouvé d'école avec ce nom.\n\n" +
			"Essaye de donner plus de détails ou le nom complet de ton école.\n\n" +
			"Exemple : \"Mon école s'appelle Lycée Victor Hugo\""}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "J'ai trouvé %d école(s) qui correspond(ent) :\n\n", len(schools))
	reply := Reply{}
	for i, school := range schools {
		fmt.Fprintf(&b, "%d. %s (Code: %s)\n", i+1, school.Name, school.Code)
		reply.QuickActions = append(reply.QuickActions, QuickAction{
			Label:   school.Name,
			Message: school.Code,
		})
	}
	b.WriteString("\nClique sur ton école pour continuer !")
	c.AwaitingSchoolName = false
	reply.Text = b.String()
	return reply
}

func (m *Machine) fillContactDecision(ctx context.Context, c *Context, lower string) Reply {
	if containsAny(lower, "oui", "coordonnées", "contact") {
		c.ContactDecision = "yes"
		return Reply{Text: "D'accord. Pour que l'école puisse te contacter :\n\n" +
			"Peux-tu me donner ton prénom et un numéro de téléphone ou email ?\n\n" +
			"Format : Prénom - Téléphone/Email"}
	}

	c.ContactDecision = "no"
	return m.finalize(ctx, c, "Pas de problème, ton signalement restera totalement anonyme.\n\n"+
		"Je crée maintenant ton signalement...")
}

func (m *Machine) fillContactInfo(ctx context.Context, c *Context, message string) Reply {
	c.Contact = extractContactInfo(message)
	return m.finalize(ctx, c, "Informations de contact enregistrées.\n\n"+
		"Je crée maintenant ton signalement avec tes coordonnées pour une intervention rapide.")
}

// handleFollowUp serves the conversation after every required slot is
// filled: explicit create commands, summary, modification menu, advice,
// and a default prompt.
func (m *Machine) handleFollowUp(ctx context.Context, c *Context, lower string) Reply {
	switch {
	case containsAny(lower, "crée", "créer", "finaliser") && strings.Contains(lower, "signalement"):
		return m.finalize(ctx, c, "Parfait ! Je crée ton signalement maintenant.")

	case containsAny(lower, "résumé", "recap"):
		reply := Reply{Text: Summary(c)}
		reply.QuickActions = []QuickAction{
			{Label: "Créer le signalement", Message: "Oui, crée le signalement maintenant"},
			{Label: "Modifier quelque chose", Message: "Je veux modifier quelque chose"},
		}
		return reply

	case containsAny(lower, "modifier", "changer"):
		return Reply{
			Text: "Que veux-tu modifier ?",
			QuickActions: []QuickAction{
				{Label: "Le lieu", Message: "Je veux changer le lieu"},
				{Label: "La description", Message: "Je veux modifier la description"},
				{Label: "Les témoins", Message: "Je veux modifier les témoins"},
				{Label: "Annuler", Message: "Finalement non, continue"},
			},
		}

	case containsAny(lower, "aide", "conseil"):
		return Reply{
			Text: Advice(c.Category),
			QuickActions: []QuickAction{
				{Label: "Créer le signalement", Message: "Merci, je veux créer le signalement"},
				{Label: "Parler plus", Message: "Je veux en parler plus"},
			},
		}

	default:
		return Reply{
			Text: "Je comprends. Y a-t-il autre chose que tu veux ajouter à ton signalement ?\n\n" +
				"Tu peux aussi :\n" +
				"- Taper \"résumé\" pour voir tout ce que j'ai noté\n" +
				"- Taper \"aide\" pour des conseils\n" +
				"- Taper \"modifier\" pour changer une information",
			QuickActions: []QuickAction{
				{Label: "Créer le signalement", Message: "Non, c'est bon, crée le signalement"},
				{Label: "Ajouter des détails", Message: "Oui, je veux ajouter des détails"},
				{Label: "Voir le résumé", Message: "Montre-moi le résumé"},
			},
		}
	}
}

// finalize creates the report exactly once. Replays return the stored
// codes without touching storage; failures keep the context intact so
// the user can retry the create command.
func (m *Machine) finalize(ctx context.Context, c *Context, lead string) Reply {
	if c.Finalized() {
		return Reply{
			Text: fmt.Sprintf("Ton signalement a déjà été créé.\n\n"+
				"Code de suivi : %s\nCode d'accès : %s\n\n"+
				"Garde ces codes précieusement pour suivre ton dossier.", c.ReportCode, c.AccessCode),
			ReportCode: c.ReportCode,
			AccessCode: c.AccessCode,
		}
	}

	receipt, err := m.fin.Create(ctx, c)
	if err != nil {
		log.Printf("[dialogue] finalize session %s: %v", c.SessionID, err)
		return Reply{Text: "Désolé, je n'ai pas réussi à enregistrer ton signalement. " +
			"Tes informations sont conservées, réessaye dans un instant en tapant \"créer le signalement\"."}
	}

	c.ReportCode = receipt.ReportCode
	c.AccessCode = receipt.AccessCode

	return Reply{
		Text: lead + fmt.Sprintf("\n\nTon signalement est enregistré.\n\n"+
			"Code de suivi : %s\nCode d'accès : %s\n\n"+
			"Garde ces codes précieusement pour suivre ton dossier.", receipt.ReportCode, receipt.AccessCode),
		ReportCreated: true,
		ReportCode:    receipt.ReportCode,
		AccessCode:    receipt.AccessCode,
	}
}
