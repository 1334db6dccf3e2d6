// Package dialogue implements the guided intake conversation: a
// deterministic slot-filling state machine that turns free-text chat
// into a structured incident report. The machine owns no storage; the
// caller loads and saves the Context around each turn and injects the
// organization directory and report finalizer as capabilities.
package dialogue

import "context"

// Report categories used by the conversational taxonomy. The persisted
// report enum is smaller; see the intake package for the normalization.
const (
	CategoryHarassment     = "harcelement"
	CategoryViolence       = "violence"
	CategoryDrugs          = "drogue"
	CategoryTheft          = "vol"
	CategoryWeapon         = "arme"
	CategoryCyber          = "cyberharcelement"
	CategoryDiscrimination = "discrimination"
	CategoryAdult          = "adulte"
	CategorySexualAssault  = "agression_sexuelle"
)

// Urgency levels, highest first.
const (
	UrgencyCritical = "critique"
	UrgencyHigh     = "eleve"
	UrgencyMedium   = "moyen"
	UrgencyLow      = "faible"
)

// ContactInfo holds optional submitter contact details for urgent cases.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// Context is the working memory of one intake conversation. Slots fill
// progressively and are never overwritten once set. It is owned by a
// single session and serialized as-is into the session store between
// turns.
type Context struct {
	SessionID string `json:"session_id"`

	Category    string `json:"category,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Witnesses   string `json:"witnesses,omitempty"`
	SchoolCode  string `json:"school_code,omitempty"`

	ContactDecision string       `json:"contact_decision,omitempty"` // "yes" | "no"
	Contact         *ContactInfo `json:"contact,omitempty"`

	UserType  string `json:"user_type,omitempty"`
	FacePhoto string `json:"face_photo,omitempty"`

	// AwaitingSchoolName flips the school slot's expected input from a
	// code to a school name while the lookup fallback is active.
	AwaitingSchoolName bool `json:"awaiting_school_name,omitempty"`

	// ReportCode/AccessCode are set once finalization succeeds and guard
	// against duplicate report creation.
	ReportCode string `json:"report_code,omitempty"`
	AccessCode string `json:"access_code,omitempty"`
}

// IsUrgent reports whether the contact-decision branch applies.
func (c *Context) IsUrgent() bool {
	return c.Urgency == UrgencyCritical || c.Urgency == UrgencyHigh
}

// Finalized reports whether a report has already been created from this
// context.
func (c *Context) Finalized() bool {
	return c.ReportCode != ""
}

// Slot names one field of the guided dialogue.
type Slot string

const (
	SlotCategory        Slot = "category"
	SlotLocation        Slot = "location"
	SlotDescription     Slot = "description"
	SlotWitnesses       Slot = "witnesses"
	SlotSchoolCode      Slot = "school_code"
	SlotContactDecision Slot = "contact_decision"
	SlotContactInfo     Slot = "contact_info"

	// SlotComplete means every required slot is filled.
	SlotComplete Slot = "complete"
)

// slotRule describes one entry of the required-fill order.
type slotRule struct {
	slot     Slot
	filled   func(*Context) bool
	required func(*Context) bool
}

func always(*Context) bool { return true }

// slotOrder is the fixed priority order the machine asks questions in.
// The two contact slots are only required for urgent situations.
var slotOrder = []slotRule{
	{SlotCategory, func(c *Context) bool { return c.Category != "" }, always},
	{SlotLocation, func(c *Context) bool { return c.Location != "" }, always},
	{SlotDescription, func(c *Context) bool { return c.Description != "" }, always},
	{SlotWitnesses, func(c *Context) bool { return c.Witnesses != "" }, always},
	{SlotSchoolCode, func(c *Context) bool { return c.SchoolCode != "" }, always},
	{SlotContactDecision,
		func(c *Context) bool { return c.ContactDecision != "" },
		func(c *Context) bool { return c.IsUrgent() }},
	{SlotContactInfo,
		func(c *Context) bool { return c.Contact != nil },
		func(c *Context) bool { return c.IsUrgent() && c.ContactDecision == "yes" }},
}

// NextRequiredSlot returns the first unfilled required slot, or
// SlotComplete when the context has everything it needs.
func NextRequiredSlot(c *Context) Slot {
	for _, rule := range slotOrder {
		if rule.required(c) && !rule.filled(c) {
			return rule.slot
		}
	}
	return SlotComplete
}

// QuickAction is a suggested reply button shown alongside a prompt.
type QuickAction struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Reply is the machine's answer to one inbound message.
type Reply struct {
	Text         string        `json:"text"`
	QuickActions []QuickAction `json:"quick_actions,omitempty"`

	// ReportCreated is true only on the turn that actually created the
	// report. Replays of the create command return the codes again with
	// ReportCreated false.
	ReportCreated bool   `json:"report_created"`
	ReportCode    string `json:"report_code,omitempty"`
	AccessCode    string `json:"access_code,omitempty"`
}

// School is an organization directory entry.
type School struct {
	ID   int64
	Code string
	Name string
}

// Directory resolves schools by code or name.
type Directory interface {
	// SchoolByCode returns the school for a code, or nil if absent.
	SchoolByCode(ctx context.Context, code string) (*School, error)

	// SearchByName returns up to 5 schools whose name matches.
	SearchByName(ctx context.Context, name string) ([]School, error)
}

// Receipt is returned by the finalizer after a report is created.
type Receipt struct {
	ReportCode string
	AccessCode string
}

// Finalizer turns a completed context into a persisted report.
type Finalizer interface {
	Create(ctx context.Context, c *Context) (*Receipt, error)
}
