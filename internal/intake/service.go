package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/speakfree/reporting/internal/convstore"
	"github.com/speakfree/reporting/internal/dialogue"
	"github.com/speakfree/reporting/internal/metrics"
	"github.com/speakfree/reporting/internal/ratelimit"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrUnknownSession = errors.New("intake: unknown session")
	ErrRateLimited    = errors.New("intake: rate limited")
	ErrInvalidAccess  = errors.New("intake: invalid access code")
)

// Publisher is the fire-and-forget event sink. A nil Publisher disables
// events without changing the flow.
type Publisher interface {
	PublishReportSubmitted(data []byte) error
}

// ReportSubmittedEvent is published on report.submitted once a report
// row exists, so the scorer can assess it out of band.
type ReportSubmittedEvent struct {
	ReportCode string `json:"report_code"`
	SessionID  string `json:"session_id"`
	SchoolCode string `json:"school_code"`
	Category   string `json:"category"`
	Urgency    string `json:"urgency"`
	Message    string `json:"message"`
	IPAddress  string `json:"ip_address,omitempty"`
	Ts         int64  `json:"ts"`
}

// Session is the response to a new conversation.
type Session struct {
	SessionID  string         `json:"session_id"`
	AccessCode string         `json:"access_code"`
	Welcome    dialogue.Reply `json:"welcome"`
}

// Resumed is the response to a successful access-code verification.
type Resumed struct {
	SessionID  string    `json:"session_id"`
	Status     string    `json:"status"`
	ReportCode string    `json:"report_code,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
}

// Service wires the dialogue machine to conversation persistence,
// rate limiting and event publishing.
//
// Intake turns are deliberately not moderated: a victim describing an
// incident quotes the threats and insults they received, and rejecting
// that text would make the description slot unfillable. The moderation
// gate applies to discussion messages only, via the moderation API and
// the moderator worker.
type Service struct {
	machine       *dialogue.Machine
	contexts      convstore.Store
	conversations *ConvStore
	finalizer     *Finalizer
	limiter       *ratelimit.Limiter
	publisher     Publisher
}

// NewService assembles the intake service. limiter and publisher may be
// nil; the corresponding concern is then skipped.
func NewService(machine *dialogue.Machine, contexts convstore.Store, conversations *ConvStore,
	finalizer *Finalizer, limiter *ratelimit.Limiter, publisher Publisher) *Service {
	return &Service{
		machine:       machine,
		contexts:      contexts,
		conversations: conversations,
		finalizer:     finalizer,
		limiter:       limiter,
		publisher:     publisher,
	}
}

// Init starts a new conversation and returns the session credentials
// with the welcome message.
func (s *Service) Init(ctx context.Context, ip string) (*Session, error) {
	if !s.allow(ctx, ip, ratelimit.RuleInit) {
		return nil, ErrRateLimited
	}

	sessionID := "CHAT-" + uuid.NewString()
	accessCode := NewAccessCode()

	if err := s.conversations.CreateConversation(ctx, sessionID, accessCode); err != nil {
		return nil, err
	}
	if err := s.contexts.Put(ctx, &dialogue.Context{SessionID: sessionID}); err != nil {
		return nil, err
	}

	welcome := dialogue.Welcome()
	if err := s.conversations.AppendMessage(ctx, sessionID, "assistant", welcome.Text, nil); err != nil {
		log.Printf("[intake] append welcome %s: %v", sessionID, err)
	}

	log.Printf("[intake] session %s started", sessionID)
	return &Session{SessionID: sessionID, AccessCode: accessCode, Welcome: welcome}, nil
}

// Message processes one user turn through the dialogue machine, then
// persists the transcript and emits events.
func (s *Service) Message(ctx context.Context, sessionID, text, ip string) (*dialogue.Reply, error) {
	if !s.allow(ctx, sessionID, ratelimit.RuleTurn) {
		return nil, ErrRateLimited
	}

	start := time.Now()

	c, err := s.contexts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUnknownSession
	}

	slot := dialogue.NextRequiredSlot(c)
	reply := s.machine.Advance(ctx, c, text)
	metrics.DialogueTurns.WithLabelValues(string(slot)).Inc()

	if err := s.contexts.Put(ctx, c); err != nil {
		return nil, err
	}
	s.appendTurn(ctx, sessionID, text, &reply, c)

	if reply.ReportCreated {
		s.reportCreated(ctx, c, ip)
	}

	metrics.TurnLatency.Observe(time.Since(start).Seconds())
	return &reply, nil
}

// appendTurn persists both sides of a turn. Transcript writes are
// best-effort: the reply already went out, losing a log line is better
// than failing the turn.
func (s *Service) appendTurn(ctx context.Context, sessionID, text string, reply *dialogue.Reply, c *dialogue.Context) {
	if err := s.conversations.AppendMessage(ctx, sessionID, "user", text, c); err != nil {
		log.Printf("[intake] append user message %s: %v", sessionID, err)
	}
	if err := s.conversations.AppendMessage(ctx, sessionID, "assistant", reply.Text, c); err != nil {
		log.Printf("[intake] append assistant message %s: %v", sessionID, err)
	}
}

func (s *Service) reportCreated(ctx context.Context, c *dialogue.Context, ip string) {
	metrics.ReportsCreated.WithLabelValues(NormalizeCategory(c.Category)).Inc()

	if err := s.conversations.MarkCompleted(ctx, c.SessionID, c.ReportCode); err != nil {
		log.Printf("[intake] mark completed %s: %v", c.SessionID, err)
	}
	if err := s.finalizer.RecordSubmitterIP(ctx, c.ReportCode, ip); err != nil {
		log.Printf("[intake] record submitter ip %s: %v", c.ReportCode, err)
	}

	if s.publisher == nil {
		return
	}
	event := ReportSubmittedEvent{
		ReportCode: c.ReportCode,
		SessionID:  c.SessionID,
		SchoolCode: c.SchoolCode,
		Category:   c.Category,
		Urgency:    c.Urgency,
		Message:    c.Description,
		IPAddress:  ip,
		Ts:         time.Now().Unix(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[intake] marshal event %s: %v", c.SessionID, err)
		return
	}
	if err := s.publisher.PublishReportSubmitted(data); err != nil {
		log.Printf("[intake] publish report.submitted %s: %v", c.ReportCode, err)
	}
}

// VerifyAccess resumes a conversation from its access code.
func (s *Service) VerifyAccess(ctx context.Context, accessCode, ip string) (*Resumed, error) {
	if !s.allow(ctx, ip, ratelimit.RuleVerify) {
		return nil, ErrRateLimited
	}

	conv, err := s.conversations.ByAccessCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrInvalidAccess
	}

	messages, err := s.conversations.Messages(ctx, conv.SessionID, time.Time{})
	if err != nil {
		return nil, err
	}

	return &Resumed{
		SessionID:  conv.SessionID,
		Status:     conv.Status,
		ReportCode: conv.ReportCode,
		Messages:   messages,
		CreatedAt:  conv.CreatedAt,
	}, nil
}

// Messages returns a session's transcript entries created after since,
// for client polling. A zero since returns everything.
func (s *Service) Messages(ctx context.Context, sessionID string, since time.Time) ([]Message, error) {
	conv, err := s.conversations.BySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrUnknownSession
	}
	return s.conversations.Messages(ctx, sessionID, since)
}

// HasAdminReply reports whether an admin has answered in the session.
func (s *Service) HasAdminReply(ctx context.Context, sessionID string) (bool, error) {
	return s.conversations.HasAdminReply(ctx, sessionID)
}

// AccessCode returns the access code for a session, for users who lost
// it mid-conversation.
func (s *Service) AccessCode(ctx context.Context, sessionID string) (string, error) {
	conv, err := s.conversations.BySession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if conv == nil {
		return "", ErrUnknownSession
	}
	return conv.AccessCode, nil
}

// AdminList returns recent conversations for the admin dashboard.
func (s *Service) AdminList(ctx context.Context, limit int) ([]ConversationSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.conversations.List(ctx, limit)
}

// ConversationDetail bundles a conversation with its transcript.
type ConversationDetail struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}

// AdminDetail returns one conversation with its full transcript.
func (s *Service) AdminDetail(ctx context.Context, sessionID string) (*ConversationDetail, error) {
	conv, err := s.conversations.BySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrUnknownSession
	}
	messages, err := s.conversations.Messages(ctx, sessionID, time.Time{})
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: messages}, nil
}

// AdminReply appends an admin message to the transcript and reactivates
// the conversation so the user sees it on the next poll.
func (s *Service) AdminReply(ctx context.Context, sessionID, adminName, text string) error {
	conv, err := s.conversations.BySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrUnknownSession
	}

	if adminName == "" {
		adminName = "Administrateur"
	}
	if err := s.conversations.AppendMessage(ctx, sessionID, "admin", fmt.Sprintf("%s: %s", adminName, text), nil); err != nil {
		return err
	}
	return s.conversations.Reactivate(ctx, sessionID)
}

// AdminDelete removes a conversation, its transcript, and its working
// context.
func (s *Service) AdminDelete(ctx context.Context, sessionID string) error {
	if err := s.conversations.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := s.contexts.Delete(ctx, sessionID); err != nil {
		log.Printf("[intake] delete context %s: %v", sessionID, err)
	}
	return nil
}

// allow runs a rate-limit check, failing open without a limiter.
func (s *Service) allow(ctx context.Context, identifier string, rule ratelimit.Rule) bool {
	if s.limiter == nil || identifier == "" {
		return true
	}
	ok, _ := s.limiter.Allow(ctx, identifier, rule)
	if !ok {
		metrics.RateLimited.WithLabelValues(rule.Key).Inc()
	}
	return ok
}
