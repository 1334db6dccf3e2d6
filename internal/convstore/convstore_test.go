package convstore

import (
	"context"
	"testing"

	"github.com/speakfree/reporting/internal/dialogue"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.Get(ctx, "CHAT-missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get on empty store = %+v, want nil", got)
	}

	c := &dialogue.Context{
		SessionID: "CHAT-1",
		Category:  dialogue.CategoryViolence,
		Urgency:   dialogue.UrgencyHigh,
		Contact:   &dialogue.ContactInfo{Name: "Emma", Phone: "0612345678"},
	}
	if err := s.Put(ctx, c); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err = s.Get(ctx, "CHAT-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Category != dialogue.CategoryViolence {
		t.Fatalf("Get = %+v, want stored context", got)
	}

	// The store hands out copies; mutating one must not leak back.
	got.Category = dialogue.CategoryTheft
	got.Contact.Phone = "0000000000"
	again, _ := s.Get(ctx, "CHAT-1")
	if again.Category != dialogue.CategoryViolence {
		t.Error("stored context mutated through a returned copy")
	}
	if again.Contact.Phone != "0612345678" {
		t.Error("stored contact mutated through a returned copy")
	}

	// Put must detach from the caller's pointer too.
	c.Contact.Name = "changed"
	again, _ = s.Get(ctx, "CHAT-1")
	if again.Contact.Name != "Emma" {
		t.Error("stored contact shares the caller's pointer after Put")
	}

	if err := s.Delete(ctx, "CHAT-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = s.Get(ctx, "CHAT-1")
	if got != nil {
		t.Error("context still present after Delete")
	}
}
