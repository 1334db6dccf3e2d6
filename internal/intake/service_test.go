package intake

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/speakfree/reporting/internal/convstore"
	"github.com/speakfree/reporting/internal/dialogue"
)

// A victim describing an incident quotes the threats they received. The
// turn must flow straight into the dialogue machine and fill the
// description slot, not get filtered on its wording.
func TestServiceMessage_ThreatQuoteFillsDescription(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// One turn persists the user message and the assistant reply.
	mock.ExpectExec("INSERT INTO ai_messages").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ai_messages").
		WillReturnResult(sqlmock.NewResult(2, 1))

	contexts := convstore.NewMemoryStore()
	ctx := context.Background()
	if err := contexts.Put(ctx, &dialogue.Context{
		SessionID: "CHAT-1",
		Category:  dialogue.CategoryHarassment,
		Location:  "Cour de récréation",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	machine := dialogue.NewMachine(&fixedDirectory{}, nil)
	service := NewService(machine, contexts, NewConvStore(db), nil, nil, nil)

	quoted := "Il m'a envoyé un message disant je vais te tuer, crève"
	reply, err := service.Message(ctx, "CHAT-1", quoted, "203.0.113.9")
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if !strings.Contains(reply.Text, "témoins") {
		t.Errorf("reply = %q, want the witnesses question", reply.Text)
	}

	c, err := contexts.Get(ctx, "CHAT-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Description != quoted {
		t.Errorf("Description = %q, want the quoted message stored verbatim", c.Description)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestServiceMessage_UnknownSession(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	machine := dialogue.NewMachine(&fixedDirectory{}, nil)
	service := NewService(machine, convstore.NewMemoryStore(), NewConvStore(db), nil, nil, nil)

	_, err = service.Message(context.Background(), "CHAT-nope", "bonjour", "")
	if err != ErrUnknownSession {
		t.Errorf("Message on unknown session = %v, want ErrUnknownSession", err)
	}
}
