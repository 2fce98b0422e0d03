package inbox

import (
	"context"
	"fmt"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Inbox_RecordAndListContacts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordContact(ctx, "ada@example.com", "Ada", "asked about consulting"); err != nil {
		t.Fatalf("record contact: %v", err)
	}

	contacts, err := s.RecentContacts(ctx, 10)
	if err != nil {
		t.Fatalf("recent contacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("want 1 contact, got %d", len(contacts))
	}
	c := contacts[0]
	if c.Email != "ada@example.com" || c.Name != "Ada" || c.Notes != "asked about consulting" {
		t.Errorf("contact fields: got %+v", c)
	}
	if c.CreatedAt.IsZero() {
		t.Error("contact timestamp not set")
	}
}

func Test_Inbox_RecordAndListQuestions(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.RecordQuestion(ctx, "What is your favourite colour?"); err != nil {
		t.Fatalf("record question: %v", err)
	}

	questions, err := s.RecentQuestions(ctx, 10)
	if err != nil {
		t.Fatalf("recent questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Text != "What is your favourite colour?" {
		t.Errorf("questions: got %+v", questions)
	}
}

func Test_Inbox_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		if err := s.RecordQuestion(ctx, fmt.Sprintf("q%d", i)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	questions, err := s.RecentQuestions(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(questions) != 4 {
		t.Errorf("want 4 questions, got %d", len(questions))
	}
	// Newest first: q5 leads.
	if questions[0].Text != "q5" {
		t.Errorf("want newest question first, got %q", questions[0].Text)
	}
}

func Test_Inbox_EmptyStoreReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	contacts, err := s.RecentContacts(ctx, 10)
	if err != nil {
		t.Fatalf("recent contacts: %v", err)
	}
	if len(contacts) != 0 {
		t.Errorf("want 0 contacts, got %d", len(contacts))
	}

	questions, err := s.RecentQuestions(ctx, 10)
	if err != nil {
		t.Fatalf("recent questions: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("want 0 questions, got %d", len(questions))
	}
}
