package store_test

import (
	"testing"

	"github.com/technicia/chat-bfa/internal/chat/domain"
	"github.com/technicia/chat-bfa/internal/chat/store"
)

func TestReduce_AppendDoesNotMutateInput(t *testing.T) {
	s := domain.SessionState{ID: "s1", Messages: make([]domain.Message, 0, 4)}
	s.Messages = append(s.Messages, domain.NewMessage(domain.RoleUser, "first", nil))

	next := store.Reduce(s, store.AppendMessage{Message: domain.NewMessage(domain.RoleSystem, "second", nil)})

	if len(s.Messages) != 1 {
		t.Fatalf("input state changed: %d messages", len(s.Messages))
	}
	if len(next.Messages) != 2 || next.Messages[1].Content != "second" {
		t.Fatalf("unexpected messages: %+v", next.Messages)
	}

	// Appending to the input again must not clobber the result.
	_ = append(s.Messages, domain.NewMessage(domain.RoleError, "other", nil))
	if next.Messages[1].Content != "second" {
		t.Error("result shares backing array with input")
	}
}

func TestReduce_ResolveByID(t *testing.T) {
	user := domain.NewMessage(domain.RoleUser, "q", nil)
	first := domain.NewPlaceholder()
	second := domain.NewPlaceholder()
	s := domain.SessionState{Messages: []domain.Message{user, first, second}}

	next := store.Reduce(s, store.ResolveMessage{ID: first.ID, Role: domain.RoleAssistant, Content: "45 Nm"})

	if next.Messages[1].Content != "45 Nm" || next.Messages[1].Pending() {
		t.Errorf("expected first placeholder resolved, got %+v", next.Messages[1])
	}
	if !next.Messages[2].Pending() {
		t.Error("expected the other placeholder to stay pending")
	}
	if !s.Messages[1].Pending() {
		t.Error("input state changed")
	}
}

func TestReduce_ResolveTwiceIsNoop(t *testing.T) {
	p := domain.NewPlaceholder()
	s := domain.SessionState{Messages: []domain.Message{p}}

	s = store.Reduce(s, store.ResolveMessage{ID: p.ID, Role: domain.RoleAssistant, Content: "first"})
	s = store.Reduce(s, store.ResolveMessage{ID: p.ID, Role: domain.RoleError, Content: "second"})

	if s.Messages[0].Content != "first" || s.Messages[0].Role != domain.RoleAssistant {
		t.Errorf("resolved message changed: %+v", s.Messages[0])
	}
}

func TestReduce_ResolveUnknownID(t *testing.T) {
	s := domain.SessionState{Messages: []domain.Message{domain.NewPlaceholder()}}

	next := store.Reduce(s, store.ResolveMessage{ID: "missing", Role: domain.RoleAssistant})

	if !next.Messages[0].Pending() {
		t.Error("unrelated placeholder was resolved")
	}
}

func TestReduce_Flags(t *testing.T) {
	s := domain.SessionState{}

	s = store.Reduce(s, store.SetUploading{Value: true})
	if !s.Uploading || s.Loading {
		t.Errorf("expected only uploading set, got %+v", s)
	}

	s = store.Reduce(s, store.SetLoading{Value: true})
	s = store.Reduce(s, store.SetUploading{Value: false})
	if s.Uploading || !s.Loading {
		t.Errorf("expected only loading set, got %+v", s)
	}

	s = store.Reduce(s, store.SetDocument{Name: "report.pdf"})
	if s.Document != "report.pdf" {
		t.Errorf("expected document recorded, got %q", s.Document)
	}
}
