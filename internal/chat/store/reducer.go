// Package store holds chat session state.
//
// State changes are expressed as actions applied by a pure reducer, so every
// transition (append a message, resolve a placeholder, toggle a flag) can be
// tested on its own. Store serialises dispatches for one session and Registry
// keeps the live sessions.
package store

import (
	"github.com/technicia/chat-bfa/internal/chat/domain"
)

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

// AppendMessage adds a message at the end of the transcript.
type AppendMessage struct {
	Message domain.Message
}

// ResolveMessage turns the pending message with the given id into its final
// form. It is a no-op when no pending message has that id.
type ResolveMessage struct {
	ID      string
	Role    domain.Role
	Content string
	Sources []domain.Source
}

// SetUploading toggles the uploading flag.
type SetUploading struct{ Value bool }

// SetLoading toggles the loading flag.
type SetLoading struct{ Value bool }

// SetDocument records the last successfully indexed document.
type SetDocument struct{ Name string }

func (AppendMessage) isAction()  {}
func (ResolveMessage) isAction() {}
func (SetUploading) isAction()   {}
func (SetLoading) isAction()     {}
func (SetDocument) isAction()    {}

// Reduce returns the state that results from applying a to s.
// s is never modified.
func Reduce(s domain.SessionState, a Action) domain.SessionState {
	next := s
	switch a := a.(type) {
	case AppendMessage:
		next.Messages = make([]domain.Message, len(s.Messages), len(s.Messages)+1)
		copy(next.Messages, s.Messages)
		next.Messages = append(next.Messages, a.Message)

	case ResolveMessage:
		idx := -1
		for i, m := range s.Messages {
			if m.ID == a.ID && m.Pending() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s
		}
		next.Messages = make([]domain.Message, len(s.Messages))
		copy(next.Messages, s.Messages)
		m := next.Messages[idx]
		m.Role = a.Role
		m.Content = a.Content
		m.Sources = a.Sources
		m.Status = domain.StatusResolved
		next.Messages[idx] = m

	case SetUploading:
		next.Uploading = a.Value

	case SetLoading:
		next.Loading = a.Value

	case SetDocument:
		next.Document = a.Name
	}
	return next
}
