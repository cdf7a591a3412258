// Package render turns a session state into what the user sees. Build is a
// pure function producing a View; HTML and Text write that view for the
// browser page and the terminal client.
package render

import (
	"strconv"

	"github.com/technicia/chat-bfa/internal/chat/domain"
)

// ExcerptLength is the number of characters of a source shown in a citation.
const ExcerptLength = 100

// View is everything needed to draw the chat window.
type View struct {
	SessionID string
	Bubbles   []Bubble

	// Typing shows the "thinking" indicator after the bubbles.
	Typing bool

	UploadSupported bool
	UploadDisabled  bool
	UploadLabel     string
	QueryDisabled   bool

	// Document is the last indexed file, shown in the header.
	Document string

	// ScrollTo is the DOM id of the element the page scrolls to.
	ScrollTo string
}

// Bubble is one rendered message.
type Bubble struct {
	ID      string
	Role    domain.Role
	Class   string
	Content string
	Sources []Citation
}

// Citation is one line of an assistant message's source list.
type Citation struct {
	Page    string // empty when the backend gave no page number
	Excerpt string
}

// Label is the citation as plain text: "Page 12: Torque: 45 Nm ...".
func (c Citation) Label() string {
	if c.Page == "" {
		return c.Excerpt
	}
	return "Page " + c.Page + ": " + c.Excerpt
}

// Options carries what the state alone does not tell.
type Options struct {
	UploadSupported bool
}

var roleClass = map[domain.Role]string{
	domain.RoleUser:      "msg msg-user",
	domain.RoleAssistant: "msg msg-assistant",
	domain.RoleSystem:    "msg msg-system",
	domain.RoleError:     "msg msg-error",
}

// Build maps a session state to its view.
func Build(state domain.SessionState, opts Options) View {
	v := View{
		SessionID:       state.ID,
		Bubbles:         make([]Bubble, 0, len(state.Messages)),
		Typing:          state.Loading,
		UploadSupported: opts.UploadSupported,
		UploadDisabled:  state.Uploading || !opts.UploadSupported,
		UploadLabel:     "Charger PDF",
		QueryDisabled:   state.Loading,
		Document:        state.Document,
	}
	if state.Uploading {
		v.UploadLabel = "Indexation..."
	}

	for _, m := range state.Messages {
		if m.Pending() {
			// placeholders are drawn as the typing indicator
			v.Typing = true
			continue
		}
		b := Bubble{
			ID:      m.ID,
			Role:    m.Role,
			Class:   roleClass[m.Role],
			Content: m.Content,
		}
		if m.Role == domain.RoleAssistant {
			for _, s := range m.Sources {
				b.Sources = append(b.Sources, citation(s))
			}
		}
		v.Bubbles = append(v.Bubbles, b)
	}

	switch {
	case v.Typing:
		v.ScrollTo = "typing"
	case len(v.Bubbles) > 0:
		v.ScrollTo = "msg-" + v.Bubbles[len(v.Bubbles)-1].ID
	}
	return v
}

func citation(s domain.Source) Citation {
	c := Citation{Excerpt: Truncate(s.Text, ExcerptLength) + "..."}
	if s.PageNumber != nil {
		c.Page = strconv.Itoa(*s.PageNumber)
	}
	return c
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
