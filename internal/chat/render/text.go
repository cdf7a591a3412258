package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/technicia/chat-bfa/internal/chat/domain"
)

var rolePrefix = map[domain.Role]string{
	domain.RoleUser:      "vous",
	domain.RoleAssistant: "technicia",
	domain.RoleSystem:    "système",
	domain.RoleError:     "erreur",
}

// Text writes the view as plain text for a terminal.
func Text(w io.Writer, v View) error {
	var sb strings.Builder
	for _, b := range v.Bubbles {
		writeBubble(&sb, b)
	}
	if v.Typing {
		sb.WriteString("technicia> ...\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// TextBubble writes a single message as plain text.
func TextBubble(w io.Writer, b Bubble) error {
	var sb strings.Builder
	writeBubble(&sb, b)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeBubble(sb *strings.Builder, b Bubble) {
	fmt.Fprintf(sb, "%s> %s\n", rolePrefix[b.Role], b.Content)
	if len(b.Sources) == 0 {
		return
	}
	fmt.Fprintf(sb, "  Sources (%d)\n", len(b.Sources))
	for _, c := range b.Sources {
		fmt.Fprintf(sb, "  - %s\n", c.Label())
	}
}
