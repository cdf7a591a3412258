package render

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Page writes the full chat page.
func Page(w io.Writer, v View) error {
	return templates.ExecuteTemplate(w, "page.html", v)
}

// Messages writes the message list fragment the page swaps in after each action.
func Messages(w io.Writer, v View) error {
	return templates.ExecuteTemplate(w, "messages", v)
}
