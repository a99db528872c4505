package render

import (
	"github.com/charmbracelet/glamour"
)

// Preview renders markdown for terminal display. Falls back to the raw
// markdown when the renderer cannot be built.
func Preview(markdown string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
