package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderAnswer formats a markdown answer for the terminal. Rendering
// failures fall back to the raw text.
func renderAnswer(text string, plain bool) string {
	if plain {
		return text
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
