package report

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// DefaultStyle picks dark or light from the terminal background.
const DefaultStyle = "auto"

// Render renders markdown for the terminal. style is a glamour standard
// style name ("dark", "light", "notty", "ascii") or "auto".
func Render(md, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(0)}
	if style == "" || style == DefaultStyle {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}
