package tui

import (
	"github.com/charmbracelet/glamour"

	"github.com/jeanpaul/gbagent/internal/memory"
)

// RenderMemory formats the memory list as terminal markdown. With plain
// set the markdown source is returned unstyled, for pipes.
func RenderMemory(entries []string, width int, plain bool) (string, error) {
	md := memory.Markdown(entries)
	if plain {
		return md, nil
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
