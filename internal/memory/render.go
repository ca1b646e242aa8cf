package memory

import (
	"fmt"
	"strings"
)

// Render formats entries as the bullet list embedded in prompts.
func Render(entries []string) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(e)
	}
	return b.String()
}

// Numbered formats entries with the 1-based indices the model uses for
// remove and update.
func Numbered(entries []string) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return b.String()
}

// Markdown renders entries as a document for terminal display.
func Markdown(entries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Memory\n\n_%d entries_\n\n", len(entries))
	for i, e := range entries {
		// keep model text from being read as markdown structure
		e = strings.NewReplacer("*", `\*`, "_", `\_`, "#", `\#`).Replace(e)
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return b.String()
}
