package utils

import (
	"strings"

	"github.com/PolarWolf314/veil/internal/ui"
)

// FormatList formats items one per line, each rendered with f.
func FormatList(items []string, f ui.Formatter) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("    - ")
		b.WriteString(f.Sprint(item))
		b.WriteString("\n")
	}
	return b.String()
}
