package mcp

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatNumber groups the digits of whole numbers.
func formatNumber(n any) string {
	switch v := n.(type) {
	case int, int64, uint64:
		return printer.Sprintf("%d", v)
	case float64:
		if v == float64(int64(v)) {
			return printer.Sprintf("%d", int64(v))
		}
		return printer.Sprintf("%.1f", v)
	}
	return fmt.Sprint(n)
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func formatMs(v float64) string {
	return fmt.Sprintf("%.1fms", v)
}

// doc accumulates a markdown tool response: sections of aligned key/value lines.
type doc struct {
	b strings.Builder
}

func (d *doc) section(title string) *doc {
	if d.b.Len() > 0 {
		d.b.WriteString("\n\n")
	}
	d.b.WriteString("## " + title)
	return d
}

func (d *doc) kv(key string, value any) *doc {
	fmt.Fprintf(&d.b, "\n%-20s %v", key+":", value)
	return d
}

// kvIf adds the line only when value is non-empty.
func (d *doc) kvIf(key, value string) *doc {
	if value != "" {
		d.kv(key, value)
	}
	return d
}

func (d *doc) line(format string, args ...any) *doc {
	d.b.WriteString("\n")
	fmt.Fprintf(&d.b, format, args...)
	return d
}

func (d *doc) String() string {
	return d.b.String()
}
