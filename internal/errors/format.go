package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

var colors = true

// SetColors turns ANSI styling of Format output on or off.
func SetColors(enabled bool) {
	colors = enabled
}

func paint(style, text string) string {
	if !colors || text == "" {
		return text
	}
	return style + text + ansiReset
}

// Format renders the error for a terminal: a header, the source excerpt
// around Location, then detail, hint and cause.
func (e *PackError) Format() string {
	var b strings.Builder
	b.WriteString("\n")
	e.writeHeader(&b)
	e.writeSource(&b)

	for _, line := range wrapText(e.Detail, 70) {
		b.WriteString("  " + line + "\n")
	}
	if e.Detail != "" {
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		b.WriteString("  " + paint(ansiCyan, "Hint: ") + e.Suggestion + "\n\n")
	}
	if e.Wrapped != nil {
		b.WriteString("  " + paint(ansiGray, "Caused by: ") + e.Wrapped.Error() + "\n")
	}
	return b.String()
}

func (e *PackError) writeHeader(b *strings.Builder) {
	word, style := "ERROR", ansiRed
	if e.IsWarning() {
		word, style = "WARNING", ansiYellow
	}
	b.WriteString(paint(style+ansiBold, word) + " ")
	if e.Code != "" {
		b.WriteString(paint(ansiBold, e.Code+":") + " ")
	}
	b.WriteString(e.Message + "\n\n")
}

// writeSource prints the location and, when available, the numbered lines
// around it with a caret under the column.
func (e *PackError) writeSource(b *strings.Builder) {
	if e.Location == nil {
		return
	}
	b.WriteString("  " + paint(ansiCyan, e.Location.String()) + "\n\n")
	if len(e.Context) == 0 {
		return
	}

	first := contextStart(e.Location.Line)
	for i, text := range e.Context {
		n := first + i
		marker := "  "
		if n == e.Location.Line {
			marker = paint(ansiRed, "> ")
		}
		fmt.Fprintf(b, "  %s%4d %s %s\n", marker, n, paint(ansiGray, "|"), text)
		if n == e.Location.Line && e.Location.Column > 0 {
			fmt.Fprintf(b, "  %6s %s %s%s\n", "", paint(ansiGray, "|"),
				strings.Repeat(" ", e.Location.Column-1), paint(ansiRed, "^"))
		}
	}
	b.WriteString("\n")
}

// jsonError is the machine-readable form of a PackError.
type jsonError struct {
	Code       string    `json:"code,omitempty"`
	Category   Category  `json:"category,omitempty"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Location   *Location `json:"location,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	Cause      string    `json:"cause,omitempty"`
}

// FormatJSON renders the error as a single JSON object.
func (e *PackError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Severity:   e.Severity,
		Message:    e.Message,
		Detail:     e.Detail,
		Location:   e.Location,
		Suggestion: e.Suggestion,
	}
	if out.Severity == "" {
		out.Severity = SeverityFatal
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// wrapText splits text into lines of at most width bytes, breaking on
// whitespace. A single word longer than width gets its own line.
func wrapText(text string, width int) []string {
	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Fprint writes err to w, as one JSON line when asJSON is set and as the
// terminal rendering otherwise. Errors that are not PackErrors are shown
// with their message only.
func Fprint(w io.Writer, err error, asJSON bool) {
	pe, ok := As(err)
	if !ok {
		pe = &PackError{Severity: SeverityFatal, Message: err.Error()}
	}
	if asJSON {
		fmt.Fprintln(w, pe.FormatJSON())
		return
	}
	fmt.Fprint(w, pe.Format())
}
