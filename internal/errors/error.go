package errors

import (
	"bufio"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryBuild   Category = "build"
	CategoryDev     Category = "dev"
	CategoryPublish Category = "publish"
	CategoryCLI     Category = "cli"
)

// Severity tells callers whether an error should stop the command.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Location represents a source code location.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// PackError is a structured error with an optional source location and suggestion.
type PackError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (build, dev, etc.).
	Category Category

	// Severity is fatal unless the code is registered as a warning.
	Severity Severity

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the source location where the error occurred.
	Location *Location

	// Context contains surrounding source lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PackError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PackError) Unwrap() error {
	return e.Wrapped
}

// IsWarning reports whether the error is advisory.
func (e *PackError) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// WithLocation adds a source location to the error and reads the
// surrounding lines when the file is readable.
func (e *PackError) WithLocation(file string, line, column int) *PackError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PackError) WithSuggestion(s string) *PackError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *PackError) WithDetail(d string) *PackError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *PackError) Wrap(err error) *PackError {
	e.Wrapped = err
	return e
}

// contextRadius is how many lines around a location are kept for display.
const contextRadius = 2

// readContextLines returns the lines of filename within contextRadius of
// line. The first returned line is contextStart(line).
func readContextLines(filename string, line int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	first, last := contextStart(line), line+contextRadius
	var lines []string
	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan() && n <= last; n++ {
		if n >= first {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

func contextStart(line int) int {
	return max(1, line-contextRadius)
}

// New creates a PackError from a registered error code.
func New(code string) *PackError {
	template, ok := registry[code]
	if !ok {
		return &PackError{
			Code:     code,
			Severity: SeverityFatal,
			Message:  "Unknown error",
		}
	}
	severity := template.Severity
	if severity == "" {
		severity = SeverityFatal
	}
	return &PackError{
		Code:     code,
		Category: template.Category,
		Severity: severity,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new PackError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PackError {
	return &PackError{
		Category: category,
		Severity: SeverityFatal,
		Message:  fmt.Sprintf(format, args...),
	}
}

// As returns the first PackError in err's chain.
func As(err error) (*PackError, bool) {
	for err != nil {
		if pe, ok := err.(*PackError); ok {
			return pe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// HasCode reports whether err, or any error it wraps, is a PackError with code.
func HasCode(err error, code string) bool {
	for err != nil {
		pe, ok := As(err)
		if !ok {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Wrapped
	}
	return false
}
