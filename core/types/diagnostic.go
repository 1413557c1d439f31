package types

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic. Errors abort code generation for the
// compilation; warnings do not.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// DiagnosticKind categorizes what went wrong.
type DiagnosticKind int

const (
	SyntaxError DiagnosticKind = iota
	UndeclaredVariable
	TypeMismatch
	AmbiguousType
	DuplicateNode
	UnknownNode
	InvalidEscape
	ReservedName
	InternalError
)

var diagnosticKindNames = [...]string{
	SyntaxError:        "syntax error",
	UndeclaredVariable: "undeclared variable",
	TypeMismatch:       "type mismatch",
	AmbiguousType:      "ambiguous type",
	DuplicateNode:      "duplicate node",
	UnknownNode:        "unknown node",
	InvalidEscape:      "invalid escape",
	ReservedName:       "reserved name",
	InternalError:      "internal error",
}

func (k DiagnosticKind) String() string {
	if int(k) < len(diagnosticKindNames) && int(k) >= 0 {
		return diagnosticKindNames[k]
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic is a single compiler finding. Compilation never throws;
// findings accumulate and come back alongside whatever was produced.
type Diagnostic struct {
	Kind         DiagnosticKind
	Severity     Severity
	Message      string
	FileName     string
	Range        Range
	ContextLines []string // the source lines around the finding, for tooling
}

// Line and Column expose the start of the offending range.
func (d Diagnostic) Line() int   { return d.Range.Start.Line }
func (d Diagnostic) Column() int { return d.Range.Start.Column }

// Error renders the diagnostic with a caret snippet when context is
// available:
//
//	syntax error: expected '>>'
//	  --> intro.yarn:5:13
//	   |
//	 5 | <<set $x = 1
//	   |             ^
func (d Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Kind, d.Message)
	if d.FileName != "" || d.Range.Start.Line > 0 {
		fmt.Fprintf(&b, "\n  --> %s:%d:%d", d.FileName, d.Line(), d.Column())
	}
	if snippet := d.snippet(); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
	}
	return b.String()
}

func (d Diagnostic) snippet() string {
	if len(d.ContextLines) == 0 {
		return ""
	}
	// Context lines are centered on the offending line.
	first := d.Line() - len(d.ContextLines)/2
	if first < 1 {
		first = 1
	}
	var b strings.Builder
	b.WriteString("   |")
	for i, line := range d.ContextLines {
		n := first + i
		fmt.Fprintf(&b, "\n%2d | %s", n, line)
		if n == d.Line() && d.Column() > 0 && d.Column() <= len(line)+1 {
			fmt.Fprintf(&b, "\n   | %s^", strings.Repeat(" ", d.Column()-1))
		}
	}
	return b.String()
}

// ContextAround extracts the source lines surrounding pos for embedding
// into a Diagnostic. It returns up to one line before and one after.
func ContextAround(source string, pos Position) []string {
	lines := strings.Split(source, "\n")
	if pos.Line < 1 || pos.Line > len(lines) {
		return nil
	}
	first := pos.Line - 1
	if first < 1 {
		first = 1
	}
	last := pos.Line + 1
	if last > len(lines) {
		last = len(lines)
	}
	out := make([]string, 0, last-first+1)
	for n := first; n <= last; n++ {
		out = append(out, strings.TrimRight(lines[n-1], "\r"))
	}
	return out
}

// HasErrors reports whether any diagnostic in the slice is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
