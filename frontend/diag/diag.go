package diag

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lunelang/lune/frontend/ir"
)

// Severity classifies how bad a Diagnostic is.
type Severity int

const (
	// SeverityBug marks states that an earlier compiler phase should have
	// rejected. They are reported like any other diagnostic, never panicked on.
	SeverityBug Severity = iota
	SeverityError
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityBug:
		return "bug"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Label anchors part of a diagnostic to a source span.
type Label struct {
	ir.Range
	Message string
}

// Diagnostic is the externally visible artifact of a failed (or advisory)
// check: a category, a severity, one or more span-anchored labels, and
// optional help/note prose.
type Diagnostic struct {
	Category Category
	Severity Severity
	Labels   []Label
	Help     string
	Note     string

	// cause carries the underlying error for SeverityBug diagnostics,
	// typically created with github.com/pkg/errors so it holds a stack
	cause error
}

func New(category Category, severity Severity) *Diagnostic {
	return &Diagnostic{Category: category, Severity: severity}
}

// WithLabel appends a span-anchored message. The first label added is the
// primary one.
func (d *Diagnostic) WithLabel(pos ir.Positioner, format string, args ...any) *Diagnostic {
	d.Labels = append(d.Labels, Label{
		Range:   ir.RangeOf(pos),
		Message: fmt.Sprintf(format, args...),
	})
	return d
}

func (d *Diagnostic) WithHelp(format string, args ...any) *Diagnostic {
	d.Help = fmt.Sprintf(format, args...)
	return d
}

func (d *Diagnostic) WithNote(format string, args ...any) *Diagnostic {
	d.Note = fmt.Sprintf(format, args...)
	return d
}

// WithCause attaches the underlying error of a SeverityBug diagnostic.
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.cause = err
	return d
}

func (d *Diagnostic) Cause() error { return d.cause }

// Primary returns the first label, which by convention describes the
// diagnostic's main source location.
func (d *Diagnostic) Primary() (Label, bool) {
	if len(d.Labels) == 0 {
		return Label{}, false
	}
	return d.Labels[0], true
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(FormatWithCode(d))
	for _, label := range d.Labels {
		sb.WriteString("\n  at ")
		sb.WriteString(label.Range.String())
		sb.WriteString(": ")
		sb.WriteString(label.Message)
	}
	if d.Help != "" {
		sb.WriteString("\n  help: ")
		sb.WriteString(d.Help)
	}
	if d.Note != "" {
		sb.WriteString("\n  note: ")
		sb.WriteString(d.Note)
	}
	return sb.String()
}

func FormatWithCode(d *Diagnostic) string {
	return fmt.Sprintf("%s(E%03d) %s", d.Severity, d.Category, d.Category)
}

// Issues accumulates diagnostics across solver phases.
// A nil *Issues is a valid empty accumulator: use the return value of
// With/Merge, like appending to a nil slice.
type Issues struct {
	diags []*Diagnostic
}

func (r *Issues) With(diags ...*Diagnostic) *Issues {
	if r == nil {
		return &Issues{diags: diags}
	}
	r.diags = append(r.diags, diags...)
	return r
}

func (r *Issues) Merge(other *Issues) *Issues {
	if r == nil {
		return other
	}
	if other == nil || len(other.diags) == 0 {
		return r
	}
	return r.With(other.diags...)
}

func (r *Issues) Diagnostics() []*Diagnostic {
	if r == nil {
		return nil
	}
	return r.diags
}

func (r *Issues) Len() int {
	if r == nil {
		return 0
	}
	return len(r.diags)
}

// HasFatal reports whether any diagnostic makes the solve a failure.
// Warnings are advisories and do not count.
func (r *Issues) HasFatal() bool {
	if r == nil {
		return false
	}
	for _, d := range r.diags {
		if d.Severity != SeverityWarning {
			return true
		}
	}
	return false
}

// Advisories returns the non-fatal diagnostics, which must still be surfaced
// to the user on a successful solve.
func (r *Issues) Advisories() []*Diagnostic {
	if r == nil {
		return nil
	}
	var advisories []*Diagnostic
	for _, d := range r.diags {
		if d.Severity == SeverityWarning {
			advisories = append(advisories, d)
		}
	}
	return advisories
}

func (r *Issues) LogValue() slog.Value {
	var vals []slog.Attr
	for i, d := range r.Diagnostics() {
		attrs := []slog.Attr{{
			Key:   "msg",
			Value: slog.StringValue(FormatWithCode(d)),
		}}
		if label, ok := d.Primary(); ok {
			attrs = append(attrs, slog.Attr{
				Key:   "at",
				Value: slog.StringValue(label.Range.String() + ": " + label.Message),
			})
		}
		vals = append(vals, slog.Attr{
			Key:   fmt.Sprint("d", i),
			Value: slog.GroupValue(attrs...),
		})
	}
	return slog.GroupValue(vals...)
}
