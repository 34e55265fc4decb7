package diag

import (
	"log/slog"
	"testing"

	"github.com/lunelang/lune/frontend/ir"
	"github.com/stretchr/testify/assert"
)

func TestDiagnosticBuilder(t *testing.T) {
	span := ir.Range{PosStart: 1, PosEnd: 4}
	d := New(FieldNotFound, SeverityError).
		WithLabel(span, "no field `%s`", "nmae").
		WithHelp("did you mean `%s`?", "name")

	assert.Equal(t, FieldNotFound, d.Category)
	primary, ok := d.Primary()
	assert.True(t, ok)
	assert.Equal(t, span, primary.Range)
	assert.Equal(t, "no field `nmae`", primary.Message)
	assert.Contains(t, d.Error(), "did you mean `name`?")
}

func TestFormatWithCode(t *testing.T) {
	d := New(TypeMismatch, SeverityError)
	assert.Equal(t, "error(E001) type mismatch", FormatWithCode(d))
}

func TestNilIssuesAreUsable(t *testing.T) {
	var issues *Issues
	assert.Equal(t, 0, issues.Len())
	assert.False(t, issues.HasFatal())
	assert.Empty(t, issues.Diagnostics())

	issues = issues.With(New(TypeMismatch, SeverityError))
	assert.Equal(t, 1, issues.Len())
	assert.True(t, issues.HasFatal())

	issues = issues.Merge(nil)
	assert.Equal(t, 1, issues.Len())

	var other *Issues
	other = other.With(New(UnconstrainedTypeVariable, SeverityWarning))
	issues = issues.Merge(other)
	assert.Equal(t, 2, issues.Len())
	assert.Len(t, issues.Advisories(), 1)
}

func TestSeverities(t *testing.T) {
	assert.Equal(t, "bug", SeverityBug.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())

	warningOnly := (*Issues)(nil).With(New(UnconstrainedTypeVariable, SeverityWarning))
	assert.False(t, warningOnly.HasFatal(), "warnings alone do not fail a solve")

	withBug := warningOnly.With(New(DanglingGenericReference, SeverityBug))
	assert.True(t, withBug.HasFatal())
}

func TestIssuesLogValue(t *testing.T) {
	var issues *Issues
	issues = issues.With(New(TypeMismatch, SeverityError).
		WithLabel(ir.Range{PosStart: 3, PosEnd: 7}, "these types do not match"))

	v := issues.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	group := v.Group()
	assert.Len(t, group, 1)
	rendered := group[0].Value.String()
	assert.Contains(t, rendered, "type mismatch")
	assert.Contains(t, rendered, "these types do not match")
}
