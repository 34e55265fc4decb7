package types

import (
	"fmt"

	"github.com/lunelang/lune/frontend/ir"
)

// HoleID identifies a fresh type variable introduced during inference.
type HoleID uint64

// GenericArgumentID identifies a declared generic argument.
type GenericArgumentID uint64

type variableTag uint8

const (
	holeVariable variableTag = iota
	genericVariable
)

// VariableKind is the identity of an inference variable. It is comparable
// and usable as a map key; spans are deliberately not part of it.
type VariableKind struct {
	tag variableTag
	id  uint64
}

func HoleKind(id HoleID) VariableKind {
	return VariableKind{tag: holeVariable, id: uint64(id)}
}

func GenericKind(id GenericArgumentID) VariableKind {
	return VariableKind{tag: genericVariable, id: uint64(id)}
}

func (k VariableKind) Hole() (HoleID, bool) {
	return HoleID(k.id), k.tag == holeVariable
}

func (k VariableKind) Generic() (GenericArgumentID, bool) {
	return GenericArgumentID(k.id), k.tag == genericVariable
}

func (k VariableKind) String() string {
	if k.tag == genericVariable {
		return fmt.Sprintf("'%d", k.id)
	}
	return fmt.Sprintf("?%d", k.id)
}

func (k VariableKind) hashSeed() uint64 {
	return k.id*31 + uint64(k.tag)*7919
}

// Variable is an inference variable together with the source span it was
// introduced at. Identity is by Kind only; the span is for diagnostics.
type Variable struct {
	ir.Range
	Kind VariableKind
}

func (v Variable) String() string { return v.Kind.String() }

// Constraint is a single obligation handed to the solver. Constraints are
// produced once and never mutated; the solver only reads them.
type Constraint interface {
	isConstraint()
	fmt.Stringer
}

var (
	_ Constraint = EqualsConstraint{}
	_ Constraint = LowerBoundConstraint{}
	_ Constraint = UpperBoundConstraint{}
	_ Constraint = OrderingConstraint{}
	_ Constraint = UnifyConstraint{}
	_ Constraint = DependencyConstraint{}
)

// EqualsConstraint pins a variable to a type.
type EqualsConstraint struct {
	Variable Variable
	Type     TypeID
}

func (EqualsConstraint) isConstraint() {}
func (c EqualsConstraint) String() string {
	return fmt.Sprintf("%s == #%d", c.Variable, c.Type)
}

// LowerBoundConstraint states bound <: variable.
type LowerBoundConstraint struct {
	Variable Variable
	Bound    TypeID
}

func (LowerBoundConstraint) isConstraint() {}
func (c LowerBoundConstraint) String() string {
	return fmt.Sprintf("#%d <: %s", c.Bound, c.Variable)
}

// UpperBoundConstraint states variable <: bound.
type UpperBoundConstraint struct {
	Variable Variable
	Bound    TypeID
}

func (UpperBoundConstraint) isConstraint() {}
func (c UpperBoundConstraint) String() string {
	return fmt.Sprintf("%s <: #%d", c.Variable, c.Bound)
}

// OrderingConstraint states lower <: upper between two variables.
type OrderingConstraint struct {
	Lower Variable
	Upper Variable
}

func (OrderingConstraint) isConstraint() {}
func (c OrderingConstraint) String() string {
	return fmt.Sprintf("%s <: %s", c.Lower, c.Upper)
}

// UnifyConstraint forces two variables onto the same canonical root.
type UnifyConstraint struct {
	Lhs Variable
	Rhs Variable
}

func (UnifyConstraint) isConstraint() {}
func (c UnifyConstraint) String() string {
	return fmt.Sprintf("%s ~ %s", c.Lhs, c.Rhs)
}

// DependencyConstraint keeps a structural edge between two variables for
// graph connectivity without implying any bound.
type DependencyConstraint struct {
	Source Variable
	Target Variable
}

func (DependencyConstraint) isConstraint() {}
func (c DependencyConstraint) String() string {
	return fmt.Sprintf("%s ~> %s", c.Source, c.Target)
}

// SelectionConstraint is a deferred field-projection or index-subscript
// obligation, resolved only once the subject's type is known.
type SelectionConstraint interface {
	isSelection()
	subject() Variable
	output() Variable
}

var (
	_ SelectionConstraint = ProjectionConstraint{}
	_ SelectionConstraint = SubscriptConstraint{}
)

// ProjectionConstraint stands for "Output is the type of Subject.Field".
type ProjectionConstraint struct {
	ir.Range
	Subject Variable
	Field   Symbol
	Output  Variable
}

func (ProjectionConstraint) isSelection()        {}
func (c ProjectionConstraint) subject() Variable { return c.Subject }
func (c ProjectionConstraint) output() Variable  { return c.Output }

// SubscriptConstraint stands for "Output is the type of Subject[index]",
// where Index is the type of the index expression.
type SubscriptConstraint struct {
	ir.Range
	Subject Variable
	Index   TypeID
	Output  Variable
}

func (SubscriptConstraint) isSelection()        {}
func (c SubscriptConstraint) subject() Variable { return c.Subject }
func (c SubscriptConstraint) output() Variable  { return c.Output }

// Fresher allocates fresh holes. Hole identifiers live for a whole
// compilation unit, so one Fresher is shared across solver runs of that
// unit.
type Fresher struct {
	nextHole uint64
}

func NewFresher() *Fresher {
	return &Fresher{}
}

func (f *Fresher) FreshHole(span ir.Range) Variable {
	id := f.nextHole
	f.nextHole++
	return Variable{Range: span, Kind: HoleKind(HoleID(id))}
}
