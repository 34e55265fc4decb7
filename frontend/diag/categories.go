package diag

import "fmt"

// Category names the kind of failure a Diagnostic reports.
// The numeric value doubles as the stable error code printed to users.
type Category int

const (
	none Category = iota

	// mismatches and bound conflicts
	TypeMismatch
	ConflictingEqualityConstraints
	IncompatibleLowerEqualConstraint
	IncompatibleUpperEqualConstraint
	BoundConstraintViolation
	UnsatisfiableUpperConstraint
	UnconstrainedTypeVariable
	CannotBeSubtypeOfNever
	CannotBeSupertypeOfUnknown

	// structural shape errors
	MissingStructField
	StructFieldMismatch
	DuplicateStructField
	TupleLengthMismatch
	UnionVariantMismatch
	IntersectionVariantMismatch
	OpaqueTypeNameMismatch
	FunctionParameterCountMismatch

	// access errors
	FieldNotFound
	TupleIndexOutOfBounds
	InvalidTupleIndex
	ListIndexTypeMismatch
	DictKeyTypeMismatch
	UnsupportedProjection
	UnsupportedSubscript
	UnresolvedSelectionConstraint
	RecursiveTypeProjection
	RecursiveTypeSubscript

	// pipeline bugs
	DanglingGenericReference
)

var categoryNames = map[Category]string{
	TypeMismatch:                     "type mismatch",
	ConflictingEqualityConstraints:   "conflicting equality constraints",
	IncompatibleLowerEqualConstraint: "incompatible lower bound and equality constraint",
	IncompatibleUpperEqualConstraint: "incompatible upper bound and equality constraint",
	BoundConstraintViolation:         "bound constraint violation",
	UnsatisfiableUpperConstraint:     "unsatisfiable upper constraint",
	UnconstrainedTypeVariable:        "unconstrained type variable",
	CannotBeSubtypeOfNever:           "type cannot be a subtype of Never",
	CannotBeSupertypeOfUnknown:       "type cannot be a supertype of Unknown",
	MissingStructField:               "missing struct field",
	StructFieldMismatch:              "struct field mismatch",
	DuplicateStructField:             "duplicate struct field",
	TupleLengthMismatch:              "tuple length mismatch",
	UnionVariantMismatch:             "union variant mismatch",
	IntersectionVariantMismatch:      "intersection variant mismatch",
	OpaqueTypeNameMismatch:           "opaque type name mismatch",
	FunctionParameterCountMismatch:   "function parameter count mismatch",
	FieldNotFound:                    "field not found",
	TupleIndexOutOfBounds:            "tuple index out of bounds",
	InvalidTupleIndex:                "invalid tuple index",
	ListIndexTypeMismatch:            "list index type mismatch",
	DictKeyTypeMismatch:              "dict key type mismatch",
	UnsupportedProjection:            "unsupported projection",
	UnsupportedSubscript:             "unsupported subscript",
	UnresolvedSelectionConstraint:    "unresolved selection constraint",
	RecursiveTypeProjection:          "projection on recursive type",
	RecursiveTypeSubscript:           "subscript on recursive type",
	DanglingGenericReference:         "dangling generic argument reference",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}
