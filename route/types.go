// Package route defines custom HTTP routes and the declarative flow
// program attached to them, together with their file serialisation.
package route

import "strings"

// BodyDataType is the declared type of a body field, param or RefData
// coercion target.
type BodyDataType string

const (
	TypeString  BodyDataType = "STRING"
	TypeInteger BodyDataType = "INTEGER"
	TypeFloat   BodyDataType = "FLOAT"
	TypeBoolean BodyDataType = "BOOLEAN"
	TypeArray   BodyDataType = "ARRAY"
	TypeOther   BodyDataType = "OTHER"
)

// ParseBodyDataType maps a type text; unknown texts become OTHER.
func ParseBodyDataType(s string) BodyDataType {
	switch BodyDataType(strings.ToUpper(s)) {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeArray:
		return BodyDataType(strings.ToUpper(s))
	default:
		return TypeOther
	}
}

// RefData names a prior definition (ref_var) or carries a literal, and
// declares the type the resolved value is coerced to.
type RefData struct {
	Data   string
	RefVar bool
	RType  BodyDataType
}

// Ref builds a variable reference.
func Ref(name string, rtype BodyDataType) RefData {
	return RefData{Data: name, RefVar: true, RType: rtype}
}

// Lit builds a literal.
func Lit(value string, rtype BodyDataType) RefData {
	return RefData{Data: value, RefVar: false, RType: rtype}
}

// ConditionOperator compares two resolved values.
type ConditionOperator string

const (
	OpEq       ConditionOperator = "EQ"
	OpNe       ConditionOperator = "NE"
	OpLt       ConditionOperator = "LT"
	OpLte      ConditionOperator = "LTE"
	OpGt       ConditionOperator = "GT"
	OpGte      ConditionOperator = "GTE"
	OpIncludes ConditionOperator = "INCLUDES"
)

// NextType folds a condition or operation into the next one. There is
// no precedence: evaluation is strictly left to right.
type NextType string

const (
	NextNone NextType = "NONE"
	NextAnd  NextType = "AND"
	NextOr   NextType = "OR"
)

// Condition is one comparison in a condition list.
type Condition struct {
	Left     RefData
	Right    RefData
	Operator ConditionOperator
	Not      bool
	Next     NextType
}

// OperationType combines two resolved values.
type OperationType string

const (
	OpNone     OperationType = "NONE"
	OpAdd      OperationType = "ADD"
	OpSub      OperationType = "SUB"
	OpMul      OperationType = "MUL"
	OpDiv      OperationType = "DIV"
	OpMod      OperationType = "MOD"
	OpOpEq     OperationType = "EQ"
	OpOpNe     OperationType = "NE"
	OpOpLt     OperationType = "LT"
	OpOpLte    OperationType = "LTE"
	OpOpGt     OperationType = "GT"
	OpOpGte    OperationType = "GTE"
	OpOpInc    OperationType = "INCLUDES"
)

// Operation is one step in an operation list.
type Operation struct {
	Left     RefData
	Right    RefData
	Operator OperationType
	Next     NextType
}

// Filter is one predicate of a FILTER block, applied to a property of
// each element of the filtered sequence.
type Filter struct {
	RefProperty string
	Right       RefData
	Operator    ConditionOperator
	Not         bool
	Next        NextType
}

// ObjectPair is one keyed entry of an OBJECT or RETURN block.
type ObjectPair struct {
	ID   string
	Data RefData
}

// FailDef declares the error raised by a CONDITION or FAIL block.
type FailDef struct {
	Status  int
	Message string
}
