package flow

import (
	"strconv"
	"strings"

	"github.com/contentforge/forge/pkg/apierror"
	"github.com/contentforge/forge/route"
)

// ResolveRefData turns a reference or literal into a value: variables
// are looked up lexically at the requesting block's index, literals
// start out as strings, then the declared rtype coerces the result.
func ResolveRefData(r route.RefData, store *DefinitionStore, at int) (DefinitionData, error) {
	var value DefinitionData
	if r.RefVar {
		v, err := store.Get(r.Data, at)
		if err != nil {
			return DefinitionData{}, err
		}
		value = v
	} else {
		value = String(r.Data)
	}
	return Coerce(value, r.RType)
}

// Coerce converts a value to the requested target type.
func Coerce(v DefinitionData, target route.BodyDataType) (DefinitionData, error) {
	switch target {
	case route.TypeBoolean:
		return coerceBoolean(v)
	case route.TypeInteger:
		return coerceInteger(v)
	case route.TypeFloat:
		return coerceFloat(v)
	case route.TypeString:
		return String(v.AsString()), nil
	default:
		// ARRAY and OTHER pass structured values through untouched.
		return v, nil
	}
}

func coerceBoolean(v DefinitionData) (DefinitionData, error) {
	switch v.Kind {
	case KindBoolean:
		return v, nil
	case KindInteger:
		return Boolean(v.Int != 0), nil
	case KindFloat:
		return Boolean(v.Float != 0), nil
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1":
			return Boolean(true), nil
		case "false", "0", "":
			return Boolean(false), nil
		}
		return DefinitionData{}, apierror.BadInputf("Error: cannot read %q as a boolean", v.Str)
	case KindStructured:
		return Boolean(v.Structured != nil), nil
	default:
		return Boolean(false), nil
	}
}

func coerceInteger(v DefinitionData) (DefinitionData, error) {
	switch v.Kind {
	case KindInteger:
		return v, nil
	case KindFloat:
		return Integer(int64(v.Float)), nil
	case KindBoolean:
		if v.Bool {
			return Integer(1), nil
		}
		return Integer(0), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return DefinitionData{}, apierror.BadInputf("Error: cannot read %q as an integer", v.Str)
		}
		return Integer(n), nil
	default:
		return DefinitionData{}, apierror.BadInputf("Error: cannot coerce %s to INTEGER", v.Kind)
	}
}

func coerceFloat(v DefinitionData) (DefinitionData, error) {
	switch v.Kind {
	case KindFloat:
		return v, nil
	case KindInteger:
		return Float(float64(v.Int)), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return DefinitionData{}, apierror.BadInputf("Error: cannot read %q as a float", v.Str)
		}
		return Float(f), nil
	default:
		return DefinitionData{}, apierror.BadInputf("Error: cannot coerce %s to FLOAT", v.Kind)
	}
}

// ResolveConditions folds a condition list strictly left to right:
// the next marker on each condition dictates how the following one
// joins, with no precedence between AND and OR.
func ResolveConditions(conds []route.Condition, store *DefinitionStore, at int) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}

	result, err := evalCondition(conds[0], store, at)
	if err != nil {
		return false, err
	}
	for i := 1; i < len(conds); i++ {
		next, err := evalCondition(conds[i], store, at)
		if err != nil {
			return false, err
		}
		switch conds[i-1].Next {
		case route.NextAnd:
			result = result && next
		case route.NextOr:
			result = result || next
		default:
			result = next
		}
	}
	return result, nil
}

func evalCondition(c route.Condition, store *DefinitionStore, at int) (bool, error) {
	left, err := ResolveRefData(c.Left, store, at)
	if err != nil {
		return false, err
	}
	right, err := ResolveRefData(c.Right, store, at)
	if err != nil {
		return false, err
	}
	out, err := Compare(left, right, c.Operator)
	if err != nil {
		return false, err
	}
	if c.Not {
		out = !out
	}
	return out, nil
}

// Compare applies one comparison operator. Mixed string and number
// operands order by string length against the number.
func Compare(left, right DefinitionData, op route.ConditionOperator) (bool, error) {
	switch op {
	case route.OpEq:
		return equal(left, right), nil
	case route.OpNe:
		return !equal(left, right), nil
	case route.OpLt, route.OpLte, route.OpGt, route.OpGte:
		l, r, err := orderingOperands(left, right)
		if err != nil {
			return false, err
		}
		switch op {
		case route.OpLt:
			return l < r, nil
		case route.OpLte:
			return l <= r, nil
		case route.OpGt:
			return l > r, nil
		default:
			return l >= r, nil
		}
	case route.OpIncludes:
		return includes(left, right), nil
	default:
		return false, apierror.BadInputf("Error: unknown condition operator %q", string(op))
	}
}

func equal(left, right DefinitionData) bool {
	if left.IsNumeric() && right.IsNumeric() {
		return left.AsFloat() == right.AsFloat()
	}
	if left.Kind == KindBoolean && right.Kind == KindBoolean {
		return left.Bool == right.Bool
	}
	if left.IsEmpty() || right.IsEmpty() {
		return left.IsEmpty() && right.IsEmpty()
	}
	return left.AsString() == right.AsString()
}

// orderingOperands widens both sides for < <= > >=. Strings compare
// by length when the other side is a number, and by length pairs when
// both are strings.
func orderingOperands(left, right DefinitionData) (float64, float64, error) {
	num := func(v DefinitionData) (float64, error) {
		switch {
		case v.IsNumeric():
			return v.AsFloat(), nil
		case v.Kind == KindString:
			return float64(len(v.Str)), nil
		case v.Kind == KindBoolean:
			if v.Bool {
				return 1, nil
			}
			return 0, nil
		default:
			return 0, apierror.BadInputf("Error: cannot order %s values", v.Kind)
		}
	}
	l, err := num(left)
	if err != nil {
		return 0, 0, err
	}
	r, err := num(right)
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func includes(left, right DefinitionData) bool {
	if left.Kind == KindStructured {
		if seq, ok := left.Structured.([]any); ok {
			for _, el := range seq {
				if equal(FromAny(el), right) {
					return true
				}
			}
			return false
		}
	}
	return strings.Contains(left.AsString(), right.AsString())
}

// ResolveOperations folds an operation list strictly left to right.
// The first operation's result seeds the accumulator; each following
// operation is evaluated on its own operands and joined to the
// accumulator by the preceding operation's next marker: AND/OR fold
// booleans, NONE keeps the accumulator unless it is empty.
func ResolveOperations(ops []route.Operation, store *DefinitionStore, at int) (DefinitionData, error) {
	if len(ops) == 0 {
		return Null(), nil
	}

	acc, err := evalOperation(ops[0], store, at)
	if err != nil {
		return DefinitionData{}, err
	}
	for i := 1; i < len(ops); i++ {
		next, err := evalOperation(ops[i], store, at)
		if err != nil {
			return DefinitionData{}, err
		}
		switch ops[i-1].Next {
		case route.NextAnd:
			a, err := coerceBoolean(acc)
			if err != nil {
				return DefinitionData{}, err
			}
			b, err := coerceBoolean(next)
			if err != nil {
				return DefinitionData{}, err
			}
			acc = Boolean(a.Bool && b.Bool)
		case route.NextOr:
			a, err := coerceBoolean(acc)
			if err != nil {
				return DefinitionData{}, err
			}
			b, err := coerceBoolean(next)
			if err != nil {
				return DefinitionData{}, err
			}
			acc = Boolean(a.Bool || b.Bool)
		default:
			if acc.IsEmpty() {
				acc = next
			}
		}
	}
	return acc, nil
}

func evalOperation(o route.Operation, store *DefinitionStore, at int) (DefinitionData, error) {
	left, err := ResolveRefData(o.Left, store, at)
	if err != nil {
		return DefinitionData{}, err
	}
	right, err := ResolveRefData(o.Right, store, at)
	if err != nil {
		return DefinitionData{}, err
	}
	return ApplyOperation(left, right, o.Operator)
}

// ApplyOperation combines two values. Arithmetic between an integer
// and a float promotes to float; + on strings concatenates; NONE
// prefers the left side unless it is null or undefined.
func ApplyOperation(left, right DefinitionData, op route.OperationType) (DefinitionData, error) {
	switch op {
	case route.OpNone:
		if left.IsEmpty() {
			return right, nil
		}
		return left, nil

	case route.OpAdd:
		if left.Kind == KindString || right.Kind == KindString {
			return String(left.AsString() + right.AsString()), nil
		}
		if left.Kind == KindInteger && right.Kind == KindInteger {
			return Integer(left.Int + right.Int), nil
		}
		if left.IsNumeric() && right.IsNumeric() {
			return Float(left.AsFloat() + right.AsFloat()), nil
		}
		return DefinitionData{}, apierror.BadInputf("Error: cannot add %s and %s", left.Kind, right.Kind)

	case route.OpSub, route.OpMul, route.OpDiv, route.OpMod:
		if !left.IsNumeric() || !right.IsNumeric() {
			return DefinitionData{}, apierror.BadInputf("Error: %s wants numeric operands", string(op))
		}
		bothInt := left.Kind == KindInteger && right.Kind == KindInteger
		switch op {
		case route.OpSub:
			if bothInt {
				return Integer(left.Int - right.Int), nil
			}
			return Float(left.AsFloat() - right.AsFloat()), nil
		case route.OpMul:
			if bothInt {
				return Integer(left.Int * right.Int), nil
			}
			return Float(left.AsFloat() * right.AsFloat()), nil
		case route.OpDiv:
			if right.AsFloat() == 0 {
				return DefinitionData{}, apierror.BadInputf("Error: division by zero")
			}
			if bothInt {
				return Integer(left.Int / right.Int), nil
			}
			return Float(left.AsFloat() / right.AsFloat()), nil
		default:
			if bothInt {
				if right.Int == 0 {
					return DefinitionData{}, apierror.BadInputf("Error: division by zero")
				}
				return Integer(left.Int % right.Int), nil
			}
			return DefinitionData{}, apierror.BadInputf("Error: %% wants integer operands")
		}

	case route.OpOpEq, route.OpOpNe, route.OpOpLt, route.OpOpLte, route.OpOpGt, route.OpOpGte, route.OpOpInc:
		out, err := Compare(left, right, route.ConditionOperator(op))
		if err != nil {
			return DefinitionData{}, err
		}
		return Boolean(out), nil

	default:
		return DefinitionData{}, apierror.BadInputf("Error: unknown operation %q", string(op))
	}
}
