package flow

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itchyny/gojq"

	"github.com/contentforge/forge/pkg/apierror"
)

// Builtins is the closed set of FUNCTION block names. Anything else
// fails the block with a 400.
var Builtins = []string{
	"UPPERCASE", "LOWERCASE", "TRIM", "LENGTH", "CONCAT", "SPLIT",
	"JOIN", "ABS", "ROUND", "CEIL", "FLOOR", "MIN", "MAX", "SUM",
	"UUID", "TIMESTAMP", "JQ",
}

// CallBuiltin dispatches one FUNCTION block invocation on already
// resolved parameters.
func CallBuiltin(name string, params []DefinitionData) (DefinitionData, error) {
	switch strings.ToUpper(name) {
	case "UPPERCASE":
		s, err := oneString(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return String(strings.ToUpper(s)), nil

	case "LOWERCASE":
		s, err := oneString(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return String(strings.ToLower(s)), nil

	case "TRIM":
		s, err := oneString(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return String(strings.TrimSpace(s)), nil

	case "LENGTH":
		if len(params) != 1 {
			return DefinitionData{}, argCount(name, 1)
		}
		if params[0].Kind == KindStructured {
			if seq, ok := params[0].Structured.([]any); ok {
				return Integer(int64(len(seq))), nil
			}
		}
		return Integer(int64(len(params[0].AsString()))), nil

	case "CONCAT":
		var b strings.Builder
		for _, p := range params {
			b.WriteString(p.AsString())
		}
		return String(b.String()), nil

	case "SPLIT":
		if len(params) != 2 {
			return DefinitionData{}, argCount(name, 2)
		}
		parts := strings.Split(params[0].AsString(), params[1].AsString())
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return Structured(out), nil

	case "JOIN":
		if len(params) != 2 {
			return DefinitionData{}, argCount(name, 2)
		}
		seq, ok := params[0].Structured.([]any)
		if params[0].Kind != KindStructured || !ok {
			return DefinitionData{}, apierror.BadInputf("Error: JOIN wants a sequence first")
		}
		parts := make([]string, len(seq))
		for i, el := range seq {
			parts[i] = FromAny(el).AsString()
		}
		return String(strings.Join(parts, params[1].AsString())), nil

	case "ABS":
		n, err := oneNumber(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		if n.Kind == KindInteger {
			if n.Int < 0 {
				return Integer(-n.Int), nil
			}
			return n, nil
		}
		return Float(math.Abs(n.Float)), nil

	case "ROUND":
		n, err := oneNumber(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return Integer(int64(math.Round(n.AsFloat()))), nil

	case "CEIL":
		n, err := oneNumber(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return Integer(int64(math.Ceil(n.AsFloat()))), nil

	case "FLOOR":
		n, err := oneNumber(name, params)
		if err != nil {
			return DefinitionData{}, err
		}
		return Integer(int64(math.Floor(n.AsFloat()))), nil

	case "MIN":
		return fold(name, params, func(a, b float64) bool { return b < a })

	case "MAX":
		return fold(name, params, func(a, b float64) bool { return b > a })

	case "SUM":
		// Integers accumulate exactly; the first float operand
		// promotes the running total, mirroring ADD.
		var intSum int64
		floatSum := 0.0
		allInt := true
		for _, p := range flatten(params) {
			if !p.IsNumeric() {
				return DefinitionData{}, apierror.BadInputf("Error: SUM wants numeric values")
			}
			if allInt && p.Kind != KindInteger {
				allInt = false
				floatSum = float64(intSum)
			}
			if allInt {
				intSum += p.Int
			} else {
				floatSum += p.AsFloat()
			}
		}
		if allInt {
			return Integer(intSum), nil
		}
		return Float(floatSum), nil

	case "UUID":
		return String(uuid.New().String()), nil

	case "TIMESTAMP":
		return Integer(time.Now().Unix()), nil

	case "JQ":
		return runJQ(params)

	default:
		return DefinitionData{}, apierror.BadInputf("Error: unknown function %s", name)
	}
}

func oneString(name string, params []DefinitionData) (string, error) {
	if len(params) != 1 {
		return "", argCount(name, 1)
	}
	return params[0].AsString(), nil
}

func oneNumber(name string, params []DefinitionData) (DefinitionData, error) {
	if len(params) != 1 {
		return DefinitionData{}, argCount(name, 1)
	}
	if !params[0].IsNumeric() {
		return DefinitionData{}, apierror.BadInputf("Error: %s wants a numeric argument", name)
	}
	return params[0], nil
}

func argCount(name string, want int) error {
	return apierror.BadInputf("Error: %s wants %d argument(s)", name, want)
}

// flatten expands sequence parameters so MIN/MAX/SUM work on either a
// bound sequence or an inline parameter list.
func flatten(params []DefinitionData) []DefinitionData {
	var out []DefinitionData
	for _, p := range params {
		if p.Kind == KindStructured {
			if seq, ok := p.Structured.([]any); ok {
				for _, el := range seq {
					out = append(out, FromAny(el))
				}
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func fold(name string, params []DefinitionData, better func(a, b float64) bool) (DefinitionData, error) {
	values := flatten(params)
	if len(values) == 0 {
		return DefinitionData{}, apierror.BadInputf("Error: %s wants at least one value", name)
	}
	best := values[0]
	if !best.IsNumeric() {
		return DefinitionData{}, apierror.BadInputf("Error: %s wants numeric values", name)
	}
	for _, v := range values[1:] {
		if !v.IsNumeric() {
			return DefinitionData{}, apierror.BadInputf("Error: %s wants numeric values", name)
		}
		if better(best.AsFloat(), v.AsFloat()) {
			best = v
		}
	}
	return best, nil
}

// runJQ evaluates a jq query (first param) against a value (second
// param). Strings are decoded as JSON first so stored documents can be
// queried directly.
func runJQ(params []DefinitionData) (DefinitionData, error) {
	if len(params) != 2 {
		return DefinitionData{}, argCount("JQ", 2)
	}
	query, err := gojq.Parse(params[0].AsString())
	if err != nil {
		return DefinitionData{}, apierror.BadInputf("Error: malformed jq query: %v", err)
	}

	input := params[1].Value()
	if s, ok := input.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return DefinitionData{}, apierror.BadInputf("Error: jq input is not valid JSON")
		}
		input = decoded
	}

	iter := query.Run(input)
	v, ok := iter.Next()
	if !ok {
		return Null(), nil
	}
	if err, isErr := v.(error); isErr {
		return DefinitionData{}, apierror.BadInputf("Error: jq evaluation failed: %v", err)
	}
	return FromAny(v), nil
}
