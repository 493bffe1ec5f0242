// Package flow interprets a route's block program: it resolves
// references against a per-request definition store and walks the
// blocks in global-index order, folding control flow into signals.
package flow

import (
	"fmt"
	"strconv"

	"github.com/contentforge/forge/pkg/apierror"
)

// DataKind tags a DefinitionData variant.
type DataKind int

const (
	KindNull DataKind = iota
	KindUndefined
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindStructured
)

func (k DataKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindUndefined:
		return "UNDEFINED"
	case KindBoolean:
		return "BOOLEAN"
	case KindInteger:
		return "INTEGER"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindStructured:
		return "STRUCTURED"
	}
	return "UNKNOWN"
}

// DefinitionData is one resolved value: a scalar, a structured value
// (sequence or object), or the null/undefined sentinels.
type DefinitionData struct {
	Kind       DataKind
	Bool       bool
	Int        int64
	Float      float64
	Str        string
	Structured any
}

func Null() DefinitionData      { return DefinitionData{Kind: KindNull} }
func Undefined() DefinitionData { return DefinitionData{Kind: KindUndefined} }

func Boolean(b bool) DefinitionData  { return DefinitionData{Kind: KindBoolean, Bool: b} }
func Integer(i int64) DefinitionData { return DefinitionData{Kind: KindInteger, Int: i} }
func Float(f float64) DefinitionData { return DefinitionData{Kind: KindFloat, Float: f} }
func String(s string) DefinitionData { return DefinitionData{Kind: KindString, Str: s} }

// Structured wraps a sequence or object value.
func Structured(v any) DefinitionData {
	return DefinitionData{Kind: KindStructured, Structured: v}
}

// FromAny maps a dynamic value (e.g. decoded JSON) to a definition.
func FromAny(v any) DefinitionData {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Boolean(t)
	case int:
		return Integer(int64(t))
	case int64:
		return Integer(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case DefinitionData:
		return t
	default:
		return Structured(v)
	}
}

// Value unwraps the definition for JSON encoding.
func (d DefinitionData) Value() any {
	switch d.Kind {
	case KindBoolean:
		return d.Bool
	case KindInteger:
		return d.Int
	case KindFloat:
		return d.Float
	case KindString:
		return d.Str
	case KindStructured:
		return d.Structured
	default:
		return nil
	}
}

// IsNumeric reports whether the value takes part in arithmetic.
func (d DefinitionData) IsNumeric() bool {
	return d.Kind == KindInteger || d.Kind == KindFloat
}

// IsEmpty reports null or undefined.
func (d DefinitionData) IsEmpty() bool {
	return d.Kind == KindNull || d.Kind == KindUndefined
}

// AsFloat widens a numeric value.
func (d DefinitionData) AsFloat() float64 {
	if d.Kind == KindInteger {
		return float64(d.Int)
	}
	return d.Float
}

// AsString renders the value the way templates and STRING coercion do.
func (d DefinitionData) AsString() string {
	switch d.Kind {
	case KindBoolean:
		return strconv.FormatBool(d.Bool)
	case KindInteger:
		return strconv.FormatInt(d.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(d.Float, 'f', -1, 64)
	case KindString:
		return d.Str
	case KindStructured:
		return fmt.Sprintf("%v", d.Structured)
	default:
		return ""
	}
}

type definition struct {
	name  string
	index int
	data  DefinitionData
}

// DefinitionStore is the per-request symbol table. Each entry records
// the global index of the block that bound it; lookup is lexical, the
// highest binding at or before the requesting block wins.
type DefinitionStore struct {
	defs []definition
}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{}
}

// Set binds a name at a block index, replacing an existing binding of
// the same name and index.
func (s *DefinitionStore) Set(name string, index int, data DefinitionData) {
	for i := range s.defs {
		if s.defs[i].name == name && s.defs[i].index == index {
			s.defs[i].data = data
			return
		}
	}
	s.defs = append(s.defs, definition{name: name, index: index, data: data})
}

// RefIndex finds the position of the visible binding for name at the
// given block index.
func (s *DefinitionStore) RefIndex(name string, at int) (int, bool) {
	best := -1
	for i := range s.defs {
		if s.defs[i].name != name || s.defs[i].index > at {
			continue
		}
		if best < 0 || s.defs[i].index >= s.defs[best].index {
			best = i
		}
	}
	return best, best >= 0
}

// Get resolves a name lexically.
func (s *DefinitionStore) Get(name string, at int) (DefinitionData, error) {
	i, ok := s.RefIndex(name, at)
	if !ok {
		return DefinitionData{}, apierror.BadInputf("Error: %s is not defined", name)
	}
	return s.defs[i].data, nil
}

// Has reports whether any binding for name exists, regardless of
// position. Useful for post-request inspection.
func (s *DefinitionStore) Has(name string) bool {
	for i := range s.defs {
		if s.defs[i].name == name {
			return true
		}
	}
	return false
}

// Len counts the bindings.
func (s *DefinitionStore) Len() int {
	return len(s.defs)
}
