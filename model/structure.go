// Package model defines the schema and record entities: projects,
// collections, structures, custom structures, data records and users,
// together with their lifecycle operations and file serialisation.
package model

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// StructureKind enumerates the closed set of field types.
type StructureKind int

const (
	KindText StructureKind = iota
	KindEmail
	KindPassword
	KindMarkdown
	KindInteger
	KindFloat
	KindEnum
	KindDate
	KindDateTime
	KindMedia
	KindBoolean
	KindUID
	KindJSON
	// KindCustom is the escape hatch for type names outside the
	// closed set; the name travels with the type.
	KindCustom
)

var kindNames = map[StructureKind]string{
	KindText:     "TEXT",
	KindEmail:    "EMAIL",
	KindPassword: "PASSWORD",
	KindMarkdown: "MARKDOWN",
	KindInteger:  "INTEGER",
	KindFloat:    "FLOAT",
	KindEnum:     "ENUM",
	KindDate:     "DATE",
	KindDateTime: "DATETIME",
	KindMedia:    "MEDIA",
	KindBoolean:  "BOOLEAN",
	KindUID:      "UID",
	KindJSON:     "JSON",
}

// StructureType is a tagged variant over the closed kind set plus
// CUSTOM(name).
type StructureType struct {
	Kind   StructureKind
	Custom string
}

// ParseStructureType maps a stype text to its type. Unknown names
// parse as CUSTOM.
func ParseStructureType(s string) StructureType {
	for kind, name := range kindNames {
		if name == s {
			return StructureType{Kind: kind}
		}
	}
	return StructureType{Kind: KindCustom, Custom: s}
}

// String returns the stype text.
func (t StructureType) String() string {
	if t.Kind == KindCustom {
		return t.Custom
	}
	return kindNames[t.Kind]
}

// Structure declares one field of a collection.
type Structure struct {
	ID           string
	Name         string
	Description  string
	SType        StructureType
	Default      string
	Min          int
	Max          int
	Encrypted    bool
	Unique       bool
	RegexPattern string
	Array        bool
	Required     bool
}

// NewStructure builds a structure through the validated setters; a
// half-built structure is never observed by callers.
func NewStructure(id, name, description string, stype StructureType) (*Structure, error) {
	s := &Structure{SType: stype, Max: 99999}
	if err := s.SetID(id); err != nil {
		return nil, err
	}
	if err := s.SetName(name); err != nil {
		return nil, err
	}
	if err := s.SetDescription(description); err != nil {
		return nil, err
	}
	return s, nil
}

// SetID validates and sets the structure id.
func (s *Structure) SetID(id string) error {
	v, err := constraint.Validate("structure", "id", id)
	if err != nil {
		return err
	}
	s.ID = v
	return nil
}

// SetName validates and sets the display name.
func (s *Structure) SetName(name string) error {
	v, err := constraint.Validate("structure", "name", name)
	if err != nil {
		return err
	}
	s.Name = v
	return nil
}

// SetDescription validates and sets the description.
func (s *Structure) SetDescription(description string) error {
	v, err := constraint.Validate("structure", "description", description)
	if err != nil {
		return err
	}
	s.Description = v
	return nil
}

// SetType changes the field type.
func (s *Structure) SetType(t StructureType) {
	s.SType = t
}

// SetMin sets the minimum length; it cannot exceed the maximum.
func (s *Structure) SetMin(min int) error {
	if min < 0 {
		return apierror.BadInputf("Error: min must not be negative")
	}
	if min > s.Max {
		return apierror.BadInputf("Error: min must not exceed max")
	}
	s.Min = min
	return nil
}

// SetMax sets the maximum length; it cannot undercut the minimum.
func (s *Structure) SetMax(max int) error {
	if max < s.Min {
		return apierror.BadInputf("Error: max must not undercut min")
	}
	s.Max = max
	return nil
}

// SetRegex validates that the pattern compiles and sets it.
func (s *Structure) SetRegex(pattern string) error {
	v, err := constraint.Validate("structure", "regex_pattern", pattern)
	if err != nil {
		return err
	}
	if v != "" {
		if _, err := regexp.Compile(v); err != nil {
			return apierror.BadInputf("Error: regex_pattern does not compile: %v", err)
		}
	}
	s.RegexPattern = v
	return nil
}

// SetDefault validates the default against length, regex and stype
// rules (per element when the field is an array) and sets it.
func (s *Structure) SetDefault(def string) error {
	v, err := constraint.Validate("structure", "default", def)
	if err != nil {
		return err
	}
	if v != "" {
		elements := []string{v}
		if s.Array {
			elements = strings.Split(v, ",")
		}
		for _, el := range elements {
			if err := s.CheckValue(el); err != nil {
				return err
			}
		}
	}
	s.Default = v
	return nil
}

// SetFlags sets the boolean field options.
func (s *Structure) SetFlags(encrypted, unique, array, required bool) {
	s.Encrypted = encrypted
	s.Unique = unique
	s.Array = array
	s.Required = required
}

// CheckValue verifies a single element against the structure's length
// bounds, regex pattern and stype.
func (s *Structure) CheckValue(value string) error {
	if len(value) < s.Min {
		return apierror.BadInputf("Error: value for %s must be at least %d characters long", s.ID, s.Min)
	}
	if len(value) > s.Max {
		return apierror.BadInputf("Error: value for %s must be at most %d characters long", s.ID, s.Max)
	}
	if s.RegexPattern != "" {
		re, err := regexp.Compile(s.RegexPattern)
		if err != nil {
			return apierror.Internalf("structure %s carries a non-compiling pattern", s.ID)
		}
		if !re.MatchString(value) {
			return apierror.BadInputf("Error: value for %s does not match the required pattern", s.ID)
		}
	}
	return CheckValueForType(value, s.SType)
}

// CheckValueForType verifies a value is representable in the given
// stype. Types without a syntactic shape accept anything.
func CheckValueForType(value string, t StructureType) error {
	switch t.Kind {
	case KindInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return apierror.BadInputf("Error: value %q is not an integer", value)
		}
	case KindFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return apierror.BadInputf("Error: value %q is not a float", value)
		}
	case KindBoolean:
		lower := strings.ToLower(value)
		if lower != "true" && lower != "false" {
			return apierror.BadInputf("Error: value %q is not a boolean", value)
		}
	case KindEmail:
		if !strings.Contains(value, "@") || !strings.Contains(value, ".") {
			return apierror.BadInputf("Error: value %q is not an email address", value)
		}
	case KindDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return apierror.BadInputf("Error: value %q is not a date", value)
		}
	case KindDateTime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return apierror.BadInputf("Error: value %q is not a datetime", value)
		}
	case KindJSON:
		if !json.Valid([]byte(value)) {
			return apierror.BadInputf("Error: value %q is not valid JSON", value)
		}
	}
	return nil
}

// encodeStructure serialises the 12 structure fields with the given
// field separator. The collection line uses |; structures nested in a
// custom structure use § to avoid colliding with the outer |.
func encodeStructure(s Structure, sep string) string {
	fields := []string{
		s.ID, s.Name, s.Description, s.SType.String(), s.Default,
		strconv.Itoa(s.Min), strconv.Itoa(s.Max),
		boolDigit(s.Encrypted), boolDigit(s.Unique),
		s.RegexPattern,
		boolDigit(s.Array), boolDigit(s.Required),
	}
	return strings.Join(fields, sep)
}

func decodeStructure(raw, sep string) (Structure, error) {
	fields := strings.Split(raw, sep)
	if len(fields) != 12 {
		return Structure{}, apierror.Internalf("structure: malformed record %q", raw)
	}
	min, err := strconv.Atoi(fields[5])
	if err != nil {
		return Structure{}, apierror.Internalf("structure: bad min in %q", raw)
	}
	max, err := strconv.Atoi(fields[6])
	if err != nil {
		return Structure{}, apierror.Internalf("structure: bad max in %q", raw)
	}
	return Structure{
		ID:           fields[0],
		Name:         fields[1],
		Description:  fields[2],
		SType:        ParseStructureType(fields[3]),
		Default:      fields[4],
		Min:          min,
		Max:          max,
		Encrypted:    fields[7] == "1",
		Unique:       fields[8] == "1",
		RegexPattern: fields[9],
		Array:        fields[10] == "1",
		Required:     fields[11] == "1",
	}, nil
}

// String serialises the structure in collection-line form.
func (s Structure) String() string {
	return encodeStructure(s, "|")
}

// ParseStructure parses the collection-line form.
func ParseStructure(raw string) (Structure, error) {
	return decodeStructure(raw, "|")
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
