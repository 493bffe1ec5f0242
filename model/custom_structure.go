package model

import (
	"strings"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// CustomStructure is a named grouping of structures, nested one level
// below the collection.
type CustomStructure struct {
	ID          string
	Name        string
	Description string
	Structures  []Structure
}

// NewCustomStructure builds a custom structure through the validated
// setters.
func NewCustomStructure(id, name, description string) (*CustomStructure, error) {
	cs := &CustomStructure{}
	if err := cs.SetID(id); err != nil {
		return nil, err
	}
	if err := cs.SetName(name); err != nil {
		return nil, err
	}
	if err := cs.SetDescription(description); err != nil {
		return nil, err
	}
	return cs, nil
}

// SetID validates and sets the id.
func (cs *CustomStructure) SetID(id string) error {
	v, err := constraint.Validate("custom_structure", "id", id)
	if err != nil {
		return err
	}
	cs.ID = v
	return nil
}

// SetName validates and sets the name.
func (cs *CustomStructure) SetName(name string) error {
	v, err := constraint.Validate("custom_structure", "name", name)
	if err != nil {
		return err
	}
	cs.Name = v
	return nil
}

// SetDescription validates and sets the description.
func (cs *CustomStructure) SetDescription(description string) error {
	v, err := constraint.Validate("custom_structure", "description", description)
	if err != nil {
		return err
	}
	cs.Description = v
	return nil
}

// SetStructures bulk-replaces the nested structures.
func (cs *CustomStructure) SetStructures(structures []Structure) {
	cs.Structures = structures
}

// Structure returns the nested structure with the given id.
func (cs *CustomStructure) Structure(id string) (*Structure, error) {
	for i := range cs.Structures {
		if strings.EqualFold(cs.Structures[i].ID, id) {
			return &cs.Structures[i], nil
		}
	}
	return nil, apierror.NotFoundf("custom structure %s has no structure %s", cs.ID, id)
}

// String serialises the custom structure for the collection line.
// Fields use |; nested structures are joined by & with their fields
// separated by §, which never appears inside a collection line value.
func (cs CustomStructure) String() string {
	inner := make([]string, 0, len(cs.Structures))
	for _, s := range cs.Structures {
		inner = append(inner, encodeStructure(s, "§"))
	}
	return strings.Join([]string{cs.ID, cs.Name, cs.Description, strings.Join(inner, "&")}, "|")
}

// ParseCustomStructure parses the collection-line form.
func ParseCustomStructure(raw string) (CustomStructure, error) {
	fields := strings.SplitN(raw, "|", 4)
	if len(fields) != 4 {
		return CustomStructure{}, apierror.Internalf("custom structure: malformed record %q", raw)
	}
	cs := CustomStructure{ID: fields[0], Name: fields[1], Description: fields[2]}
	if fields[3] != "" {
		for _, item := range strings.Split(fields[3], "&") {
			s, err := decodeStructure(item, "§")
			if err != nil {
				return CustomStructure{}, err
			}
			cs.Structures = append(cs.Structures, s)
		}
	}
	return cs, nil
}
