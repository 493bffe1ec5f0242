// Package bridge converts between the external raw pair tree and the
// stored Data record, enforcing structure-level constraints: required
// fields, defaults, type coercion, array elements, and uniqueness.
package bridge

import (
	"strings"

	"github.com/google/uuid"

	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/pkg/apierror"
)

// RawPair is one field value as the external interface sees it.
type RawPair struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
	Array bool   `json:"array,omitempty"`
}

// RawGroup carries the pairs nested under one custom structure.
type RawGroup struct {
	CustomStructureID string    `json:"custom_structure_id"`
	Pairs             []RawPair `json:"pairs"`
}

// RawTree is the two-level pair tree of one record.
type RawTree struct {
	Pairs  []RawPair  `json:"pairs"`
	Groups []RawGroup `json:"groups,omitempty"`
}

// TreeToData validates a raw tree against the collection's shape and
// builds the record. others holds the sibling records of the same
// collection for uniqueness checks. When update is true the caller has
// already deleted the prior record in this save cycle and existingID
// is reused; otherwise a fresh id is generated.
func TreeToData(tree RawTree, c *model.Collection, others []model.Data, update bool, existingID string) (model.Data, error) {
	d := model.Data{
		ProjectID:    c.ProjectID,
		CollectionID: c.ID,
	}
	if update {
		d.ID = existingID
	} else {
		d.ID = uuid.New().String()
	}

	for _, s := range c.Structures {
		pair, err := buildPair(findRawPair(tree.Pairs, s.ID), s, "", others)
		if err != nil {
			return model.Data{}, err
		}
		if pair != nil {
			d.Pairs = append(d.Pairs, *pair)
		}
	}

	for _, cs := range c.CustomStructures {
		group := findRawGroup(tree.Groups, cs.ID)
		for _, s := range cs.Structures {
			var raw *RawPair
			if group != nil {
				raw = findRawPair(group.Pairs, s.ID)
			}
			pair, err := buildPair(raw, s, cs.ID, others)
			if err != nil {
				return model.Data{}, err
			}
			if pair != nil {
				d.Pairs = append(d.Pairs, *pair)
			}
		}
	}

	return d, nil
}

// buildPair resolves one structure's value (explicit, default, or
// absent) and validates it. A nil result means the optional field was
// omitted and has no default.
func buildPair(raw *RawPair, s model.Structure, customStructureID string, others []model.Data) (*model.DataPair, error) {
	var value string
	switch {
	case raw != nil:
		if !typeMatches(raw.Type, s.SType) {
			return nil, apierror.BadInputf("Error: field %s expects type %s, got %s",
				s.ID, s.SType.String(), raw.Type)
		}
		if raw.Array != s.Array {
			return nil, apierror.BadInputf("Error: field %s array flag mismatch", s.ID)
		}
		value = raw.Value
	case s.Default != "":
		value = s.Default
	case s.Required:
		return nil, apierror.BadInputf("Error: required field %s is missing and has no default", s.ID)
	default:
		return nil, nil
	}

	elements := []string{value}
	if s.Array {
		elements = strings.Split(value, ",")
	}
	for _, el := range elements {
		if err := s.CheckValue(el); err != nil {
			return nil, err
		}
	}

	if s.Unique {
		for _, other := range others {
			for _, p := range other.Pairs {
				if p.StructureID == s.ID && p.Value == value {
					return nil, apierror.Conflictf("Error: field %s must be unique, value already taken", s.ID)
				}
			}
		}
	}

	pair := model.DataPair{
		ID:                uuid.New().String(),
		StructureID:       s.ID,
		CustomStructureID: customStructureID,
		DType:             s.SType.String(),
	}
	if err := pair.UpdateValue(value); err != nil {
		return nil, err
	}
	return &pair, nil
}

// typeMatches accepts an exact stype text or a coercible declaration:
// TEXT carries anything, INTEGER values satisfy FLOAT.
func typeMatches(declared string, stype model.StructureType) bool {
	if declared == "" || declared == stype.String() {
		return true
	}
	if stype.Kind == model.KindFloat && declared == "INTEGER" {
		return true
	}
	if stype.Kind == model.KindText {
		return true
	}
	return false
}

// DataToTree maps a record back into a raw tree, grouping pairs by
// custom structure and preserving the collection's declared order.
func DataToTree(d model.Data, c *model.Collection) RawTree {
	var tree RawTree

	for _, s := range c.Structures {
		if p := findPair(d.Pairs, s.ID, ""); p != nil {
			tree.Pairs = append(tree.Pairs, RawPair{
				ID:    s.ID,
				Type:  p.DType,
				Value: p.Value,
				Array: s.Array,
			})
		}
	}

	for _, cs := range c.CustomStructures {
		var group RawGroup
		group.CustomStructureID = cs.ID
		for _, s := range cs.Structures {
			if p := findPair(d.Pairs, s.ID, cs.ID); p != nil {
				group.Pairs = append(group.Pairs, RawPair{
					ID:    s.ID,
					Type:  p.DType,
					Value: p.Value,
					Array: s.Array,
				})
			}
		}
		if len(group.Pairs) > 0 {
			tree.Groups = append(tree.Groups, group)
		}
	}

	return tree
}

func findRawPair(pairs []RawPair, id string) *RawPair {
	for i := range pairs {
		if pairs[i].ID == id {
			return &pairs[i]
		}
	}
	return nil
}

func findRawGroup(groups []RawGroup, id string) *RawGroup {
	for i := range groups {
		if groups[i].CustomStructureID == id {
			return &groups[i]
		}
	}
	return nil
}

func findPair(pairs []model.DataPair, structureID, customStructureID string) *model.DataPair {
	for i := range pairs {
		if pairs[i].StructureID == structureID && pairs[i].CustomStructureID == customStructureID {
			return &pairs[i]
		}
	}
	return nil
}
