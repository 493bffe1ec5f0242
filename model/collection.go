package model

import (
	"strings"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// Collection is a typed container of records inside a project.
type Collection struct {
	ID               string
	ProjectID        string
	Name             string
	Description      string
	Structures       []Structure
	CustomStructures []CustomStructure
}

// CreateCollection builds a collection through validated setters and
// appends it to the live list only when every setter succeeded.
// Collection ids are globally unique, not scoped by project.
func CreateCollection(list *[]Collection, id, projectID, name, description string) error {
	if CollectionExists(*list, id) {
		return apierror.Conflictf("Error: collection with id %s already exists", id)
	}

	var c Collection
	if err := c.setID(id); err != nil {
		return err
	}
	if err := c.setProjectID(projectID); err != nil {
		return err
	}
	if err := c.UpdateName(name); err != nil {
		return err
	}
	if err := c.UpdateDescription(description); err != nil {
		return err
	}
	*list = append(*list, c)
	return nil
}

// CollectionExists reports whether a collection id is taken.
func CollectionExists(list []Collection, id string) bool {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return true
		}
	}
	return false
}

// GetCollection finds a collection by id, case-insensitively.
func GetCollection(list []Collection, id string) (*Collection, error) {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: collection %s not found", id)
}

// CollectionsByProject returns the collections owned by a project.
func CollectionsByProject(list []Collection, projectID string) []Collection {
	var out []Collection
	for _, c := range list {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out
}

func (c *Collection) setID(id string) error {
	v, err := constraint.Validate("collection", "id", id)
	if err != nil {
		return err
	}
	c.ID = v
	return nil
}

func (c *Collection) setProjectID(projectID string) error {
	v, err := constraint.Validate("collection", "project_id", projectID)
	if err != nil {
		return err
	}
	c.ProjectID = v
	return nil
}

// UpdateName validates and sets the display name.
func (c *Collection) UpdateName(name string) error {
	v, err := constraint.Validate("collection", "name", name)
	if err != nil {
		return err
	}
	c.Name = v
	return nil
}

// UpdateDescription validates and sets the description.
func (c *Collection) UpdateDescription(description string) error {
	v, err := constraint.Validate("collection", "description", description)
	if err != nil {
		return err
	}
	c.Description = v
	return nil
}

// UpdateCollectionID renames a collection after checking the new id is
// free. Cascading rewrites of data files and route ref_col values are
// the store layer's responsibility.
func UpdateCollectionID(list *[]Collection, oldID, newID string) error {
	v, err := constraint.Validate("collection", "id", newID)
	if err != nil {
		return err
	}
	if CollectionExists(*list, v) {
		return apierror.Conflictf("Error: collection with id %s already exists", v)
	}
	c, err := GetCollection(*list, oldID)
	if err != nil {
		return err
	}
	c.ID = v
	return nil
}

// DeleteCollection removes a collection from the list.
func DeleteCollection(list *[]Collection, id string) error {
	for i := range *list {
		if strings.EqualFold((*list)[i].ID, id) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: collection %s not found", id)
}

// AddStructure appends a field declaration, rejecting duplicate ids.
func (c *Collection) AddStructure(s Structure) error {
	if _, err := c.Structure(s.ID); err == nil {
		return apierror.Conflictf("Error: structure with id %s already exists", s.ID)
	}
	c.Structures = append(c.Structures, s)
	return nil
}

// Structure finds a top-level structure by id.
func (c *Collection) Structure(id string) (*Structure, error) {
	for i := range c.Structures {
		if strings.EqualFold(c.Structures[i].ID, id) {
			return &c.Structures[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: structure %s not found", id)
}

// UpdateStructure replaces the structure with the given id. A changed
// id must not collide with a sibling.
func (c *Collection) UpdateStructure(id string, s Structure) error {
	if !strings.EqualFold(id, s.ID) {
		if _, err := c.Structure(s.ID); err == nil {
			return apierror.Conflictf("Error: structure with id %s already exists", s.ID)
		}
	}
	target, err := c.Structure(id)
	if err != nil {
		return err
	}
	*target = s
	return nil
}

// RemoveStructure deletes a top-level structure.
func (c *Collection) RemoveStructure(id string) error {
	for i := range c.Structures {
		if strings.EqualFold(c.Structures[i].ID, id) {
			c.Structures = append(c.Structures[:i], c.Structures[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: structure %s not found", id)
}

// SetStructures bulk-replaces the field declarations.
func (c *Collection) SetStructures(structures []Structure) {
	c.Structures = structures
}

// CustomStructure finds a nested grouping by id.
func (c *Collection) CustomStructure(id string) (*CustomStructure, error) {
	for i := range c.CustomStructures {
		if strings.EqualFold(c.CustomStructures[i].ID, id) {
			return &c.CustomStructures[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: custom structure %s not found", id)
}

// AddCustomStructure appends a grouping, rejecting duplicate ids.
func (c *Collection) AddCustomStructure(cs CustomStructure) error {
	if _, err := c.CustomStructure(cs.ID); err == nil {
		return apierror.Conflictf("Error: custom structure with id %s already exists", cs.ID)
	}
	c.CustomStructures = append(c.CustomStructures, cs)
	return nil
}

// UpdateCustomStructure replaces the grouping with the given id.
func (c *Collection) UpdateCustomStructure(id string, cs CustomStructure) error {
	if !strings.EqualFold(id, cs.ID) {
		if _, err := c.CustomStructure(cs.ID); err == nil {
			return apierror.Conflictf("Error: custom structure with id %s already exists", cs.ID)
		}
	}
	target, err := c.CustomStructure(id)
	if err != nil {
		return err
	}
	*target = cs
	return nil
}

// RemoveCustomStructure deletes a grouping.
func (c *Collection) RemoveCustomStructure(id string) error {
	for i := range c.CustomStructures {
		if strings.EqualFold(c.CustomStructures[i].ID, id) {
			c.CustomStructures = append(c.CustomStructures[:i], c.CustomStructures[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: custom structure %s not found", id)
}

// SetCustomStructures bulk-replaces the groupings.
func (c *Collection) SetCustomStructures(customStructures []CustomStructure) {
	c.CustomStructures = customStructures
}

// String serialises the collection line:
// id;project_id;name;description>STRUCT%STRUCT>CUSTOM#CUSTOM
func (c Collection) String() string {
	structs := make([]string, 0, len(c.Structures))
	for _, s := range c.Structures {
		structs = append(structs, s.String())
	}
	customs := make([]string, 0, len(c.CustomStructures))
	for _, cs := range c.CustomStructures {
		customs = append(customs, cs.String())
	}
	head := strings.Join([]string{c.ID, c.ProjectID, c.Name, c.Description}, ";")
	return head + ">" + strings.Join(structs, "%") + ">" + strings.Join(customs, "#")
}

// ParseCollection parses a collection line.
func ParseCollection(line string) (Collection, error) {
	parts := strings.Split(line, ">")
	if len(parts) != 3 {
		return Collection{}, apierror.Internalf("collection: malformed line %q", line)
	}
	head := strings.Split(parts[0], ";")
	if len(head) != 4 {
		return Collection{}, apierror.Internalf("collection: malformed header %q", parts[0])
	}
	c := Collection{ID: head[0], ProjectID: head[1], Name: head[2], Description: head[3]}
	if parts[1] != "" {
		for _, raw := range strings.Split(parts[1], "%") {
			s, err := ParseStructure(raw)
			if err != nil {
				return Collection{}, err
			}
			c.Structures = append(c.Structures, s)
		}
	}
	if parts[2] != "" {
		for _, raw := range strings.Split(parts[2], "#") {
			cs, err := ParseCustomStructure(raw)
			if err != nil {
				return Collection{}, err
			}
			c.CustomStructures = append(c.CustomStructures, cs)
		}
	}
	return c, nil
}

// CollectionsToText serialises a collection list, one per line.
func CollectionsToText(list []Collection) string {
	lines := make([]string, 0, len(list))
	for _, c := range list {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// ParseCollections parses a collections file.
func ParseCollections(text string) ([]Collection, error) {
	var out []Collection
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c, err := ParseCollection(line)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
