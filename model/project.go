package model

import (
	"strings"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// Project owns collections and declares the api_path prefix under
// which its routes are served.
type Project struct {
	ID          string
	Name        string
	Description string
	APIPath     string
	Members     []string
}

// CreateProject builds a project through validated setters and appends
// it to the live list only when every setter succeeded.
func CreateProject(list *[]Project, id, name, description, apiPath string) error {
	if ProjectExists(*list, id) {
		return apierror.Conflictf("Error: project with id %s already exists", id)
	}

	var p Project
	if err := p.setID(id); err != nil {
		return err
	}
	if err := p.UpdateName(name); err != nil {
		return err
	}
	if err := p.UpdateDescription(description); err != nil {
		return err
	}
	if err := p.UpdateAPIPath(apiPath); err != nil {
		return err
	}
	*list = append(*list, p)
	return nil
}

// ProjectExists reports whether a project id is taken.
func ProjectExists(list []Project, id string) bool {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return true
		}
	}
	return false
}

// GetProject finds a project by id, case-insensitively.
func GetProject(list []Project, id string) (*Project, error) {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: project %s not found", id)
}

// ProjectByAPIPath returns the project whose api_path is the longest
// prefix of the request path.
func ProjectByAPIPath(list []Project, requestPath string) (*Project, error) {
	var best *Project
	for i := range list {
		p := &list[i]
		if strings.HasPrefix(requestPath, p.APIPath) {
			if best == nil || len(p.APIPath) > len(best.APIPath) {
				best = p
			}
		}
	}
	if best == nil {
		return nil, apierror.NotFoundf("Error: no project matches path %s", requestPath)
	}
	return best, nil
}

func (p *Project) setID(id string) error {
	v, err := constraint.Validate("project", "id", id)
	if err != nil {
		return err
	}
	p.ID = v
	return nil
}

// UpdateProjectID renames a project after checking the new id is free.
// Cascades to collection project ids, data files and route files are
// the store layer's responsibility.
func UpdateProjectID(list *[]Project, oldID, newID string) error {
	v, err := constraint.Validate("project", "id", newID)
	if err != nil {
		return err
	}
	if ProjectExists(*list, v) {
		return apierror.Conflictf("Error: project with id %s already exists", v)
	}
	p, err := GetProject(*list, oldID)
	if err != nil {
		return err
	}
	p.ID = v
	return nil
}

// UpdateName validates and sets the display name.
func (p *Project) UpdateName(name string) error {
	v, err := constraint.Validate("project", "name", name)
	if err != nil {
		return err
	}
	p.Name = v
	return nil
}

// UpdateDescription validates and sets the description.
func (p *Project) UpdateDescription(description string) error {
	v, err := constraint.Validate("project", "description", description)
	if err != nil {
		return err
	}
	p.Description = v
	return nil
}

// UpdateAPIPath validates and sets the api path prefix.
func (p *Project) UpdateAPIPath(apiPath string) error {
	v, err := constraint.Validate("project", "api_path", apiPath)
	if err != nil {
		return err
	}
	p.APIPath = v
	return nil
}

// AddMember records a user id as a project member.
func (p *Project) AddMember(userID string) error {
	for _, m := range p.Members {
		if m == userID {
			return apierror.Conflictf("Error: user %s is already a member", userID)
		}
	}
	p.Members = append(p.Members, userID)
	return nil
}

// RemoveMember removes a user id from the member set.
func (p *Project) RemoveMember(userID string) error {
	for i, m := range p.Members {
		if m == userID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: user %s is not a member", userID)
}

// DeleteProject removes a project from the list. Deleting its
// collections and their data is the store layer's responsibility.
func DeleteProject(list *[]Project, id string) error {
	for i := range *list {
		if strings.EqualFold((*list)[i].ID, id) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: project %s not found", id)
}

// String serialises the project line:
// id;name;description;api_path;member%member
func (p Project) String() string {
	return strings.Join([]string{
		p.ID, p.Name, p.Description, p.APIPath, strings.Join(p.Members, "%"),
	}, ";")
}

// ParseProject parses a project line.
func ParseProject(line string) (Project, error) {
	fields := strings.Split(line, ";")
	if len(fields) != 5 {
		return Project{}, apierror.Internalf("project: malformed line %q", line)
	}
	p := Project{ID: fields[0], Name: fields[1], Description: fields[2], APIPath: fields[3]}
	if fields[4] != "" {
		p.Members = strings.Split(fields[4], "%")
	}
	return p, nil
}

// ProjectsToText serialises a project list, one per line.
func ProjectsToText(list []Project) string {
	lines := make([]string, 0, len(list))
	for _, p := range list {
		lines = append(lines, p.String())
	}
	return strings.Join(lines, "\n")
}

// ParseProjects parses a projects file.
func ParseProjects(text string) ([]Project, error) {
	var out []Project
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := ParseProject(line)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
