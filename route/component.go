package route

import (
	"strings"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// AuthJWT gates a route behind a bearer token. Field names the claim
// holding the caller id and RefCol the collection the id must exist in.
type AuthJWT struct {
	Active bool
	Field  string
	RefCol string
}

// SetField validates and assigns the claim field.
func (a *AuthJWT) SetField(field string) error {
	field, err := constraint.Validate("auth_jwt", "field", field)
	if err != nil {
		return err
	}
	a.Field = field
	return nil
}

// SetRefCol validates and assigns the backing collection.
func (a *AuthJWT) SetRefCol(refCol string) error {
	refCol, err := constraint.Validate("auth_jwt", "ref_col", refCol)
	if err != nil {
		return err
	}
	a.RefCol = refCol
	return nil
}

// BodyData declares one typed field expected in the request body.
type BodyData struct {
	ID   string
	Type BodyDataType
}

// NewBodyData validates the field id.
func NewBodyData(id string, t BodyDataType) (BodyData, error) {
	id, err := constraint.Validate("body_data", "id", id)
	if err != nil {
		return BodyData{}, err
	}
	return BodyData{ID: id, Type: t}, nil
}

// ParamData declares the typed query-string pairs a route accepts and
// the delimiter separating them in the raw query text.
type ParamData struct {
	Delimiter string
	Pairs     []BodyData
}

// NewParamData validates the delimiter.
func NewParamData(delimiter string) (*ParamData, error) {
	delimiter, err := constraint.Validate("param_data", "delimiter", delimiter)
	if err != nil {
		return nil, err
	}
	return &ParamData{Delimiter: delimiter}, nil
}

// AddPair validates and appends one typed param.
func (p *ParamData) AddPair(id string, t BodyDataType) error {
	id, err := constraint.Validate("param_data", "id", id)
	if err != nil {
		return err
	}
	for _, existing := range p.Pairs {
		if strings.EqualFold(existing.ID, id) {
			return apierror.Conflictf("Error: param %s already declared", id)
		}
	}
	p.Pairs = append(p.Pairs, BodyData{ID: id, Type: t})
	return nil
}

// RouteComponent is one custom endpoint: its address, its guards, its
// typed inputs, and the flow run on every request.
type RouteComponent struct {
	RouteID   string
	RoutePath string
	ProjectID string
	AuthJWT   AuthJWT
	Body      []BodyData
	Params    *ParamData
	Flow      RouteFlow
}

// CreateRouteComponent validates the identity fields and appends the
// route. Route ids and paths are unique within a project.
func CreateRouteComponent(list *[]RouteComponent, routeID, routePath, projectID string) error {
	routeID, err := constraint.Validate("route_component", "route_id", routeID)
	if err != nil {
		return err
	}
	routePath, err = constraint.Validate("route_component", "route_path", routePath)
	if err != nil {
		return err
	}
	projectID, err = constraint.Validate("route_component", "project_id", projectID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}
	for _, r := range *list {
		if !strings.EqualFold(r.ProjectID, projectID) {
			continue
		}
		if strings.EqualFold(r.RouteID, routeID) {
			return apierror.Conflictf("Error: route_id %s already exists", routeID)
		}
		if strings.EqualFold(r.RoutePath, routePath) {
			return apierror.Conflictf("Error: route_path %s already exists", routePath)
		}
	}
	*list = append(*list, RouteComponent{RouteID: routeID, RoutePath: routePath, ProjectID: projectID})
	return nil
}

// RouteExists reports whether a route id is present in a project.
func RouteExists(list []RouteComponent, projectID, routeID string) bool {
	_, err := GetRoute(list, projectID, routeID)
	return err == nil
}

// GetRoute finds a route by project and id.
func GetRoute(list []RouteComponent, projectID, routeID string) (*RouteComponent, error) {
	for i := range list {
		if strings.EqualFold(list[i].ProjectID, projectID) && strings.EqualFold(list[i].RouteID, routeID) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: route %s not found", routeID)
}

// GetRouteByPath finds a route by project and exact path.
func GetRouteByPath(list []RouteComponent, projectID, routePath string) (*RouteComponent, error) {
	for i := range list {
		if strings.EqualFold(list[i].ProjectID, projectID) && strings.EqualFold(list[i].RoutePath, routePath) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: no route at %s", routePath)
}

// AddBodyPair validates and appends one typed body field.
func (r *RouteComponent) AddBodyPair(id string, t BodyDataType) error {
	pair, err := NewBodyData(id, t)
	if err != nil {
		return err
	}
	for _, b := range r.Body {
		if strings.EqualFold(b.ID, pair.ID) {
			return apierror.Conflictf("Error: body field %s already declared", pair.ID)
		}
	}
	r.Body = append(r.Body, pair)
	return nil
}

// UpdateRoutePath validates the new path and checks project-level
// uniqueness before assigning it.
func (r *RouteComponent) UpdateRoutePath(list []RouteComponent, routePath string) error {
	routePath, err := constraint.Validate("route_component", "route_path", routePath)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}
	for i := range list {
		if &list[i] == r {
			continue
		}
		if strings.EqualFold(list[i].ProjectID, r.ProjectID) && strings.EqualFold(list[i].RoutePath, routePath) {
			return apierror.Conflictf("Error: route_path %s already exists", routePath)
		}
	}
	r.RoutePath = routePath
	return nil
}

// DeleteRoute removes one route from a project.
func DeleteRoute(list *[]RouteComponent, projectID, routeID string) error {
	for i := range *list {
		if strings.EqualFold((*list)[i].ProjectID, projectID) && strings.EqualFold((*list)[i].RouteID, routeID) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: route %s not found", routeID)
}

// RoutesByProject returns the routes bound to one project.
func RoutesByProject(list []RouteComponent, projectID string) []RouteComponent {
	var out []RouteComponent
	for _, r := range list {
		if strings.EqualFold(r.ProjectID, projectID) {
			out = append(out, r)
		}
	}
	return out
}
