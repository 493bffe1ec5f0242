package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/contentforge/forge/flow"
	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/pkg/apierror"
	"github.com/contentforge/forge/route"
	"github.com/contentforge/forge/store"
)

// Server binds the HTTP surface to one store.
type Server struct {
	store     *store.Store
	logger    *slog.Logger
	jwtSecret []byte
	loopCap   int
}

// NewServer builds the handler set. loopCap <= 0 keeps the default
// iteration ceiling.
func NewServer(st *store.Store, logger *slog.Logger, jwtSecret string, loopCap int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		loopCap:   loopCap,
	}
}

// ExecuteRoute serves POST /x/*: project by longest api_path prefix,
// route by exact path, then one flow interpretation.
func (s *Server) ExecuteRoute(w http.ResponseWriter, r *http.Request) {
	requestPath := "/" + chi.URLParam(r, "*")

	projects, err := s.store.LoadProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := model.ProjectByAPIPath(projects, requestPath)
	if err != nil {
		writeError(w, err)
		return
	}
	routePath := strings.TrimPrefix(requestPath, p.APIPath)
	if routePath == "" {
		routePath = "/"
	}

	routes, err := s.store.LoadRoutes(p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	rt, err := route.GetRouteByPath(routes, p.ID, routePath)
	if err != nil {
		writeError(w, err)
		return
	}

	source, err := s.store.NewFlowSource()
	if err != nil {
		writeError(w, err)
		return
	}

	inputs := map[string]flow.DefinitionData{}
	if rt.AuthJWT.Active {
		if ok := s.authenticate(w, r, rt, p.ID, source, inputs); !ok {
			return
		}
	}
	if err := bindBody(r, rt, inputs); err != nil {
		writeError(w, err)
		return
	}
	if err := bindParams(r, rt, inputs); err != nil {
		writeError(w, err)
		return
	}

	interp := flow.New(source, s.logger)
	interp.SetLoopCap(s.loopCap)
	result, _, err := interp.Execute(r.Context(), rt, inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := source.Flush(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result.Status, result.Value.Value())
}

// authenticate verifies the Bearer token and checks the configured
// claim against the reference collection. Inputs gain the claim value
// under auth_<field>. Reports whether the request may proceed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, rt *route.RouteComponent, projectID string, source *store.FlowSource, inputs map[string]flow.DefinitionData) bool {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		writeJSON(w, http.StatusUnauthorized, "Error: missing bearer token")
		return false
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		writeJSON(w, http.StatusUnauthorized, "Error: invalid token")
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, "Error: invalid token")
		return false
	}
	claim, ok := claims[rt.AuthJWT.Field]
	if !ok {
		writeJSON(w, http.StatusUnauthorized,
			fmt.Sprintf("Error: token is missing the %s claim", rt.AuthJWT.Field))
		return false
	}
	claimData := flow.FromAny(claim)

	records, err := source.Fetch(projectID, rt.AuthJWT.RefCol)
	if err != nil {
		writeError(w, err)
		return false
	}
	for _, rec := range records {
		if flow.FromAny(rec[rt.AuthJWT.Field]).AsString() == claimData.AsString() {
			inputs["auth_"+rt.AuthJWT.Field] = claimData
			return true
		}
	}
	writeJSON(w, http.StatusForbidden, "Error: token subject not recognised")
	return false
}

// bindBody types the JSON body along the route's declared pairs. Every
// declared field is required.
func bindBody(r *http.Request, rt *route.RouteComponent, inputs map[string]flow.DefinitionData) error {
	if len(rt.Body) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierror.BadInputf("Error: invalid request body: %v", err)
	}
	for _, pair := range rt.Body {
		v, ok := body[pair.ID]
		if !ok {
			return apierror.BadInputf("Error: missing required body field %s", pair.ID)
		}
		typed, err := flow.Coerce(flow.FromAny(v), pair.Type)
		if err != nil {
			return err
		}
		inputs[pair.ID] = typed
	}
	return nil
}

// bindParams types the query string along the route's param pairs. The
// raw query is split on the route's declared delimiter; individual
// params are optional.
func bindParams(r *http.Request, rt *route.RouteComponent, inputs map[string]flow.DefinitionData) error {
	if rt.Params == nil || len(rt.Params.Pairs) == 0 {
		return nil
	}
	values := map[string]string{}
	for _, chunk := range strings.Split(r.URL.RawQuery, rt.Params.Delimiter) {
		if chunk == "" {
			continue
		}
		key, value, _ := strings.Cut(chunk, "=")
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return apierror.BadInputf("Error: malformed query parameter %s", key)
		}
		values[key] = decoded
	}
	for _, pair := range rt.Params.Pairs {
		raw, ok := values[pair.ID]
		if !ok {
			continue
		}
		typed, err := flow.Coerce(flow.String(raw), pair.Type)
		if err != nil {
			return err
		}
		inputs[pair.ID] = typed
	}
	return nil
}
