package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/contentforge/forge/bridge"
	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/pkg/apierror"
)

// projectPayload is the create-project request body.
type projectPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	APIPath     string `json:"api_path"`
}

// ListProjects serves GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.LoadProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, len(projects))
	for i, p := range projects {
		out[i] = map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
			"api_path":    p.APIPath,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateProject serves POST /projects.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var payload projectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadInputf("Error: invalid request body: %v", err))
		return
	}
	projects, err := s.store.LoadProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := model.CreateProject(&projects, payload.ID, payload.Name, payload.Description, payload.APIPath); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SaveProjects(projects); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload.ID)
}

// structurePayload is one field declaration in a create-collection body.
type structurePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Unique      bool   `json:"unique,omitempty"`
	Array       bool   `json:"array,omitempty"`
	Encrypted   bool   `json:"encrypted,omitempty"`
}

// collectionPayload is the create-collection request body.
type collectionPayload struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Structures  []structurePayload `json:"structures"`
}

// ListCollections serves GET /collections, optionally filtered by the
// project query parameter.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.store.LoadCollections()
	if err != nil {
		writeError(w, err)
		return
	}
	if project := r.URL.Query().Get("project"); project != "" {
		collections = model.CollectionsByProject(collections, project)
	}
	out := make([]map[string]any, len(collections))
	for i, c := range collections {
		structures := make([]map[string]any, len(c.Structures))
		for j, st := range c.Structures {
			structures[j] = map[string]any{
				"id":   st.ID,
				"name": st.Name,
				"type": st.SType.String(),
			}
		}
		out[i] = map[string]any{
			"id":         c.ID,
			"project_id": c.ProjectID,
			"name":       c.Name,
			"structures": structures,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCollection serves POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var payload collectionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadInputf("Error: invalid request body: %v", err))
		return
	}

	projects, err := s.store.LoadProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := model.GetProject(projects, payload.ProjectID); err != nil {
		writeError(w, err)
		return
	}

	collections, err := s.store.LoadCollections()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := model.CreateCollection(&collections, payload.ID, payload.ProjectID, payload.Name, payload.Description); err != nil {
		writeError(w, err)
		return
	}
	c := &collections[len(collections)-1]
	for _, sp := range payload.Structures {
		st, err := model.NewStructure(sp.ID, sp.Name, sp.Description, model.ParseStructureType(sp.Type))
		if err != nil {
			writeError(w, err)
			return
		}
		st.SetFlags(sp.Encrypted, sp.Unique, sp.Array, sp.Required)
		if sp.Default != "" {
			if err := st.SetDefault(sp.Default); err != nil {
				writeError(w, err)
				return
			}
		}
		if err := c.AddStructure(*st); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.store.SaveCollections(collections); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload.ID)
}

// CreateRecord serves POST /data/{project}/{collection}: the body is a
// raw pair tree validated against the collection's shape.
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project")
	collectionID := chi.URLParam(r, "collection")

	var tree bridge.RawTree
	if err := json.NewDecoder(r.Body).Decode(&tree); err != nil {
		writeError(w, apierror.BadInputf("Error: invalid request body: %v", err))
		return
	}

	collections, err := s.store.LoadCollections()
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := model.GetCollection(collections, collectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !strings.EqualFold(c.ProjectID, projectID) {
		writeError(w, apierror.NotFoundf("Error: collection %s not found", collectionID))
		return
	}

	d, err := s.store.CreateRecord(tree, collectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d.ID)
}
