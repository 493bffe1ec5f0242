package store

import (
	"strings"

	"github.com/contentforge/forge/bridge"
	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/pkg/apierror"
	"github.com/contentforge/forge/route"
)

// Cascading writes follow two rules. The dependent file is written
// first and the anchor file last, so a crash in between leaves the
// anchor still pointing at the old shape. And every file an operation
// will touch is locked up front, with the state reloaded under those
// locks, so a concurrent writer cannot slip in between the fetch and
// the save.

// collectionPaths resolves the file set a collection-level cascade
// touches: the collection file plus the record file. Runs outside the
// locks; state is reloaded once they are held.
func (s *Store) collectionPaths(collectionID string) (colPath, dataPath string, err error) {
	colPath, err = s.path("collections")
	if err != nil {
		return "", "", err
	}
	collections, err := s.LoadCollections()
	if err != nil {
		return "", "", err
	}
	c, err := model.GetCollection(collections, collectionID)
	if err != nil {
		return "", "", err
	}
	dataPath, err = s.dataPath(c.ProjectID, c.ID)
	if err != nil {
		return "", "", err
	}
	return colPath, dataPath, nil
}

// UpdateStructure replaces one structure of a collection. The schema
// change is validated in memory before any file is rewritten; an id
// change then retargets the collection's record file before the
// collection file.
func (s *Store) UpdateStructure(collectionID, oldID string, updated model.Structure) error {
	colPath, dataPath, err := s.collectionPaths(collectionID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		c, err := model.GetCollection(collections, collectionID)
		if err != nil {
			return err
		}
		if err := c.UpdateStructure(oldID, updated); err != nil {
			return err
		}

		if !strings.EqualFold(oldID, updated.ID) {
			records, err := s.loadData(c.ProjectID, c.ID)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				if err := model.BulkUpdateStructureID(records, oldID, updated.ID); err != nil {
					return err
				}
				if err := s.saveData(c.ProjectID, c.ID, records); err != nil {
					return err
				}
			}
		}
		return s.saveCollections(collections)
	}, colPath, dataPath)
}

// RemoveStructure drops a structure and its stored pairs.
func (s *Store) RemoveStructure(collectionID, structureID string) error {
	colPath, dataPath, err := s.collectionPaths(collectionID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		c, err := model.GetCollection(collections, collectionID)
		if err != nil {
			return err
		}
		if err := c.RemoveStructure(structureID); err != nil {
			return err
		}

		records, err := s.loadData(c.ProjectID, c.ID)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			model.BulkRemoveStructure(records, structureID)
			if err := s.saveData(c.ProjectID, c.ID, records); err != nil {
				return err
			}
		}
		return s.saveCollections(collections)
	}, colPath, dataPath)
}

// UpdateCollectionID renames a collection: record file moves to the
// new path, route references follow, the collection file is last.
func (s *Store) UpdateCollectionID(oldID, newID string) error {
	colPath, oldDataPath, err := s.collectionPaths(oldID)
	if err != nil {
		return err
	}
	collections, err := s.LoadCollections()
	if err != nil {
		return err
	}
	c, err := model.GetCollection(collections, oldID)
	if err != nil {
		return err
	}
	projectID := c.ProjectID
	newDataPath, err := s.dataPath(projectID, newID)
	if err != nil {
		return err
	}
	routesPath, err := s.routePath(projectID)
	if err != nil {
		return err
	}

	return s.withWrite(func() error {
		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		if _, err := model.GetCollection(collections, oldID); err != nil {
			return err
		}
		if model.CollectionExists(collections, newID) {
			return apierror.Conflictf("Error: id %s already exists", newID)
		}

		records, err := s.loadData(projectID, oldID)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			if err := model.BulkUpdateCollectionID(records, oldID, newID); err != nil {
				return err
			}
			if err := s.saveData(projectID, newID, records); err != nil {
				return err
			}
		}
		if err := s.removeData(projectID, oldID); err != nil {
			return err
		}

		routes, err := s.loadRoutes(projectID)
		if err != nil {
			return err
		}
		if retargetRoutes(routes, oldID, newID) {
			if err := s.saveRoutes(projectID, routes); err != nil {
				return err
			}
		}

		if err := model.UpdateCollectionID(&collections, oldID, newID); err != nil {
			return err
		}
		return s.saveCollections(collections)
	}, colPath, oldDataPath, newDataPath, routesPath)
}

// retargetRoutes rewrites collection references inside a project's
// routes. Reports whether anything changed.
func retargetRoutes(routes []route.RouteComponent, oldID, newID string) bool {
	changed := false
	for i := range routes {
		r := &routes[i]
		if strings.EqualFold(r.AuthJWT.RefCol, oldID) {
			r.AuthJWT.RefCol = newID
			changed = true
		}
		for j := range r.Flow.Fetchers {
			if strings.EqualFold(r.Flow.Fetchers[j].RefCol, oldID) {
				r.Flow.Fetchers[j].RefCol = newID
				changed = true
			}
		}
		for j := range r.Flow.Updates {
			if strings.EqualFold(r.Flow.Updates[j].RefCol, oldID) {
				r.Flow.Updates[j].RefCol = newID
				changed = true
			}
		}
		for j := range r.Flow.Creates {
			if strings.EqualFold(r.Flow.Creates[j].RefCol, oldID) {
				r.Flow.Creates[j].RefCol = newID
				changed = true
			}
		}
	}
	return changed
}

// DeleteCollection removes a collection and its record file.
func (s *Store) DeleteCollection(collectionID string) error {
	colPath, dataPath, err := s.collectionPaths(collectionID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		c, err := model.GetCollection(collections, collectionID)
		if err != nil {
			return err
		}

		if err := s.removeData(c.ProjectID, c.ID); err != nil {
			return err
		}
		if err := model.DeleteCollection(&collections, collectionID); err != nil {
			return err
		}
		return s.saveCollections(collections)
	}, colPath, dataPath)
}

// UpdateProjectID renames a project across record files, routes,
// collections, and finally the project file.
func (s *Store) UpdateProjectID(oldID, newID string) error {
	projPath, err := s.path("projects")
	if err != nil {
		return err
	}
	colPath, err := s.path("collections")
	if err != nil {
		return err
	}
	oldRoutes, err := s.routePath(oldID)
	if err != nil {
		return err
	}
	newRoutes, err := s.routePath(newID)
	if err != nil {
		return err
	}

	collections, err := s.LoadCollections()
	if err != nil {
		return err
	}
	paths := []string{projPath, colPath, oldRoutes, newRoutes}
	for _, c := range model.CollectionsByProject(collections, oldID) {
		oldData, err := s.dataPath(oldID, c.ID)
		if err != nil {
			return err
		}
		newData, err := s.dataPath(newID, c.ID)
		if err != nil {
			return err
		}
		paths = append(paths, oldData, newData)
	}

	return s.withWrite(func() error {
		projects, err := s.loadProjects()
		if err != nil {
			return err
		}
		if model.ProjectExists(projects, newID) {
			return apierror.Conflictf("Error: id %s already exists", newID)
		}
		if _, err := model.GetProject(projects, oldID); err != nil {
			return err
		}

		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		for _, c := range model.CollectionsByProject(collections, oldID) {
			records, err := s.loadData(oldID, c.ID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				continue
			}
			if err := model.BulkUpdateProjectID(records, oldID, newID); err != nil {
				return err
			}
			if err := s.saveData(newID, c.ID, records); err != nil {
				return err
			}
			if err := s.removeData(oldID, c.ID); err != nil {
				return err
			}
		}

		routes, err := s.loadRoutes(oldID)
		if err != nil {
			return err
		}
		if len(routes) > 0 {
			for i := range routes {
				routes[i].ProjectID = newID
			}
			if err := s.saveRoutes(newID, routes); err != nil {
				return err
			}
			if err := s.removeRoutes(oldID); err != nil {
				return err
			}
		}

		changedCollections := false
		for i := range collections {
			if strings.EqualFold(collections[i].ProjectID, oldID) {
				collections[i].ProjectID = newID
				changedCollections = true
			}
		}
		if changedCollections {
			if err := s.saveCollections(collections); err != nil {
				return err
			}
		}

		if err := model.UpdateProjectID(&projects, oldID, newID); err != nil {
			return err
		}
		return s.saveProjects(projects)
	}, paths...)
}

// DeleteProject removes a project with everything it owns: record
// files, routes, collections, then the project entry.
func (s *Store) DeleteProject(projectID string) error {
	projPath, err := s.path("projects")
	if err != nil {
		return err
	}
	colPath, err := s.path("collections")
	if err != nil {
		return err
	}
	routesPath, err := s.routePath(projectID)
	if err != nil {
		return err
	}

	collections, err := s.LoadCollections()
	if err != nil {
		return err
	}
	paths := []string{projPath, colPath, routesPath}
	for _, c := range model.CollectionsByProject(collections, projectID) {
		dataPath, err := s.dataPath(projectID, c.ID)
		if err != nil {
			return err
		}
		paths = append(paths, dataPath)
	}

	return s.withWrite(func() error {
		projects, err := s.loadProjects()
		if err != nil {
			return err
		}
		if _, err := model.GetProject(projects, projectID); err != nil {
			return err
		}

		collections, err := s.loadCollections()
		if err != nil {
			return err
		}
		var kept []model.Collection
		for _, c := range collections {
			if strings.EqualFold(c.ProjectID, projectID) {
				if err := s.removeData(c.ProjectID, c.ID); err != nil {
					return err
				}
				continue
			}
			kept = append(kept, c)
		}

		if err := s.removeRoutes(projectID); err != nil {
			return err
		}
		if err := s.saveCollections(kept); err != nil {
			return err
		}
		if err := model.DeleteProject(&projects, projectID); err != nil {
			return err
		}
		return s.saveProjects(projects)
	}, paths...)
}

// CreateRecord validates a raw tree against the collection and appends
// the record to its file. The record file stays locked from the load
// through the save so concurrent creates cannot drop each other.
func (s *Store) CreateRecord(tree bridge.RawTree, collectionID string) (model.Data, error) {
	collections, err := s.LoadCollections()
	if err != nil {
		return model.Data{}, err
	}
	c, err := model.GetCollection(collections, collectionID)
	if err != nil {
		return model.Data{}, err
	}
	dataPath, err := s.dataPath(c.ProjectID, c.ID)
	if err != nil {
		return model.Data{}, err
	}

	var out model.Data
	err = s.withWrite(func() error {
		records, err := s.loadData(c.ProjectID, c.ID)
		if err != nil {
			return err
		}
		d, err := bridge.TreeToData(tree, c, records, false, "")
		if err != nil {
			return err
		}
		records = append(records, d)
		if err := s.saveData(c.ProjectID, c.ID, records); err != nil {
			return err
		}
		out = d
		return nil
	}, dataPath)
	return out, err
}

// UpdateRecord replaces one record: the old one leaves the list before
// validation so uniqueness checks see only its siblings.
func (s *Store) UpdateRecord(tree bridge.RawTree, collectionID, dataID string) (model.Data, error) {
	collections, err := s.LoadCollections()
	if err != nil {
		return model.Data{}, err
	}
	c, err := model.GetCollection(collections, collectionID)
	if err != nil {
		return model.Data{}, err
	}
	dataPath, err := s.dataPath(c.ProjectID, c.ID)
	if err != nil {
		return model.Data{}, err
	}

	var out model.Data
	err = s.withWrite(func() error {
		records, err := s.loadData(c.ProjectID, c.ID)
		if err != nil {
			return err
		}
		if _, err := model.GetData(records, c.ProjectID, c.ID, dataID); err != nil {
			return err
		}
		if err := model.DeleteData(&records, dataID); err != nil {
			return err
		}

		d, err := bridge.TreeToData(tree, c, records, true, dataID)
		if err != nil {
			return err
		}
		records = append(records, d)
		if err := s.saveData(c.ProjectID, c.ID, records); err != nil {
			return err
		}
		out = d
		return nil
	}, dataPath)
	return out, err
}

// DeleteRecord removes one record from its collection file.
func (s *Store) DeleteRecord(collectionID, dataID string) error {
	collections, err := s.LoadCollections()
	if err != nil {
		return err
	}
	c, err := model.GetCollection(collections, collectionID)
	if err != nil {
		return err
	}
	dataPath, err := s.dataPath(c.ProjectID, c.ID)
	if err != nil {
		return err
	}

	return s.withWrite(func() error {
		records, err := s.loadData(c.ProjectID, c.ID)
		if err != nil {
			return err
		}
		if err := model.DeleteData(&records, dataID); err != nil {
			return err
		}
		return s.saveData(c.ProjectID, c.ID, records)
	}, dataPath)
}
