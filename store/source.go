package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/contentforge/forge/bridge"
	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/pkg/apierror"
)

// FlowSource adapts the store to the flow interpreter: records are
// served as loose maps, mutations stay in a per-request cache, and
// only collections touched by a save-flagged block hit disk on Flush.
// One FlowSource serves exactly one request and needs no locking.
type FlowSource struct {
	store       *Store
	collections []model.Collection
	cache       map[string][]model.Data
	persist     map[string]bool
}

// NewFlowSource snapshots the schema for one request.
func (s *Store) NewFlowSource() (*FlowSource, error) {
	collections, err := s.LoadCollections()
	if err != nil {
		return nil, err
	}
	return &FlowSource{
		store:       s,
		collections: collections,
		cache:       map[string][]model.Data{},
		persist:     map[string]bool{},
	}, nil
}

func cacheKey(projectID, collectionID string) string {
	return projectID + "/" + collectionID
}

func (f *FlowSource) collection(projectID, collectionID string) (*model.Collection, error) {
	c, err := model.GetCollection(f.collections, collectionID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(c.ProjectID, projectID) {
		return nil, apierror.NotFoundf("Error: collection %s not found", collectionID)
	}
	return c, nil
}

func (f *FlowSource) records(projectID, collectionID string) ([]model.Data, error) {
	key := cacheKey(projectID, collectionID)
	if cached, ok := f.cache[key]; ok {
		return cached, nil
	}
	records, err := f.store.LoadData(projectID, collectionID)
	if err != nil {
		return nil, err
	}
	f.cache[key] = records
	return records, nil
}

// Fetch serves one collection's records as maps keyed by structure id,
// values typed by the stored dtype.
func (f *FlowSource) Fetch(projectID, collectionID string) ([]map[string]any, error) {
	if _, err := f.collection(projectID, collectionID); err != nil {
		return nil, err
	}
	records, err := f.records(projectID, collectionID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(records))
	for i, d := range records {
		rec := map[string]any{
			"id":        d.ID,
			"published": d.Published,
		}
		for _, p := range d.Pairs {
			rec[p.StructureID] = typedValue(p)
		}
		out[i] = rec
	}
	return out, nil
}

// typedValue maps a stored pair back to a dynamic value.
func typedValue(p model.DataPair) any {
	value := codec.UnescapeValue(p.Value)
	switch strings.ToUpper(p.DType) {
	case "INTEGER":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	case "FLOAT":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case "BOOLEAN":
		switch strings.ToLower(value) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return value
}

// stringify renders a dynamic value back into pair form.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Update applies mutated records back into the cache by id. The save
// flag marks the collection for persistence on Flush.
func (f *FlowSource) Update(projectID, collectionID string, records []map[string]any, save bool) error {
	if _, err := f.collection(projectID, collectionID); err != nil {
		return err
	}
	cached, err := f.records(projectID, collectionID)
	if err != nil {
		return err
	}

	for _, rec := range records {
		id, _ := rec["id"].(string)
		if id == "" {
			return apierror.BadInputf("Error: updated record is missing its id")
		}
		d, err := model.GetData(cached, projectID, collectionID, id)
		if err != nil {
			return err
		}
		if published, ok := rec["published"].(bool); ok {
			d.Published = published
		}
		for i := range d.Pairs {
			v, present := rec[d.Pairs[i].StructureID]
			if !present {
				continue
			}
			if err := d.Pairs[i].UpdateValue(stringify(v)); err != nil {
				return err
			}
		}
	}

	key := cacheKey(projectID, collectionID)
	f.cache[key] = cached
	if save {
		f.persist[key] = true
	}
	return nil
}

// Create validates a loose object against the collection's shape and
// appends the record to the cache.
func (f *FlowSource) Create(projectID, collectionID string, record map[string]any, save bool) error {
	c, err := f.collection(projectID, collectionID)
	if err != nil {
		return err
	}
	cached, err := f.records(projectID, collectionID)
	if err != nil {
		return err
	}

	tree := objectToTree(record, c)
	d, err := bridge.TreeToData(tree, c, cached, false, "")
	if err != nil {
		return err
	}

	key := cacheKey(projectID, collectionID)
	f.cache[key] = append(cached, d)
	if save {
		f.persist[key] = true
	}
	return nil
}

// objectToTree shapes a loose object along the collection: top-level
// keys bind to structures, nested maps keyed by a custom structure id
// bind to its group.
func objectToTree(record map[string]any, c *model.Collection) bridge.RawTree {
	var tree bridge.RawTree
	for _, s := range c.Structures {
		v, ok := record[s.ID]
		if !ok {
			continue
		}
		tree.Pairs = append(tree.Pairs, bridge.RawPair{
			ID:    s.ID,
			Type:  s.SType.String(),
			Value: stringify(v),
			Array: s.Array,
		})
	}
	for _, cs := range c.CustomStructures {
		nested, ok := record[cs.ID].(map[string]any)
		if !ok {
			continue
		}
		group := bridge.RawGroup{CustomStructureID: cs.ID}
		for _, s := range cs.Structures {
			v, ok := nested[s.ID]
			if !ok {
				continue
			}
			group.Pairs = append(group.Pairs, bridge.RawPair{
				ID:    s.ID,
				Type:  s.SType.String(),
				Value: stringify(v),
				Array: s.Array,
			})
		}
		if len(group.Pairs) > 0 {
			tree.Groups = append(tree.Groups, group)
		}
	}
	return tree
}

// Flush persists every collection a save-flagged block touched. All
// touched record files are locked together so the request's writes
// land as one unit.
func (f *FlowSource) Flush() error {
	if len(f.persist) == 0 {
		return nil
	}
	paths := make([]string, 0, len(f.persist))
	for key := range f.persist {
		projectID, collectionID, _ := strings.Cut(key, "/")
		path, err := f.store.dataPath(projectID, collectionID)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	return f.store.withWrite(func() error {
		for key := range f.persist {
			projectID, collectionID, _ := strings.Cut(key, "/")
			if err := f.store.saveData(projectID, collectionID, f.cache[key]); err != nil {
				return err
			}
		}
		return nil
	}, paths...)
}
