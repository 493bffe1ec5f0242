// Package store is the persistence fabric: typed load/save per entity
// class over the codec and the mapping registry, one advisory lock per
// logical file, and the cascade orchestration that keeps dependent
// files consistent.
package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/model"
	"github.com/contentforge/forge/registry"
	"github.com/contentforge/forge/route"
)

// Store owns the data root. All paths are resolved through the
// registry so the physical layout stays in one place.
type Store struct {
	root     string
	key      string
	registry *registry.Registry
	logger   *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.RWMutex
}

// Open loads (or seeds) the mapping registry under root and prepares
// the encryption key. tmpPassword guards the key file; an empty
// password leaves storage unencrypted.
func Open(root, tmpPassword string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg, err := registry.New(filepath.Join(root, "data", "mappings.txt"))
	if err != nil {
		return nil, err
	}
	s := &Store{
		root:     root,
		registry: reg,
		logger:   logger,
		locks:    map[string]*sync.RWMutex{},
	}
	if err := s.bootstrapKey(tmpPassword); err != nil {
		return nil, err
	}
	return s, nil
}

// Registry exposes the mapping table.
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// bootstrapKey loads the storage key from the encryption_key file,
// generating a fresh one on first start. The key file itself is
// encrypted with the bootstrap password.
func (s *Store) bootstrapKey(tmpPassword string) error {
	if tmpPassword == "" {
		return nil
	}
	path, err := s.path("encryption_key")
	if err != nil {
		return err
	}
	key, err := codec.Fetch(path, tmpPassword)
	if err != nil {
		return err
	}
	if key == "" {
		key = uuid.New().String()
		if err := codec.Save(path, key, tmpPassword); err != nil {
			return err
		}
		s.logger.Info("generated new storage encryption key")
	}
	s.key = key
	return nil
}

// FilePath resolves a logical mapping name to the absolute path of its
// file, for callers that watch or inspect storage from outside.
func (s *Store) FilePath(name string) (string, error) {
	return s.path(name)
}

// path resolves a logical mapping name to an absolute path.
func (s *Store) path(name string) (string, error) {
	rel, err := s.registry.Get(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, rel), nil
}

// dataPath is the per-collection record file.
func (s *Store) dataPath(projectID, collectionID string) (string, error) {
	base, err := s.path("data")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, projectID, collectionID, "data.txt"), nil
}

// routePath is the per-project route file.
func (s *Store) routePath(projectID string) (string, error) {
	base, err := s.path("routes")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, projectID+".txt"), nil
}

// lockFor hands out the advisory lock of one logical file.
func (s *Store) lockFor(path string) *sync.RWMutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[path] = l
	}
	return l
}

// withRead runs fn while holding the file's read lock.
func (s *Store) withRead(path string, fn func() error) error {
	l := s.lockFor(path)
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// withWrite runs fn while holding the write lock of every path. A
// mutation holds its locks from fetch through save so a concurrent
// writer cannot clobber the rewrite. Locks are taken in sorted path
// order; operations spanning several files therefore cannot deadlock
// each other.
func (s *Store) withWrite(fn func() error, paths ...string) error {
	ordered := append([]string(nil), paths...)
	sort.Strings(ordered)

	var held []*sync.RWMutex
	prev := ""
	for _, p := range ordered {
		if p == prev {
			continue
		}
		prev = p
		l := s.lockFor(p)
		l.Lock()
		held = append(held, l)
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()
	return fn()
}

// --- raw file ops; callers hold the matching lock ---

func (s *Store) read(path string) (string, error) {
	return codec.Fetch(path, s.key)
}

func (s *Store) write(path, text string) error {
	return codec.Save(path, text, s.key)
}

// --- unlocked typed accessors, used inside withRead/withWrite ---

func (s *Store) loadProjects() ([]model.Project, error) {
	path, err := s.path("projects")
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return model.ParseProjects(text)
}

func (s *Store) saveProjects(list []model.Project) error {
	path, err := s.path("projects")
	if err != nil {
		return err
	}
	return s.write(path, model.ProjectsToText(list))
}

func (s *Store) loadCollections() ([]model.Collection, error) {
	path, err := s.path("collections")
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return model.ParseCollections(text)
}

func (s *Store) saveCollections(list []model.Collection) error {
	path, err := s.path("collections")
	if err != nil {
		return err
	}
	return s.write(path, model.CollectionsToText(list))
}

func (s *Store) loadUsers() ([]model.User, error) {
	path, err := s.path("users")
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return model.ParseUsers(text)
}

func (s *Store) saveUsers(list []model.User) error {
	path, err := s.path("users")
	if err != nil {
		return err
	}
	return s.write(path, model.UsersToText(list))
}

func (s *Store) loadData(projectID, collectionID string) ([]model.Data, error) {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return model.ParseDataList(text)
}

func (s *Store) saveData(projectID, collectionID string, list []model.Data) error {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return err
	}
	return s.write(path, model.DataToText(list))
}

// removeData deletes one collection's record file and its backing
// directory. The project directory stays while other collections own
// files under it.
func (s *Store) removeData(projectID, collectionID string) error {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return err
	}
	if err := codec.Remove(path); err != nil {
		return err
	}
	_ = os.Remove(filepath.Dir(path))
	_ = os.Remove(filepath.Dir(filepath.Dir(path)))
	return nil
}

func (s *Store) loadRoutes(projectID string) ([]route.RouteComponent, error) {
	path, err := s.routePath(projectID)
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return route.ParseRoutes(text, s.logger), nil
}

func (s *Store) saveRoutes(projectID string, list []route.RouteComponent) error {
	path, err := s.routePath(projectID)
	if err != nil {
		return err
	}
	return s.write(path, route.RoutesToText(list))
}

func (s *Store) removeRoutes(projectID string) error {
	path, err := s.routePath(projectID)
	if err != nil {
		return err
	}
	return codec.Remove(path)
}

func (s *Store) loadConstraints() (*constraint.Catalog, error) {
	path, err := s.path("constraints")
	if err != nil {
		return nil, err
	}
	text, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return constraint.Seed(), nil
	}
	return constraint.ParseCatalog(text)
}

// --- public accessors; each takes the lock of the file it touches ---

func (s *Store) LoadProjects() ([]model.Project, error) {
	path, err := s.path("projects")
	if err != nil {
		return nil, err
	}
	var list []model.Project
	err = s.withRead(path, func() error {
		var e error
		list, e = s.loadProjects()
		return e
	})
	return list, err
}

func (s *Store) SaveProjects(list []model.Project) error {
	path, err := s.path("projects")
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.saveProjects(list)
	}, path)
}

func (s *Store) LoadCollections() ([]model.Collection, error) {
	path, err := s.path("collections")
	if err != nil {
		return nil, err
	}
	var list []model.Collection
	err = s.withRead(path, func() error {
		var e error
		list, e = s.loadCollections()
		return e
	})
	return list, err
}

func (s *Store) SaveCollections(list []model.Collection) error {
	path, err := s.path("collections")
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.saveCollections(list)
	}, path)
}

func (s *Store) LoadUsers() ([]model.User, error) {
	path, err := s.path("users")
	if err != nil {
		return nil, err
	}
	var list []model.User
	err = s.withRead(path, func() error {
		var e error
		list, e = s.loadUsers()
		return e
	})
	return list, err
}

func (s *Store) SaveUsers(list []model.User) error {
	path, err := s.path("users")
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.saveUsers(list)
	}, path)
}

// LoadData reads one collection's records.
func (s *Store) LoadData(projectID, collectionID string) ([]model.Data, error) {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return nil, err
	}
	var list []model.Data
	err = s.withRead(path, func() error {
		var e error
		list, e = s.loadData(projectID, collectionID)
		return e
	})
	return list, err
}

// SaveData rewrites one collection's record file.
func (s *Store) SaveData(projectID, collectionID string, list []model.Data) error {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.saveData(projectID, collectionID, list)
	}, path)
}

// RemoveData deletes one collection's record file and its backing
// directory.
func (s *Store) RemoveData(projectID, collectionID string) error {
	path, err := s.dataPath(projectID, collectionID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.removeData(projectID, collectionID)
	}, path)
}

// LoadRoutes reads one project's route file. Unparseable routes are
// dropped with a log line; the rest load.
func (s *Store) LoadRoutes(projectID string) ([]route.RouteComponent, error) {
	path, err := s.routePath(projectID)
	if err != nil {
		return nil, err
	}
	var list []route.RouteComponent
	err = s.withRead(path, func() error {
		var e error
		list, e = s.loadRoutes(projectID)
		return e
	})
	return list, err
}

func (s *Store) SaveRoutes(projectID string, list []route.RouteComponent) error {
	path, err := s.routePath(projectID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.saveRoutes(projectID, list)
	}, path)
}

// RemoveRoutes deletes one project's route file.
func (s *Store) RemoveRoutes(projectID string) error {
	path, err := s.routePath(projectID)
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.removeRoutes(projectID)
	}, path)
}

// LoadConstraints reads the persisted catalog; an absent file yields
// the seeded one.
func (s *Store) LoadConstraints() (*constraint.Catalog, error) {
	path, err := s.path("constraints")
	if err != nil {
		return nil, err
	}
	var c *constraint.Catalog
	err = s.withRead(path, func() error {
		var e error
		c, e = s.loadConstraints()
		return e
	})
	return c, err
}

func (s *Store) SaveConstraints(c *constraint.Catalog) error {
	path, err := s.path("constraints")
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		return s.write(path, c.String())
	}, path)
}

// InstallConstraints loads the persisted catalog and makes it the
// process-wide default, seeding the file on first start.
func (s *Store) InstallConstraints() error {
	path, err := s.path("constraints")
	if err != nil {
		return err
	}
	return s.withWrite(func() error {
		c, err := s.loadConstraints()
		if err != nil {
			return err
		}
		constraint.SetDefault(c)

		existing, err := s.read(path)
		if err != nil {
			return err
		}
		if existing == "" {
			return s.write(path, c.String())
		}
		return nil
	}, path)
}
