package constraint

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/pkg/apierror"
)

// Catalog is the in-memory constraint table. It is read-mostly: the
// process keeps one cached instance and invalidates it only on the
// catalog's own mutation operations (or via the file watcher).
type Catalog struct {
	mu          sync.RWMutex
	constraints []Constraint
}

// NewCatalog creates a catalog with the given rows.
func NewCatalog(rows []Constraint) *Catalog {
	return &Catalog{constraints: rows}
}

// Get returns the constraint row for a component.
func (c *Catalog) Get(component string) (*Constraint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.constraints {
		if c.constraints[i].ComponentName == component {
			return &c.constraints[i], nil
		}
	}
	return nil, apierror.NotFoundf("constraint: component %s not found", component)
}

// All returns a copy of every constraint row.
func (c *Catalog) All() []Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Constraint, len(c.constraints))
	copy(out, c.constraints)
	return out
}

// Validate runs the property rule of component.property over value.
func (c *Catalog) Validate(component, property, value string) (string, error) {
	row, err := c.Get(component)
	if err != nil {
		return "", err
	}
	prop, err := row.Property(property)
	if err != nil {
		return "", err
	}
	return prop.Validate(value)
}

// Set replaces or adds the row for a component.
func (c *Catalog) Set(row Constraint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.constraints {
		if c.constraints[i].ComponentName == row.ComponentName {
			c.constraints[i] = row
			return
		}
	}
	c.constraints = append(c.constraints, row)
}

// Remove deletes the row for a component.
func (c *Catalog) Remove(component string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.constraints {
		if c.constraints[i].ComponentName == component {
			c.constraints = append(c.constraints[:i], c.constraints[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("constraint: component %s not found", component)
}

// Replace swaps the entire row set, used when reloading from disk.
func (c *Catalog) Replace(rows []Constraint) {
	c.mu.Lock()
	c.constraints = rows
	c.mu.Unlock()
}

// String serialises the catalog: one component per line,
// component_name;prop§prop§… with property fields separated by | and
// character sets encoded as comma-separated code points.
func (c *Catalog) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lines := make([]string, 0, len(c.constraints))
	for _, row := range c.constraints {
		props := make([]string, 0, len(row.Properties))
		for _, p := range row.Properties {
			props = append(props, fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
				p.PropertyName,
				boolDigit(p.IsAlphabetic), boolDigit(p.IsNumeric),
				p.Min, p.Max,
				encodeRunes(p.NotAllowed), encodeRunes(p.AdditionalAllowed)))
		}
		lines = append(lines, row.ComponentName+";"+strings.Join(props, "§"))
	}
	return strings.Join(lines, "\n")
}

// ParseCatalog parses the serialised catalog form.
func ParseCatalog(text string) (*Catalog, error) {
	var rows []Constraint
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ";")
		if !ok {
			return nil, apierror.Internalf("constraint: malformed catalog line %q", line)
		}
		row := Constraint{ComponentName: name}
		if rest != "" {
			for _, raw := range strings.Split(rest, "§") {
				fields := strings.Split(raw, "|")
				if len(fields) != 7 {
					return nil, apierror.Internalf("constraint: malformed property %q", raw)
				}
				min, err := strconv.Atoi(fields[3])
				if err != nil {
					return nil, apierror.Internalf("constraint: bad min in %q", raw)
				}
				max, err := strconv.Atoi(fields[4])
				if err != nil {
					return nil, apierror.Internalf("constraint: bad max in %q", raw)
				}
				notAllowed, err := decodeRunes(fields[5])
				if err != nil {
					return nil, err
				}
				additional, err := decodeRunes(fields[6])
				if err != nil {
					return nil, err
				}
				row.Properties = append(row.Properties, ConstraintProperty{
					PropertyName:      fields[0],
					IsAlphabetic:      fields[1] == "1",
					IsNumeric:         fields[2] == "1",
					Min:               min,
					Max:               max,
					NotAllowed:        notAllowed,
					AdditionalAllowed: additional,
				})
			}
		}
		rows = append(rows, row)
	}
	return NewCatalog(rows), nil
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func encodeRunes(rs []rune) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ",")
}

func decodeRunes(s string) ([]rune, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]rune, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, apierror.Internalf("constraint: bad code point %q", p)
		}
		out = append(out, rune(n))
	}
	return out, nil
}

var defaultCatalog = struct {
	mu sync.RWMutex
	c  *Catalog
}{c: Seed()}

// Default returns the process-wide cached catalog.
func Default() *Catalog {
	defaultCatalog.mu.RLock()
	defer defaultCatalog.mu.RUnlock()
	return defaultCatalog.c
}

// SetDefault swaps the process-wide catalog, e.g. after loading the
// persisted one at startup.
func SetDefault(c *Catalog) {
	defaultCatalog.mu.Lock()
	defaultCatalog.c = c
	defaultCatalog.mu.Unlock()
}

// Validate runs a rule from the process-wide catalog.
func Validate(component, property, value string) (string, error) {
	return Default().Validate(component, property, value)
}

// Watch reloads the default catalog whenever the constraints file
// changes on disk. It blocks until the watcher fails or the watch
// channel closes, so callers run it in a goroutine.
func Watch(path, key string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("constraint: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("constraint: watch %s: %w", path, err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			text, err := codec.Fetch(path, key)
			if err != nil {
				logger.Error("constraint reload failed", "path", path, "error", err)
				continue
			}
			cat, err := ParseCatalog(text)
			if err != nil {
				logger.Error("constraint parse failed", "path", path, "error", err)
				continue
			}
			SetDefault(cat)
			logger.Info("constraint catalog reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("constraint watcher error", "error", err)
		}
	}
}
