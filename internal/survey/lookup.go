package survey

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lookups/*.yaml
var builtinLookups embed.FS

// Entry assigns derived labels to one packed code. Fields left out of
// Labels decode to null.
type Entry struct {
	Code   float64           `yaml:"code"`
	Labels map[string]string `yaml:"labels"`
}

// LookupTable is hand-authored domain data that splits one packed code
// column into several semantic columns for one slice type.
type LookupTable struct {
	Name        string   `yaml:"name"`
	Version     int      `yaml:"version"`
	Description string   `yaml:"description,omitempty"`
	Column      string   `yaml:"column,omitempty"`
	Fields      []string `yaml:"fields"`
	Slice       Key      `yaml:"slice,omitempty"`
	Entries     []Entry  `yaml:"codes"`
	// Unverified marks tables whose codes were not checked against a
	// published export. Decoding with one logs a warning.
	Unverified bool `yaml:"unverified,omitempty"`

	// Source is where the table was loaded from.
	Source string `yaml:"-"`

	index map[float64]map[string]string
}

// ParseLookup decodes and validates a lookup table document.
func ParseLookup(data []byte, source string) (*LookupTable, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var lt LookupTable
	if err := dec.Decode(&lt); err != nil {
		return nil, fmt.Errorf("parse lookup %s: %w", source, err)
	}
	lt.Source = source
	if err := lt.Validate(); err != nil {
		return nil, err
	}
	return &lt, nil
}

// Validate checks the table and builds its code index.
func (lt *LookupTable) Validate() error {
	if strings.TrimSpace(lt.Name) == "" {
		return fmt.Errorf("lookup %s: name is required", lt.Source)
	}
	if len(lt.Fields) == 0 {
		return fmt.Errorf("lookup %s: at least one field is required", lt.Name)
	}
	if lt.Column == "" {
		lt.Column = AxisStubLabel.CodeColumn
	}
	declared := make(map[string]bool, len(lt.Fields))
	for _, f := range lt.Fields {
		if declared[f] {
			return fmt.Errorf("lookup %s: field %q declared twice", lt.Name, f)
		}
		declared[f] = true
	}
	lt.index = make(map[float64]map[string]string, len(lt.Entries))
	for _, e := range lt.Entries {
		if _, dup := lt.index[e.Code]; dup {
			return fmt.Errorf("lookup %s: code %s listed twice", lt.Name, formatCode(e.Code))
		}
		for k := range e.Labels {
			if !declared[k] {
				return fmt.Errorf("lookup %s: code %s uses undeclared field %q", lt.Name, formatCode(e.Code), k)
			}
		}
		lt.index[e.Code] = e.Labels
	}
	return nil
}

// Labels returns the derived labels for code.
func (lt *LookupTable) Labels(code float64) (map[string]string, bool) {
	l, ok := lt.index[code]
	return l, ok
}

// Registry holds lookup tables by name.
type Registry struct {
	tables map[string]*LookupTable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: map[string]*LookupTable{}}
}

// BuiltinRegistry returns a registry holding the tables shipped with the binary.
func BuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.loadFS(builtinLookups, "lookups", "builtin:"); err != nil {
		return nil, err
	}
	return r, nil
}

// Add registers a table. A higher version replaces a registered table of
// the same name; a lower one is ignored; an equal one is an error.
func (r *Registry) Add(lt *LookupTable) error {
	if lt.index == nil {
		if err := lt.Validate(); err != nil {
			return err
		}
	}
	prev, ok := r.tables[lt.Name]
	switch {
	case !ok, lt.Version > prev.Version:
		r.tables[lt.Name] = lt
	case lt.Version == prev.Version:
		return fmt.Errorf("lookup %s version %d registered twice (%s, %s)", lt.Name, lt.Version, prev.Source, lt.Source)
	}
	return nil
}

// LoadDir registers every *.yaml / *.yml file in dir.
func (r *Registry) LoadDir(dir string) error {
	return r.loadFS(os.DirFS(dir), ".", dir+string(filepath.Separator))
}

func (r *Registry) loadFS(fsys fs.FS, root, prefix string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read lookup dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, pathJoin(root, name))
		if err != nil {
			return fmt.Errorf("read lookup %s: %w", name, err)
		}
		lt, err := ParseLookup(data, prefix+name)
		if err != nil {
			return err
		}
		if err := r.Add(lt); err != nil {
			return err
		}
	}
	return nil
}

func pathJoin(root, name string) string {
	if root == "." {
		return name
	}
	return root + "/" + name
}

// ErrLookupNotFound is returned by Get for unknown names.
var ErrLookupNotFound = errors.New("lookup table not found")

// Get returns the table registered under name.
func (r *Registry) Get(name string) (*LookupTable, error) {
	lt, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrLookupNotFound, name, strings.Join(r.Names(), ", "))
	}
	return lt, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tables))
	for n := range r.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// List returns registered tables sorted by name.
func (r *Registry) List() []*LookupTable {
	out := make([]*LookupTable, 0, len(r.tables))
	for _, n := range r.Names() {
		out = append(out, r.tables[n])
	}
	return out
}
