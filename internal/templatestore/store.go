// Package templatestore resolves template identifiers to Template
// definitions. The directory store reads one sub-directory per template from
// a list of search paths; each holds a template.json, template.yaml or
// template.yml definition and optionally a files/ directory with the sources
// FileDefinition.SourcePath points at.
package templatestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/types"
	"github.com/conneroisu/scaffold/internal/validation"
)

// definitionFiles are tried in order inside a template directory.
var definitionFiles = []string{"template.json", "template.yaml", "template.yml"}

// sourceDir holds template source files.
const sourceDir = "files"

// TemplateStore is the template contract of the core.
type TemplateStore interface {
	// GetTemplate resolves id, which may be a template id, name or
	// directory name.
	GetTemplate(ctx context.Context, id string) (*types.Template, error)
	// ReadTemplateFile returns the source file a file definition points at.
	ReadTemplateFile(ctx context.Context, tmpl *types.Template, sourcePath string) ([]byte, error)
	// List returns every template the store offers, sorted by name.
	List(ctx context.Context) ([]Summary, error)
}

// Summary describes a template without its body.
type Summary struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Dir         string `json:"dir" yaml:"dir"`
}

type entry struct {
	tmpl *types.Template
	dir  string
}

// Dir is a TemplateStore backed by template directories. The index is built
// on first use and kept for the life of the store.
type Dir struct {
	files filestore.FileStore
	paths []string

	mu      sync.Mutex
	loaded  bool
	entries []entry
	// byKey maps id, name and directory base name to entries
	byKey map[string]int
	// broken records directories whose definition failed to decode
	broken map[string]error
}

var _ TemplateStore = (*Dir)(nil)

// NewDir creates a store over the given search paths. Earlier paths win
// when two templates share a key.
func NewDir(files filestore.FileStore, paths ...string) *Dir {
	return &Dir{files: files, paths: paths}
}

// Reload drops the index so the next call rescans the search paths.
func (d *Dir) Reload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
}

func (d *Dir) index(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	d.entries = nil
	d.byKey = make(map[string]int)
	d.broken = make(map[string]error)

	for _, root := range d.paths {
		isDir, err := d.files.IsDirectory(ctx, root)
		if err != nil {
			return err
		}
		if !isDir {
			continue
		}
		children, err := d.files.ReadDir(ctx, root)
		if err != nil {
			return err
		}
		for _, child := range children {
			if !child.IsDir || strings.HasPrefix(child.Name, ".") {
				continue
			}
			dir := filepath.Join(root, child.Name)
			tmpl, found, err := d.loadDefinition(ctx, dir)
			if !found {
				continue
			}
			if err != nil {
				if _, seen := d.broken[child.Name]; !seen {
					d.broken[child.Name] = err
				}
				continue
			}
			d.add(entry{tmpl: tmpl, dir: dir}, child.Name)
		}
	}

	d.loaded = true
	return nil
}

func (d *Dir) add(e entry, base string) {
	idx := len(d.entries)
	d.entries = append(d.entries, e)
	for _, key := range []string{e.tmpl.ID, e.tmpl.Name, base} {
		if key == "" {
			continue
		}
		if _, taken := d.byKey[key]; !taken {
			d.byKey[key] = idx
		}
	}
}

func (d *Dir) loadDefinition(ctx context.Context, dir string) (*types.Template, bool, error) {
	for _, name := range definitionFiles {
		p := filepath.Join(dir, name)
		ok, err := d.files.IsFile(ctx, p)
		if err != nil {
			return nil, true, err
		}
		if !ok {
			continue
		}
		data, err := d.files.ReadFile(ctx, p)
		if err != nil {
			return nil, true, err
		}
		tmpl, err := Decode(data, filepath.Ext(name))
		if err != nil {
			return nil, true, errors.TemplateLoad(filepath.Base(dir), err).WithPath(p)
		}
		return tmpl, true, nil
	}
	return nil, false, nil
}

// Decode parses a template definition and fills defaults. ext selects the
// format: ".json" is decoded as JSON, anything else as YAML. Definitions
// without an id get the short SHA-256 of their bytes.
func Decode(data []byte, ext string) (*types.Template, error) {
	var tmpl types.Template
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &tmpl)
	} else {
		err = yaml.Unmarshal(data, &tmpl)
	}
	if err != nil {
		return nil, err
	}
	if tmpl.ID == "" {
		sum := sha256.Sum256(data)
		tmpl.ID = hex.EncodeToString(sum[:])[:12]
	}
	tmpl.ApplyDefaults()
	return &tmpl, nil
}

// GetTemplate resolves id to a template.
func (d *Dir) GetTemplate(ctx context.Context, id string) (*types.Template, error) {
	e, err := d.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.tmpl, nil
}

func (d *Dir) lookup(ctx context.Context, id string) (entry, error) {
	if err := d.index(ctx); err != nil {
		return entry{}, errors.TemplateLoad(id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if idx, ok := d.byKey[id]; ok {
		return d.entries[idx], nil
	}
	if err, ok := d.broken[id]; ok {
		return entry{}, err
	}
	return entry{}, errors.TemplateNotFound(id, d.suggest(id)...)
}

// suggest returns up to three known keys fuzzily matching id.
func (d *Dir) suggest(id string) []string {
	keys := make([]string, 0, len(d.entries)*2)
	seen := make(map[string]bool)
	for _, e := range d.entries {
		for _, k := range []string{e.tmpl.Name, filepath.Base(e.dir)} {
			if k != "" && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	matches := fuzzy.Find(id, keys)
	out := make([]string, 0, 3)
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].Str)
	}
	return out
}

// ReadTemplateFile reads sourcePath relative to the template directory,
// falling back to its files/ directory.
func (d *Dir) ReadTemplateFile(ctx context.Context, tmpl *types.Template, sourcePath string) ([]byte, error) {
	e, err := d.lookup(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}

	rel := path.Clean(filepath.ToSlash(sourcePath))
	candidates := []string{rel}
	if !strings.HasPrefix(rel, sourceDir+"/") {
		candidates = append(candidates, path.Join(sourceDir, rel))
	}

	for _, c := range candidates {
		p, err := validation.JoinWithin(e.dir, c)
		if err != nil {
			return nil, err
		}
		ok, err := d.files.IsFile(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			return d.files.ReadFile(ctx, p)
		}
	}

	return nil, errors.FileOperationError("READ", sourcePath, "template source file not found", nil).
		WithContext("template", tmpl.ID)
}

// List returns summaries of all templates sorted by name.
func (d *Dir) List(ctx context.Context) ([]Summary, error) {
	if err := d.index(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Summary, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, Summary{
			ID:          e.tmpl.ID,
			Name:        e.tmpl.Name,
			Version:     e.tmpl.Version,
			Description: e.tmpl.Description,
			Dir:         e.dir,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Keys returns the names and directory names of all templates, for
// completion and hints.
func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	summaries, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(summaries))
	for _, s := range summaries {
		keys = append(keys, filepath.Base(s.Dir))
	}
	return keys, nil
}
