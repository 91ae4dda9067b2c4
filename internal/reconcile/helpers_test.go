package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/templatestore"
	"github.com/conneroisu/scaffold/internal/types"
)

var fixedNow = time.Date(2024, 3, 7, 9, 5, 3, 0, time.UTC)

// memTemplates serves templates and their source files from memory.
type memTemplates struct {
	templates []*types.Template
	sources   map[string]string
}

func newMemTemplates(tmpls ...*types.Template) *memTemplates {
	return &memTemplates{templates: tmpls, sources: map[string]string{
		"index.js": "console.log('{{app}} on {{port}}')\n",
	}}
}

func (m *memTemplates) GetTemplate(_ context.Context, id string) (*types.Template, error) {
	for _, t := range m.templates {
		if t.ID == id || t.Name == id {
			return t, nil
		}
	}
	return nil, errors.TemplateNotFound(id)
}

func (m *memTemplates) ReadTemplateFile(_ context.Context, tmpl *types.Template, sourcePath string) ([]byte, error) {
	src, ok := m.sources[sourcePath]
	if !ok {
		return nil, errors.FileOperationError("READ", sourcePath, "template source file not found", nil)
	}
	return []byte(src), nil
}

func (m *memTemplates) List(context.Context) ([]templatestore.Summary, error) {
	out := make([]templatestore.Summary, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, templatestore.Summary{ID: t.ID, Name: t.Name, Version: t.Version})
	}
	return out, nil
}

// countingStore counts mutating calls on the wrapped store and can fail
// writes to paths with a given suffix or every manifest update.
type countingStore struct {
	filestore.FileStore
	writes       atomic.Int64
	failWith     string
	failManifest atomic.Bool
}

func (s *countingStore) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	s.writes.Add(1)
	if s.failWith != "" && strings.HasSuffix(path, s.failWith) {
		return errors.FileOperationError("WRITE", path, "disk full", nil)
	}
	return s.FileStore.WriteFile(ctx, path, data, perm)
}

func (s *countingStore) CreateDirectory(ctx context.Context, path string, perm os.FileMode) error {
	s.writes.Add(1)
	return s.FileStore.CreateDirectory(ctx, path, perm)
}

func (s *countingStore) UpdateProjectManifest(ctx context.Context, projectPath string, m *types.ProjectManifest) error {
	s.writes.Add(1)
	if s.failManifest.Load() {
		return errors.FileOperationError("WRITE", filestore.ManifestPath(projectPath), "read-only file system", nil)
	}
	return s.FileStore.UpdateProjectManifest(ctx, projectPath, m)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func webTemplate() *types.Template {
	t := &types.Template{
		ID:         "a1b2c3d4e5f6",
		Name:       "web",
		Version:    "1.0.0",
		RootFolder: "{{app||kebabCase}}",
		Folders: []types.FolderDefinition{
			{Path: "src"},
			{Path: "src/components"},
			{Path: "public", Permissions: "0750"},
		},
		Files: []types.FileDefinition{
			{Path: "package.json", Content: `{"name": "{{app||kebabCase}}"}` + "\n"},
			{Path: "src/index.js", SourcePath: "index.js"},
			{Path: "bin/run.sh", Content: "#!/bin/sh\necho {{app}}\n", Permissions: "0755"},
			{Path: "LICENSE", Content: "{{notAVar}} raw", NoSubstitute: true},
		},
		Variables: []types.TemplateVariable{
			{Name: "app", Required: true},
			{Name: "port", Default: "3000"},
		},
		Rules: types.TemplateRules{Rules: []types.Rule{
			{
				ID:       "no-dist",
				Type:     types.RuleForbiddenFolder,
				Target:   "dist",
				Severity: types.SeverityWarning,
				Fix:      types.RuleFix{Action: types.FixDelete, Message: "dist is build output"},
			},
		}},
	}
	t.ApplyDefaults()
	return t
}

func apiTemplate(root string) *types.Template {
	t := &types.Template{
		ID:         "0f0e0d0c0b0a",
		Name:       "api",
		Version:    "0.3.0",
		RootFolder: root,
		Folders:    []types.FolderDefinition{{Path: "handlers"}},
		Files: []types.FileDefinition{
			{Path: "server.go", Content: "package {{service|backend}}\n"},
		},
		Rules: types.TemplateRules{Rules: []types.Rule{
			{
				ID:     "readme",
				Type:   types.RuleRequiredFile,
				Target: "README.md",
				Fix:    types.RuleFix{AutoFix: true, Content: "# {{app}} api\n"},
			},
		}},
	}
	t.ApplyDefaults()
	return t
}

type fixture struct {
	engine  *Engine
	files   *countingStore
	dir     string
	project string
}

func newFixture(t *testing.T, tmpls ...*types.Template) *fixture {
	t.Helper()
	if len(tmpls) == 0 {
		tmpls = []*types.Template{webTemplate()}
	}
	files := &countingStore{FileStore: filestore.NewOS()}
	dir := t.TempDir()
	return &fixture{
		engine: New(newMemTemplates(tmpls...), files,
			WithClock(func() time.Time { return fixedNow }),
			WithIDGenerator(sequentialIDs())),
		files:   files,
		dir:     dir,
		project: filepath.Join(dir, "shop"),
	}
}

// create builds the "shop" project from the web template.
func (f *fixture) create(t *testing.T, ids ...string) *ApplyResult {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"web"}
	}
	res, err := f.engine.CreateProject(context.Background(), CreateOptions{
		Dir:         f.dir,
		Name:        "shop",
		TemplateIDs: ids,
		Variables:   map[string]any{"app": "My Shop"},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.project, "my-shop"}, parts...)...)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func manifestOf(t *testing.T, project string) *types.ProjectManifest {
	t.Helper()
	m, err := filestore.NewOS().GetProjectManifest(context.Background(), project)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}
