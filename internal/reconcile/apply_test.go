package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/logging"
	"github.com/conneroisu/scaffold/internal/templatestore"
	"github.com/conneroisu/scaffold/internal/types"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	res := f.create(t)

	assert.Equal(t, f.project, res.ProjectPath)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []string{
		"my-shop",
		"my-shop/src",
		"my-shop/src/components",
		"my-shop/public",
		"my-shop/package.json",
		"my-shop/src/index.js",
		"my-shop/bin/run.sh",
		"my-shop/LICENSE",
	}, res.Created)

	m := manifestOf(t, f.project)
	assert.Equal(t, "shop", m.ProjectName)
	assert.Equal(t, types.ManifestVersion, m.Version)
	assert.True(t, m.Created.Equal(fixedNow))
	require.Len(t, m.Templates, 1)
	assert.Equal(t, types.AppliedTemplate{
		TemplateID: "a1b2c3d4e5f6",
		Name:       "web",
		Version:    "1.0.0",
		RootFolder: "my-shop",
		Status:     types.StatusActive,
		AppliedAt:  fixedNow,
	}, m.Templates[0])
	assert.Equal(t, map[string]any{"app": "My Shop", "port": "3000", "projectName": "shop"}, m.Variables)

	require.Len(t, m.History, 1)
	assert.Equal(t, types.ActionCreate, m.History[0].Action)
	assert.Equal(t, res.Created, m.History[0].Changes)

	raw, err := os.ReadFile(filestore.ManifestPath(f.project))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"version\": \"1.0.0\"", "two-space indentation")
}

func TestCreateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		opts func(dir string) CreateOptions
		code string
	}{
		{
			name: "invalid name",
			opts: func(dir string) CreateOptions {
				return CreateOptions{Dir: dir, Name: "../escape", TemplateIDs: []string{"web"}, Variables: map[string]any{"app": "x"}}
			},
			code: errors.ErrCodeInvalidName,
		},
		{
			name: "missing required variable",
			opts: func(dir string) CreateOptions {
				return CreateOptions{Dir: dir, Name: "shop", TemplateIDs: []string{"web"}}
			},
			code: errors.ErrCodeMissingVariable,
		},
		{
			name: "unknown template",
			opts: func(dir string) CreateOptions {
				return CreateOptions{Dir: dir, Name: "shop", TemplateIDs: []string{"nope"}, Variables: map[string]any{"app": "x"}}
			},
			code: errors.ErrCodeTemplateNotFound,
		},
		{
			name: "no templates",
			opts: func(dir string) CreateOptions {
				return CreateOptions{Dir: dir, Name: "shop"}
			},
			code: errors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.CreateProject(context.Background(), tt.opts(f.dir))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), err.Error())
			assert.Zero(t, f.files.writes.Load())
			assert.NoDirExists(t, f.project)
		})
	}
}

func TestCreateOverExistingProject(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.engine.CreateProject(context.Background(), CreateOptions{
		Dir: f.dir, Name: "shop", TemplateIDs: []string{"web"}, Variables: map[string]any{"app": "x"},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProjectExists))
}

func TestRootConflictWritesNothing(t *testing.T) {
	f := newFixture(t, webTemplate(), apiTemplate("{{app||kebabCase}}"))

	_, err := f.engine.CreateProject(context.Background(), CreateOptions{
		Dir: f.dir, Name: "shop", TemplateIDs: []string{"web", "api"}, Variables: map[string]any{"app": "My Shop"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsTemplateConflict(err))
	assert.Contains(t, err.Error(), `"my-shop"`)
	assert.Zero(t, f.files.writes.Load())
	assert.NoDirExists(t, f.project)
}

func TestExtendProject(t *testing.T) {
	f := newFixture(t, webTemplate(), apiTemplate("{{service|backend}}"))
	f.create(t)

	res, err := f.engine.ExtendProject(context.Background(), ExtendOptions{
		Path:        f.path("src"),
		TemplateIDs: []string{"api"},
		Variables:   map[string]any{"service": "orders"},
	})
	require.NoError(t, err)

	assert.Equal(t, f.project, res.ProjectPath)
	assert.Equal(t, []string{"orders", "orders/handlers", "orders/server.go", "orders/README.md"}, res.Created)
	assert.Equal(t, "package orders\n", readFile(t, filepath.Join(f.project, "orders", "server.go")))

	m := manifestOf(t, f.project)
	require.Len(t, m.Templates, 2)
	assert.Equal(t, "orders", m.Templates[1].RootFolder)
	assert.Equal(t, "orders", m.Variables["service"])
	assert.Equal(t, "My Shop", m.Variables["app"], "existing variables are kept")
	assert.Equal(t, types.ActionExtend, m.History[len(m.History)-1].Action)

	report, err := f.engine.ValidateProject(context.Background(), f.project)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, []string{"a1b2c3d4e5f6", "0f0e0d0c0b0a"}, report.Templates)
}

func TestExtendConflicts(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		vars map[string]any
	}{
		{"template already applied", []string{"web"}, nil},
		{"root already taken", []string{"api"}, map[string]any{"service": "my-shop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, webTemplate(), apiTemplate("{{service|backend}}"))
			f.create(t)
			f.files.writes.Store(0)

			_, err := f.engine.ExtendProject(context.Background(), ExtendOptions{
				Path: f.project, TemplateIDs: tt.ids, Variables: tt.vars,
			})
			require.Error(t, err)
			assert.True(t, errors.IsTemplateConflict(err), err.Error())
			assert.Zero(t, f.files.writes.Load())
		})
	}
}

func TestExtendIgnoresUnknownRootOfUnloadableTemplate(t *testing.T) {
	f := newFixture(t, webTemplate(), apiTemplate(""))
	f.create(t)

	m := manifestOf(t, f.project)
	m.Templates = append(m.Templates, types.AppliedTemplate{
		TemplateID: "ffffffffffff",
		Name:       "legacy",
		Status:     types.StatusActive,
		AppliedAt:  fixedNow,
	})
	require.NoError(t, filestore.NewOS().UpdateProjectManifest(context.Background(), f.project, m))

	res, err := f.engine.ExtendProject(context.Background(), ExtendOptions{
		Path: f.project, TemplateIDs: []string{"api"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Created, "server.go")
	assert.FileExists(t, filepath.Join(f.project, "server.go"))
}

func TestExistingFilesFollowConflictPolicy(t *testing.T) {
	tests := []struct {
		policy  types.ConflictResolution
		want    string
		skipped bool
		warned  bool
	}{
		{types.ConflictSkip, "keep me\n", true, false},
		{types.ConflictReplace, "package backend\n", false, false},
		{types.ConflictMerge, "keep me\n", true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			api := apiTemplate("backend")
			api.Rules.ConflictResolution = tt.policy
			f := newFixture(t, webTemplate(), api)
			f.create(t)

			server := filepath.Join(f.project, "backend", "server.go")
			require.NoError(t, os.MkdirAll(filepath.Dir(server), 0o755))
			require.NoError(t, os.WriteFile(server, []byte("keep me\n"), 0o644))

			res, err := f.engine.ExtendProject(context.Background(), ExtendOptions{Path: f.project, TemplateIDs: []string{"api"}})
			require.NoError(t, err)

			assert.Equal(t, tt.want, readFile(t, server))
			assert.Equal(t, tt.skipped, len(res.Skipped) == 1)
			assert.Equal(t, tt.warned, len(res.Warnings) == 1)
		})
	}
}

func TestRemoveTemplate(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	m, err := f.engine.RemoveTemplate(context.Background(), f.project, "a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRemoved, m.Templates[0].Status)
	assert.Equal(t, types.ActionRemove, m.History[len(m.History)-1].Action)
	assert.FileExists(t, f.path("package.json"), "files stay in place")

	_, err = f.engine.RemoveTemplate(context.Background(), f.project, "web")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTemplateNotFound))
}

func TestRecordCheck(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("public")))

	report, err := f.engine.ValidateProject(context.Background(), f.project)
	require.NoError(t, err)
	require.NoError(t, f.engine.RecordCheck(context.Background(), report))

	m := manifestOf(t, f.project)
	last := m.History[len(m.History)-1]
	assert.Equal(t, types.ActionCheck, last.Action)
	assert.Equal(t, false, last.Details["valid"])
	assert.EqualValues(t, 1, last.Details["errors"])
}

func TestCreateFromTemplateDirectory(t *testing.T) {
	files := filestore.NewOS()
	store := templatestore.NewDir(files, filepath.Join("..", "templatestore", "testdata", "templates"))
	engine := New(store, files, WithIDGenerator(sequentialIDs()))
	dir := t.TempDir()

	res, err := engine.CreateProject(context.Background(), CreateOptions{
		Dir:         dir,
		Name:        "billing",
		TemplateIDs: []string{"python-fastapi", "go-service"},
		Variables: map[string]any{
			"API_TITLE": "Billing API",
			"name":      "Billing Worker",
			"module":    "example.com/billing",
		},
	})
	require.NoError(t, err)

	project := res.ProjectPath
	assert.Contains(t, readFile(t, filepath.Join(project, "api", "main.py")), `FastAPI(title="Billing API", version="0.1.0")`)
	assert.Contains(t, readFile(t, filepath.Join(project, "api", "app", "config.py")), `int("8000")`)
	assert.Equal(t, "module example.com/billing\n\ngo 1.24\n", readFile(t, filepath.Join(project, "billing-worker", "go.mod")))
	assert.Equal(t, "build:\n\tgo build ./...\n", readFile(t, filepath.Join(project, "billing-worker", "Makefile")))
	assert.Equal(t, "# Billing Worker\n", readFile(t, filepath.Join(project, "billing-worker", "README.md")))
	assert.DirExists(t, filepath.Join(project, "billing-worker", "cmd", "billing-worker"))

	report, err := engine.ValidateProject(context.Background(), project)
	require.NoError(t, err)
	assert.True(t, report.Valid, "%v", report.Errors)
	assert.Equal(t, 2, report.Stats.TemplatesChecked)
}

func TestCreateLogsCorrelateAndRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})
	engine := New(newMemTemplates(webTemplate()), filestore.NewOS(), WithLogger(logger))

	dir := t.TempDir()
	_, err := engine.CreateProject(context.Background(), CreateOptions{
		Dir:         dir,
		Name:        "shop",
		TemplateIDs: []string{"web"},
		Variables:   map[string]any{"app": "My Shop", "apiToken": "s3cr3t"},
	})
	require.NoError(t, err)

	var (
		ids  = map[string]bool{}
		vars map[string]any
	)
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		id, _ := entry["operation_id"].(string)
		ids[id] = true
		if entry["msg"] == "variables resolved" {
			vars, _ = entry["variables"].(map[string]any)
		}
	}

	assert.Len(t, ids, 1, "one operation id for the whole call")
	assert.False(t, ids[""])
	require.NotNil(t, vars)
	assert.Equal(t, "My Shop", vars["app"])
	assert.Equal(t, "[REDACTED]", vars["apiToken"])
	assert.NotContains(t, buf.String(), "s3cr3t")
}
