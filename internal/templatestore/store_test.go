package templatestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/types"
)

const fixtures = "testdata/templates"

func newStore() *Dir {
	return NewDir(filestore.NewOS(), fixtures)
}

func TestGetTemplateByKeys(t *testing.T) {
	store := newStore()
	ctx := context.Background()

	for _, key := range []string{"3f9a1c2b7d40", "python-fastapi"} {
		tmpl, err := store.GetTemplate(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, "python-fastapi", tmpl.Name)
		assert.Equal(t, "{{service|api}}", tmpl.RootFolder)
		assert.Len(t, tmpl.Files, 4)
	}
}

func TestYAMLDefinitionDefaults(t *testing.T) {
	tmpl, err := newStore().GetTemplate(context.Background(), "go-service")
	require.NoError(t, err)

	assert.Len(t, tmpl.ID, 12, "id derived from content hash")
	assert.True(t, tmpl.Rules.StrictMode)
	assert.Equal(t, types.ConflictSkip, tmpl.Rules.ConflictResolution)
	assert.Equal(t, []string{"**/*.log", "bin/**"}, tmpl.Rules.ExcludePatterns)

	require.Len(t, tmpl.Rules.Rules, 1)
	rule := tmpl.Rules.Rules[0]
	assert.Equal(t, "required_file", rule.ID)
	assert.Equal(t, types.SeverityError, rule.Severity)
	assert.Equal(t, types.FixCreate, rule.Fix.Action)
	assert.True(t, rule.Fix.AutoFix)

	makefile, ok := tmpl.FindFile("Makefile")
	require.True(t, ok)
	assert.True(t, makefile.NoSubstitute)
	assert.Equal(t, "build:\n\tgo build ./...\n", makefile.Content)

	again, err := Decode(mustRead(t, filepath.Join(fixtures, "go-service", "template.yaml")), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, again.ID, "content hash is stable")
}

func TestGetTemplateNotFoundSuggests(t *testing.T) {
	_, err := newStore().GetTemplate(context.Background(), "python-fastap")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTemplateNotFound))
	assert.True(t, errors.IsTemplateLoad(err))
	assert.Contains(t, err.Error(), "did you mean python-fastapi")
}

func TestBrokenDefinitionIsLoadError(t *testing.T) {
	store := newStore()
	_, err := store.GetTemplate(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTemplateLoad))

	// a broken definition does not hide the others
	list, err := store.List(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"go-service", "python-fastapi"}, names)
}

func TestReadTemplateFile(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	tmpl, err := store.GetTemplate(ctx, "python-fastapi")
	require.NoError(t, err)

	main, err := store.ReadTemplateFile(ctx, tmpl, "main.py")
	require.NoError(t, err)
	assert.Contains(t, string(main), `FastAPI(title="{{API_TITLE}}"`)

	cfg, err := store.ReadTemplateFile(ctx, tmpl, "files/app/config.py")
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "{{API_VERSION}}")

	_, err = store.ReadTemplateFile(ctx, tmpl, "missing.py")
	assert.True(t, errors.HasCode(err, "ERR_FILE_READ"))

	_, err = store.ReadTemplateFile(ctx, tmpl, "../go-service/template.yaml")
	assert.True(t, errors.HasCode(err, errors.ErrCodePathTraversal))
}

func TestEarlierSearchPathWins(t *testing.T) {
	override := t.TempDir()
	dir := filepath.Join(override, "python-fastapi")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template.yaml"),
		[]byte("name: python-fastapi\nversion: 9.9.9\nrootFolder: api\n"), 0o644))

	store := NewDir(filestore.NewOS(), override, fixtures)
	tmpl, err := store.GetTemplate(context.Background(), "python-fastapi")
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", tmpl.Version)

	// the shadowed template stays reachable by id
	shadowed, err := store.GetTemplate(context.Background(), "3f9a1c2b7d40")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", shadowed.Version)
}

func TestMissingSearchPathIsEmpty(t *testing.T) {
	store := NewDir(filestore.NewOS(), filepath.Join(t.TempDir(), "nope"))
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReload(t *testing.T) {
	root := t.TempDir()
	store := NewDir(filestore.NewOS(), root)
	ctx := context.Background()

	_, err := store.GetTemplate(ctx, "late")
	require.Error(t, err)

	dir := filepath.Join(root, "late")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template.yml"), []byte("name: late\n"), 0o644))

	_, err = store.GetTemplate(ctx, "late")
	require.Error(t, err, "index is cached")

	store.Reload()
	tmpl, err := store.GetTemplate(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "late", tmpl.Name)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
