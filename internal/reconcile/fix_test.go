package reconcile

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/scaffold/internal/types"
)

func TestFixRestoresMissingEntries(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("src", "components")))
	require.NoError(t, os.Remove(f.path("src", "index.js")))
	require.NoError(t, os.Remove(f.path("package.json")))

	report, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.False(t, report.DryRun)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.RemainingErrors)
	assert.Equal(t, []types.AppliedFix{
		{Path: f.path("src", "components"), Action: types.FixCreate, RuleID: "required_folder"},
		{Path: f.path("package.json"), Action: types.FixCreate, RuleID: "required_file"},
		{Path: f.path("src", "index.js"), Action: types.FixCreate, RuleID: "required_file"},
	}, report.Applied)

	assert.DirExists(t, f.path("src", "components"))
	assert.Equal(t, `{"name": "my-shop"}`+"\n", readFile(t, f.path("package.json")))
	assert.Equal(t, "console.log('My Shop on 3000')\n", readFile(t, f.path("src", "index.js")))

	m := manifestOf(t, f.project)
	last := m.History[len(m.History)-1]
	assert.Equal(t, types.ActionFix, last.Action)
	assert.Equal(t, []string{"a1b2c3d4e5f6"}, last.Templates)
	assert.Equal(t, []string{"my-shop/src/components", "my-shop/package.json", "my-shop/src/index.js"}, last.Changes)
	assert.True(t, m.Updated.Equal(fixedNow))

	after, err := f.engine.ValidateProject(context.Background(), f.project)
	require.NoError(t, err)
	assert.True(t, after.Valid)
	assert.Empty(t, after.Errors)
}

func TestFixIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("src")))

	_, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)
	history := len(manifestOf(t, f.project).History)

	f.files.writes.Store(0)
	again, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	assert.True(t, again.Valid)
	assert.Empty(t, again.Applied)
	assert.Zero(t, f.files.writes.Load(), "a valid project is never written")
	assert.Len(t, manifestOf(t, f.project).History, history)
}

func TestFixPreservesPermissionsAndRawFiles(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.Remove(f.path("bin", "run.sh")))
	require.NoError(t, os.Remove(f.path("LICENSE")))

	_, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	info, err := os.Stat(f.path("bin", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, "#!/bin/sh\necho My Shop\n", readFile(t, f.path("bin", "run.sh")))
	assert.Equal(t, "{{notAVar}} raw", readFile(t, f.path("LICENSE")))
}

func TestFixDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("src", "components")))

	f.files.writes.Store(0)
	report, err := f.engine.FixProject(context.Background(), f.project, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.False(t, report.Valid)
	assert.Len(t, report.Errors, 1)
	assert.Empty(t, report.RemainingErrors)
	require.Len(t, report.Applied, 1)
	assert.Equal(t, f.path("src", "components"), report.Applied[0].Path)
	assert.Contains(t, report.Suggestions, dryRunNotice)

	var messages []string
	for _, w := range report.Warnings {
		messages = append(messages, w.Message)
	}
	assert.Contains(t, messages, dryRunNotice)

	assert.Zero(t, f.files.writes.Load())
	assert.NoDirExists(t, f.path("src", "components"))
}

func TestFixLeavesManualErrors(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("src", "components")))
	require.NoError(t, os.WriteFile(f.path("src", "components"), []byte("oops"), 0o644))
	history := len(manifestOf(t, f.project).History)

	report, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Empty(t, report.Applied)
	require.Len(t, report.RemainingErrors, 1)
	assert.Equal(t, report.Errors, report.RemainingErrors)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "manual fix required: remove the file at "+f.path("src", "components")+" and re-run fix",
		report.Warnings[0].Message)
	assert.Len(t, manifestOf(t, f.project).History, history, "nothing applied, nothing recorded")
}

func TestFixFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.RemoveAll(f.path("src", "components")))
	require.NoError(t, os.Remove(f.path("package.json")))

	f.files.failWith = "package.json"
	report, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.Applied, 1)
	assert.Equal(t, f.path("src", "components"), report.Applied[0].Path)
	require.Len(t, report.RemainingErrors, 1)
	assert.Equal(t, f.path("package.json"), report.RemainingErrors[0].Path)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Message, "fix failed")
	assert.DirExists(t, f.path("src", "components"))
}

func TestFixManifestUpdateFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, os.Remove(f.path("package.json")))
	history := len(manifestOf(t, f.project).History)

	f.files.failManifest.Store(true)
	report, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	require.Len(t, report.Applied, 1)
	assert.FileExists(t, f.path("package.json"))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Message, "manifest could not be updated")
	assert.Len(t, manifestOf(t, f.project).History, history)
}

func TestFixRuleContent(t *testing.T) {
	f := newFixture(t, apiTemplate("api"))
	f.create(t, "api")
	readme := f.project + "/api/README.md"
	assert.Equal(t, "# My Shop api\n", readFile(t, readme), "created with the project")

	require.NoError(t, os.Remove(readme))
	report, err := f.engine.FixProject(context.Background(), f.project, false)
	require.NoError(t, err)

	require.Len(t, report.Applied, 1)
	assert.Equal(t, "readme", report.Applied[0].RuleID)
	assert.Equal(t, "# My Shop api\n", readFile(t, readme))
}
