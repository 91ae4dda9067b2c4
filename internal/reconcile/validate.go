package reconcile

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/rules"
	"github.com/conneroisu/scaffold/internal/types"
	"github.com/conneroisu/scaffold/internal/validation"
)

// run carries the state of one validate or fix call.
type run struct {
	projectPath string
	manifest    *types.ProjectManifest
	// templates holds the templates that loaded, keyed by applied template id
	templates map[string]*types.Template
	report    *types.ValidationReport
}

// ValidateProject reconciles the project governing path against its active
// templates. Template load failures and unresolvable paths become warnings;
// a missing manifest or an I/O failure while probing is fatal.
func (e *Engine) ValidateProject(ctx context.Context, path string) (*types.ValidationReport, error) {
	r, err := e.validate(ctx, path)
	if err != nil {
		return nil, errors.OperationFailed("validate", err)
	}
	return r.report, nil
}

func (e *Engine) validate(ctx context.Context, path string) (*run, error) {
	started := e.now()
	id := e.newID()
	ctx = operation(ctx, id)

	projectPath, m, err := e.FindManifest(ctx, path)
	if err != nil {
		return nil, err
	}

	r := &run{
		projectPath: projectPath,
		manifest:    m,
		templates:   make(map[string]*types.Template),
		report: &types.ValidationReport{
			ID:          id,
			Timestamp:   started,
			ProjectID:   m.ID,
			ProjectName: m.ProjectName,
			ProjectPath: projectPath,
			Templates:   []string{},
			Errors:      []types.ValidationError{},
			Warnings:    []types.ValidationWarning{},
			Suggestions: []string{},
		},
	}

	active := m.ActiveTemplates()
	for _, applied := range active {
		r.report.Templates = append(r.report.Templates, applied.TemplateID)
		if err := e.validateTemplate(ctx, r, applied, active); err != nil {
			return nil, err
		}
	}

	r.report.Suggestions = append(r.report.Suggestions, suggestionsFor(r.report)...)
	r.report.Finalize(e.now().Sub(started))

	e.logger.Info(ctx, "project validated",
		"project", projectPath,
		"valid", r.report.Valid,
		"errors", r.report.Stats.ErrorCount,
		"warnings", r.report.Stats.WarningCount)

	return r, nil
}

func (e *Engine) validateTemplate(ctx context.Context, r *run, applied types.AppliedTemplate, active []types.AppliedTemplate) error {
	tmpl, err := e.templates.GetTemplate(ctx, applied.TemplateID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn(ctx, err, "template could not be loaded", "template", applied.TemplateID)
		r.warn(e, applied.TemplateID, "", fmt.Sprintf("template could not be loaded: %s", templateLabel(applied)), loadSuggestion(err))
		return nil
	}
	r.templates[applied.TemplateID] = tmpl
	r.report.Stats.TemplatesChecked++

	vars := r.manifest.Variables
	rootRel := applied.RootFolder
	if rootRel == "" {
		rootRel, err = e.resolve(tmpl.RootFolder, vars)
		if err != nil {
			r.warn(e, applied.TemplateID, tmpl.RootFolder, "root folder could not be resolved: "+err.Error(), "")
			return nil
		}
	}
	root, err := validation.JoinWithin(r.projectPath, rootRel)
	if err != nil {
		r.warn(e, applied.TemplateID, rootRel, "root folder is not a safe relative path: "+err.Error(), "")
		return nil
	}

	e.logger.Debug(ctx, "validating template", "template", applied.TemplateID, "root", root)

	expected := newExpectedSet(root)

	for _, folder := range tmpl.Folders {
		target, ok := e.target(r, applied.TemplateID, root, folder.Path, vars)
		if !ok {
			continue
		}
		expected.add(target)
		r.report.Stats.FoldersChecked++
		out, err := rules.Evaluate(ctx, rules.RequiredFolder(folder.Path), target, e.files)
		if err != nil {
			return err
		}
		r.record(e, applied.TemplateID, folder.Path, out)
	}

	for _, file := range tmpl.Files {
		target, ok := e.target(r, applied.TemplateID, root, file.Path, vars)
		if !ok {
			continue
		}
		expected.add(target)
		r.report.Stats.FilesChecked++
		out, err := rules.Evaluate(ctx, rules.RequiredFile(file.Path), target, e.files)
		if err != nil {
			return err
		}
		r.record(e, applied.TemplateID, file.Path, out)
	}

	for _, rule := range tmpl.Rules.Rules {
		target, ok := e.target(r, applied.TemplateID, root, rule.Target, vars)
		if !ok {
			continue
		}
		if rule.Type == types.RuleRequiredFile || rule.Type == types.RuleRequiredFolder {
			expected.add(target)
		}
		out, err := rules.Evaluate(ctx, rule, target, e.files)
		if err != nil {
			return err
		}
		r.record(e, applied.TemplateID, "", out)
	}

	if tmpl.Rules.StrictMode {
		for _, other := range active {
			if other.TemplateID == applied.TemplateID || other.RootFolder == "" {
				continue
			}
			if p, err := validation.JoinWithin(r.projectPath, other.RootFolder); err == nil {
				expected.skip(p)
			}
		}
		return e.checkStrict(ctx, r, applied.TemplateID, tmpl, root, expected)
	}

	return nil
}

// target resolves a template-relative path under root. Failures are
// recorded as warnings.
func (e *Engine) target(r *run, templateID, root, raw string, vars map[string]any) (string, bool) {
	rel, err := e.resolve(raw, vars)
	if err != nil {
		r.warn(e, templateID, raw, "path could not be resolved: "+err.Error(), "")
		return "", false
	}
	p, err := validation.JoinWithin(root, rel)
	if err != nil {
		r.warn(e, templateID, raw, "path is not a safe relative path: "+err.Error(), "")
		return "", false
	}
	return p, true
}

// checkStrict reports entries under root that the template does not declare.
// Directories that are not expected are reported once and not descended into.
func (e *Engine) checkStrict(ctx context.Context, r *run, templateID string, tmpl *types.Template, root string, expected *expectedSet) error {
	isDir, err := e.files.IsDirectory(ctx, root)
	if err != nil || !isDir {
		return err
	}

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := e.files.ReadDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name)
			rel := filepath.ToSlash(strings.TrimPrefix(full, root+string(filepath.Separator)))

			if entry.Name == types.ManifestDir || expected.skipped(full) ||
				excluded(tmpl.Rules.ExcludePatterns, rel) {
				continue
			}
			if expected.has(full) {
				if entry.IsDir {
					if err := walk(full); err != nil {
						return err
					}
				}
				continue
			}
			if entry.IsDir && tmpl.Rules.AllowExtraFolders {
				continue
			}
			if !entry.IsDir && tmpl.Rules.AllowExtraFiles {
				continue
			}

			kind := rules.KindFile
			if entry.IsDir {
				kind = rules.KindDirectory
			}
			r.addError(e, templateID, "", types.ValidationError{
				Severity: types.SeverityError,
				RuleID:   rules.StrictModeID,
				Path:     full,
				Expected: rules.KindAbsent,
				Actual:   kind,
				Message:  fmt.Sprintf("%s not declared by template %s: %s", kindNoun(kind), tmpl.Name, rel),
				Fix: &types.RuleFix{
					Action:  types.FixDelete,
					AutoFix: false,
					Message: fmt.Sprintf("remove %s or declare it in template %s", rel, tmpl.Name),
				},
			})
		}
		return nil
	}

	return walk(root)
}

func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
		// a pattern naming a directory also excludes its contents
		if ok, err := doublestar.Match(strings.TrimSuffix(p, "/**"), rel); err == nil && ok {
			return true
		}
	}
	return false
}

// expectedSet tracks declared paths under one template root, with every
// ancestor directory of a declared path counted as declared. Skipped paths
// belong to other templates and are neither reported nor descended into.
type expectedSet struct {
	root    string
	paths   map[string]bool
	foreign map[string]bool
}

func newExpectedSet(root string) *expectedSet {
	return &expectedSet{root: root, paths: make(map[string]bool), foreign: make(map[string]bool)}
}

func (s *expectedSet) skip(p string) {
	s.foreign[filepath.Clean(p)] = true
	s.add(filepath.Dir(p))
}

func (s *expectedSet) skipped(p string) bool {
	return s.foreign[filepath.Clean(p)]
}

func (s *expectedSet) add(p string) {
	p = filepath.Clean(p)
	for p != s.root && strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		s.paths[p] = true
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
}

func (s *expectedSet) has(p string) bool {
	return s.paths[filepath.Clean(p)]
}

// record appends the outcome of a rule evaluation to the report.
func (r *run) record(e *Engine, templateID, definition string, out rules.Outcome) {
	switch {
	case out.Error != nil:
		r.addError(e, templateID, definition, *out.Error)
	case out.Warning != nil:
		w := *out.Warning
		w.ID = e.newID()
		w.TemplateID = templateID
		r.report.Warnings = append(r.report.Warnings, w)
	}
}

func (r *run) addError(e *Engine, templateID, definition string, ve types.ValidationError) {
	ve.ID = e.newID()
	ve.TemplateID = templateID
	ve.Definition = definition
	r.report.Errors = append(r.report.Errors, ve)
}

func (r *run) warn(e *Engine, templateID, p, msg, suggestion string) {
	r.report.Warnings = append(r.report.Warnings, types.ValidationWarning{
		ID:         e.newID(),
		TemplateID: templateID,
		Path:       p,
		Message:    msg,
		Suggestion: suggestion,
	})
}

func templateLabel(applied types.AppliedTemplate) string {
	if applied.Name != "" && applied.Name != applied.TemplateID {
		return fmt.Sprintf("%s (%s)", applied.Name, applied.TemplateID)
	}
	return applied.TemplateID
}

// loadSuggestion turns "did you mean" hints of a not-found error into a
// warning suggestion.
func loadSuggestion(err error) string {
	info := errors.GetErrorContext(err)
	if s, ok := info["suggestions"].([]string); ok && len(s) > 0 {
		return "did you mean " + strings.Join(s, ", ") + "?"
	}
	return "check the template search paths with `scaffold templates list`"
}

func suggestionsFor(report *types.ValidationReport) []string {
	var auto, manual int
	for _, ve := range report.Errors {
		if ve.Fix != nil && ve.Fix.AutoFix && ve.Fix.Action == types.FixCreate {
			auto++
		} else {
			manual++
		}
	}

	var out []string
	if auto > 0 {
		out = append(out, fmt.Sprintf("run `scaffold fix` to apply %d automatic %s", auto, plural(auto, "fix", "fixes")))
	}
	if manual > 0 {
		out = append(out, fmt.Sprintf("%d %s manual attention", manual, plural(manual, "issue needs", "issues need")))
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func kindNoun(kind string) string {
	if kind == rules.KindDirectory {
		return "folder"
	}
	return "file"
}

// relPath renders p relative to the project for history entries.
func relPath(projectPath, p string) string {
	rel, err := filepath.Rel(projectPath, p)
	if err != nil {
		return p
	}
	return path.Clean(filepath.ToSlash(rel))
}
