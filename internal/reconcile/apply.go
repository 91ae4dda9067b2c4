package reconcile

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/logging"
	"github.com/conneroisu/scaffold/internal/substitution"
	"github.com/conneroisu/scaffold/internal/types"
	"github.com/conneroisu/scaffold/internal/validation"
)

// CreateOptions describes a new project.
type CreateOptions struct {
	// Dir is the parent directory; the project lives in Dir/Name.
	Dir         string
	Name        string
	TemplateIDs []string
	Variables   map[string]any
}

// ExtendOptions describes templates added to an existing project.
type ExtendOptions struct {
	Path        string
	TemplateIDs []string
	// Variables are merged over the manifest's variables.
	Variables map[string]any
}

// ApplyResult is the outcome of a create or extend call. Paths are relative
// to the project.
type ApplyResult struct {
	ProjectPath string                 `json:"projectPath" yaml:"projectPath"`
	Manifest    *types.ProjectManifest `json:"manifest" yaml:"manifest"`
	Created     []string               `json:"created" yaml:"created"`
	Skipped     []string               `json:"skipped" yaml:"skipped"`
	Warnings    []string               `json:"warnings" yaml:"warnings"`
}

type plannedEntry struct {
	path string
	dir  bool
	data []byte
	perm os.FileMode
}

type plannedTemplate struct {
	tmpl    *types.Template
	root    string
	entries []plannedEntry
}

// CreateProject creates Dir/Name from the given templates. Every template is
// loaded, every variable resolved and every path and file body rendered
// before the first write, so a conflict or a missing variable leaves the
// filesystem untouched.
func (e *Engine) CreateProject(ctx context.Context, opts CreateOptions) (*ApplyResult, error) {
	ctx = operation(ctx, e.newID())
	if err := validation.ValidateProjectName(opts.Name); err != nil {
		return nil, errors.OperationFailed("create", err)
	}
	if len(opts.TemplateIDs) == 0 {
		return nil, errors.OperationFailed("create", errors.ConfigurationError("templates", "at least one template is required", nil))
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	projectPath, err := filepath.Abs(filepath.Join(dir, opts.Name))
	if err != nil {
		return nil, errors.OperationFailed("create", errors.PathValidationError(opts.Name, err.Error()))
	}

	existing, err := e.files.GetProjectManifest(ctx, projectPath)
	if err != nil {
		return nil, errors.OperationFailed("create", err)
	}
	if existing != nil {
		return nil, errors.OperationFailed("create", errors.ProjectExists(projectPath))
	}

	vars := copyVars(opts.Variables)
	if _, ok := substitution.Lookup(vars, "projectName"); !ok {
		vars["projectName"] = opts.Name
	}

	plans, vars, err := e.plan(ctx, projectPath, opts.TemplateIDs, vars, nil)
	if err != nil {
		return nil, errors.OperationFailed("create", err)
	}
	e.logger.Debug(ctx, "variables resolved", "variables", logging.SanitizeVariables(vars))

	if err := e.files.CreateDirectory(ctx, projectPath, filestore.DefaultDirMode); err != nil {
		return nil, errors.OperationFailed("create", err)
	}
	result := &ApplyResult{ProjectPath: projectPath, Created: []string{}, Skipped: []string{}, Warnings: []string{}}
	if err := e.execute(ctx, result, plans); err != nil {
		return nil, errors.OperationFailed("create", err)
	}

	now := e.now()
	m := &types.ProjectManifest{
		Version:     types.ManifestVersion,
		ID:          e.newID(),
		ProjectName: opts.Name,
		Created:     now,
		Updated:     now,
		Templates:   []types.AppliedTemplate{},
		Variables:   vars,
		History:     []types.HistoryEntry{},
	}
	e.apply(m, plans, types.ActionCreate, result)

	if err := e.files.UpdateProjectManifest(ctx, projectPath, m); err != nil {
		return nil, errors.OperationFailed("create", err)
	}
	result.Manifest = m

	e.logger.Info(ctx, "project created",
		"project", projectPath,
		"templates", len(plans),
		"created", len(result.Created),
		"skipped", len(result.Skipped))
	return result, nil
}

// ExtendProject applies more templates to the project governing opts.Path.
func (e *Engine) ExtendProject(ctx context.Context, opts ExtendOptions) (*ApplyResult, error) {
	ctx = operation(ctx, e.newID())
	if len(opts.TemplateIDs) == 0 {
		return nil, errors.OperationFailed("extend", errors.ConfigurationError("templates", "at least one template is required", nil))
	}

	projectPath, m, err := e.FindManifest(ctx, opts.Path)
	if err != nil {
		return nil, errors.OperationFailed("extend", err)
	}

	vars := copyVars(m.Variables)
	for k, v := range opts.Variables {
		vars[k] = v
	}

	taken := make(map[string]string)
	for _, applied := range m.ActiveTemplates() {
		taken["id:"+applied.TemplateID] = templateLabel(applied)
		if root, ok := e.appliedRoot(ctx, applied, vars); ok {
			taken[rootKey(root)] = templateLabel(applied)
		}
	}

	plans, vars, err := e.plan(ctx, projectPath, opts.TemplateIDs, vars, taken)
	if err != nil {
		return nil, errors.OperationFailed("extend", err)
	}
	e.logger.Debug(ctx, "variables resolved", "variables", logging.SanitizeVariables(vars))

	result := &ApplyResult{ProjectPath: projectPath, Created: []string{}, Skipped: []string{}, Warnings: []string{}}
	if err := e.execute(ctx, result, plans); err != nil {
		return nil, errors.OperationFailed("extend", err)
	}

	m.Variables = vars
	m.Updated = e.now()
	e.apply(m, plans, types.ActionExtend, result)

	if err := e.files.UpdateProjectManifest(ctx, projectPath, m); err != nil {
		return nil, errors.OperationFailed("extend", err)
	}
	result.Manifest = m

	e.logger.Info(ctx, "project extended",
		"project", projectPath,
		"templates", len(plans),
		"created", len(result.Created))
	return result, nil
}

// appliedRoot returns the root folder an applied template occupies: the one
// recorded in the manifest, else its definition's root resolved with vars.
// ok is false when neither is known.
func (e *Engine) appliedRoot(ctx context.Context, applied types.AppliedTemplate, vars map[string]any) (string, bool) {
	if applied.RootFolder != "" {
		return applied.RootFolder, true
	}
	tmpl, err := e.templates.GetTemplate(ctx, applied.TemplateID)
	if err != nil {
		e.logger.Warn(ctx, err, "root of applied template unknown", "template", applied.TemplateID)
		return "", false
	}
	root, err := e.resolve(tmpl.RootFolder, vars)
	if err != nil {
		e.logger.Warn(ctx, err, "root of applied template unresolved", "template", applied.TemplateID)
		return "", false
	}
	return root, true
}

// RemoveTemplate marks the active template matching idOrName as removed.
// Files it created stay on disk.
func (e *Engine) RemoveTemplate(ctx context.Context, path, idOrName string) (*types.ProjectManifest, error) {
	ctx = operation(ctx, e.newID())
	projectPath, m, err := e.FindManifest(ctx, path)
	if err != nil {
		return nil, errors.OperationFailed("remove", err)
	}

	idx := -1
	var names []string
	for i, applied := range m.Templates {
		if applied.Status != types.StatusActive {
			continue
		}
		names = append(names, applied.Name)
		if idx < 0 && (applied.TemplateID == idOrName || applied.Name == idOrName) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, errors.OperationFailed("remove", errors.TemplateNotFound(idOrName, names...))
	}

	now := e.now()
	m.Templates[idx].Status = types.StatusRemoved
	m.History = append(m.History, types.HistoryEntry{
		ID:        e.newID(),
		Timestamp: now,
		Action:    types.ActionRemove,
		Templates: []string{m.Templates[idx].TemplateID},
	})
	m.Updated = now

	if err := e.files.UpdateProjectManifest(ctx, projectPath, m); err != nil {
		return nil, errors.OperationFailed("remove", err)
	}
	e.logger.Info(ctx, "template removed", "project", projectPath, "template", m.Templates[idx].TemplateID)
	return m, nil
}

// RecordCheck appends a check entry summarizing report to the manifest
// history.
func (e *Engine) RecordCheck(ctx context.Context, report *types.ValidationReport) error {
	m, err := e.files.GetProjectManifest(ctx, report.ProjectPath)
	if err != nil {
		return err
	}
	if m == nil {
		return errors.ManifestNotFound(report.ProjectPath, 0)
	}

	m.History = append(m.History, types.HistoryEntry{
		ID:        e.newID(),
		Timestamp: e.now(),
		Action:    types.ActionCheck,
		Templates: report.Templates,
		Details: map[string]any{
			"valid":    report.Valid,
			"errors":   report.Stats.ErrorCount,
			"warnings": report.Stats.WarningCount,
		},
	})
	return e.files.UpdateProjectManifest(ctx, report.ProjectPath, m)
}

// plan loads the templates and renders everything they would write. taken
// maps root keys (and "id:" keys) already claimed to the claiming template.
func (e *Engine) plan(ctx context.Context, projectPath string, ids []string, vars map[string]any, taken map[string]string) ([]*plannedTemplate, map[string]any, error) {
	if taken == nil {
		taken = make(map[string]string)
	}

	tmpls := make([]*types.Template, 0, len(ids))
	for _, id := range ids {
		tmpl, err := e.templates.GetTemplate(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if owner, ok := taken["id:"+tmpl.ID]; ok {
			return nil, nil, errors.TemplateConflict(tmpl.RootFolder, owner, tmpl.Name).
				WithContext("reason", "template already applied")
		}
		taken["id:"+tmpl.ID] = tmpl.Name

		resolved, err := substitution.ResolveVariables(tmpl, vars)
		if err != nil {
			return nil, nil, err
		}
		vars = resolved
		tmpls = append(tmpls, tmpl)
	}

	plans := make([]*plannedTemplate, 0, len(tmpls))
	for _, tmpl := range tmpls {
		rootRel, err := e.resolve(tmpl.RootFolder, vars)
		if err != nil {
			return nil, nil, err
		}
		if err := validation.ValidatePath(rootRel); err != nil {
			return nil, nil, err
		}
		key := rootKey(rootRel)
		if owner, ok := taken[key]; ok {
			return nil, nil, errors.TemplateConflict(key, owner, tmpl.Name)
		}
		taken[key] = tmpl.Name

		p, err := e.planTemplate(ctx, projectPath, tmpl, key, vars)
		if err != nil {
			return nil, nil, err
		}
		plans = append(plans, p)
	}
	return plans, vars, nil
}

func (e *Engine) planTemplate(ctx context.Context, projectPath string, tmpl *types.Template, rootRel string, vars map[string]any) (*plannedTemplate, error) {
	root, err := validation.JoinWithin(projectPath, rootRel)
	if err != nil {
		return nil, err
	}

	p := &plannedTemplate{tmpl: tmpl, root: rootRel}
	seen := make(map[string]bool)
	add := func(entry plannedEntry) {
		if !seen[entry.path] {
			seen[entry.path] = true
			p.entries = append(p.entries, entry)
		}
	}
	target := func(raw string) (string, error) {
		rel, err := e.resolve(raw, vars)
		if err != nil {
			return "", err
		}
		return validation.JoinWithin(root, rel)
	}

	add(plannedEntry{path: root, dir: true, perm: filestore.DefaultDirMode})

	for _, folder := range tmpl.Folders {
		full, err := target(folder.Path)
		if err != nil {
			return nil, err
		}
		add(plannedEntry{path: full, dir: true, perm: types.ParseMode(folder.Permissions, filestore.DefaultDirMode)})
	}

	for _, file := range tmpl.Files {
		full, err := target(file.Path)
		if err != nil {
			return nil, err
		}
		data, err := e.definitionContent(ctx, tmpl, file, vars)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", file.Path, err)
		}
		add(plannedEntry{path: full, data: data, perm: types.ParseMode(file.Permissions, filestore.DefaultFileMode)})
	}

	// required rules with an automatic create fix are materialized too, so a
	// fresh project validates clean
	for _, rule := range tmpl.Rules.Rules {
		if !rule.Fix.AutoFix || rule.Fix.Action != types.FixCreate {
			continue
		}
		switch rule.Type {
		case types.RuleRequiredFolder:
			full, err := target(rule.Target)
			if err != nil {
				return nil, err
			}
			add(plannedEntry{path: full, dir: true, perm: filestore.DefaultDirMode})
		case types.RuleRequiredFile:
			full, err := target(rule.Target)
			if err != nil {
				return nil, err
			}
			body, err := e.render(rule.Fix.Content, vars)
			if err != nil {
				return nil, fmt.Errorf("render rule %s: %w", rule.ID, err)
			}
			add(plannedEntry{path: full, data: []byte(body), perm: filestore.DefaultFileMode})
		}
	}

	return p, nil
}

// execute writes the planned entries, honoring each template's conflict
// policy for files that already exist.
func (e *Engine) execute(ctx context.Context, result *ApplyResult, plans []*plannedTemplate) error {
	for _, p := range plans {
		policy := p.tmpl.Rules.ConflictResolution
		for _, entry := range p.entries {
			rel := relPath(result.ProjectPath, entry.path)

			if entry.dir {
				isDir, err := e.files.IsDirectory(ctx, entry.path)
				if err != nil {
					return err
				}
				if isDir {
					continue
				}
				if err := e.files.CreateDirectory(ctx, entry.path, entry.perm); err != nil {
					return err
				}
				result.Created = append(result.Created, rel)
				continue
			}

			exists, err := e.files.Exists(ctx, entry.path)
			if err != nil {
				return err
			}
			if exists {
				isFile, err := e.files.IsFile(ctx, entry.path)
				if err != nil {
					return err
				}
				switch {
				case !isFile:
					result.Warnings = append(result.Warnings, fmt.Sprintf("%s is a directory; file not written", rel))
					result.Skipped = append(result.Skipped, rel)
					continue
				case policy == types.ConflictReplace:
				case policy == types.ConflictSkip:
					result.Skipped = append(result.Skipped, rel)
					continue
				default:
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("conflict policy %q is not supported here; kept existing %s", policy, rel))
					result.Skipped = append(result.Skipped, rel)
					continue
				}
			}

			if err := e.files.WriteFile(ctx, entry.path, entry.data, entry.perm); err != nil {
				return err
			}
			result.Created = append(result.Created, rel)
		}
	}
	return nil
}

// apply records the planned templates and a history entry in m.
func (e *Engine) apply(m *types.ProjectManifest, plans []*plannedTemplate, action types.HistoryAction, result *ApplyResult) {
	now := e.now()
	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		m.Templates = append(m.Templates, types.AppliedTemplate{
			TemplateID: p.tmpl.ID,
			Name:       p.tmpl.Name,
			Version:    p.tmpl.Version,
			RootFolder: p.root,
			Status:     types.StatusActive,
			AppliedAt:  now,
		})
		ids = append(ids, p.tmpl.ID)
	}
	m.History = append(m.History, types.HistoryEntry{
		ID:        e.newID(),
		Timestamp: now,
		Action:    action,
		Templates: ids,
		Changes:   result.Created,
		Details:   map[string]any{"skipped": len(result.Skipped)},
	})
}

// rootKey normalizes a resolved root folder for collision checks.
func rootKey(root string) string {
	return path.Clean(filepath.ToSlash(root))
}

func copyVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
