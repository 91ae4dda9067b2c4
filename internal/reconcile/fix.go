package reconcile

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/rules"
	"github.com/conneroisu/scaffold/internal/types"
)

const dryRunNotice = "dry run: no changes were made"

// FixProject validates the project governing path and applies every
// automatic create fix. A valid project is returned untouched. With dryRun
// set the fixes that would run are listed in Applied and nothing is written.
func (e *Engine) FixProject(ctx context.Context, path string, dryRun bool) (*types.FixReport, error) {
	started := e.now()
	ctx = operation(ctx, e.newID())

	r, err := e.validate(ctx, path)
	if err != nil {
		return nil, errors.OperationFailed("fix", err)
	}

	report := &types.FixReport{
		ValidationReport: *r.report,
		DryRun:           dryRun,
		Applied:          []types.AppliedFix{},
		RemainingErrors:  []types.ValidationError{},
	}
	if r.report.Valid {
		return report, nil
	}

	report.Errors = []types.ValidationError{}
	var changed []string
	var touched []string

	for _, ve := range r.report.Errors {
		if !autoFixable(ve) {
			report.Errors = append(report.Errors, ve)
			report.RemainingErrors = append(report.RemainingErrors, ve)
			if ve.Fix != nil && ve.Fix.Message != "" {
				r.warn(e, ve.TemplateID, ve.Path, "manual fix required: "+ve.Fix.Message, "")
			}
			continue
		}

		fix := types.AppliedFix{Path: ve.Path, Action: ve.Fix.Action, RuleID: ve.RuleID}
		if dryRun {
			report.Errors = append(report.Errors, ve)
			report.Applied = append(report.Applied, fix)
			continue
		}

		if err := e.applyFix(ctx, r, ve); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.OperationFailed("fix", ctxErr)
			}
			e.logger.Warn(ctx, err, "fix failed", "path", ve.Path, "rule", ve.RuleID)
			report.Errors = append(report.Errors, ve)
			report.RemainingErrors = append(report.RemainingErrors, ve)
			r.warn(e, ve.TemplateID, ve.Path, "fix failed: "+err.Error(), "")
			continue
		}

		e.logger.Debug(ctx, "fix applied", "path", ve.Path, "rule", ve.RuleID)
		report.Applied = append(report.Applied, fix)
		changed = append(changed, relPath(r.projectPath, ve.Path))
		touched = appendUnique(touched, ve.TemplateID)
	}

	if len(changed) > 0 {
		if err := e.recordFix(ctx, r, touched, changed); err != nil {
			e.logger.Warn(ctx, err, "manifest history not persisted", "project", r.projectPath)
			r.warn(e, "", filestore.ManifestPath(r.projectPath),
				"fixes were applied but the manifest could not be updated: "+err.Error(), "")
		}
	}

	report.Warnings = r.report.Warnings
	report.Suggestions = suggestionsFor(&types.ValidationReport{Errors: report.RemainingErrors})
	if dryRun {
		r.warn(e, "", "", dryRunNotice, "")
		report.Warnings = r.report.Warnings
		report.Suggestions = append(report.Suggestions, dryRunNotice)
	}
	report.Finalize(e.now().Sub(started))

	e.logger.Info(ctx, "project fixed",
		"project", r.projectPath,
		"dry_run", dryRun,
		"applied", len(report.Applied),
		"remaining", len(report.RemainingErrors))

	return report, nil
}

func autoFixable(ve types.ValidationError) bool {
	return ve.Fix != nil && ve.Fix.AutoFix && ve.Fix.Action == types.FixCreate &&
		(ve.Expected == rules.KindDirectory || ve.Expected == rules.KindFile)
}

// applyFix creates the folder or file a create fix asks for.
func (e *Engine) applyFix(ctx context.Context, r *run, ve types.ValidationError) error {
	tmpl, ok := r.templates[ve.TemplateID]
	if !ok {
		return errors.TemplateNotFound(ve.TemplateID)
	}

	if ve.Expected == rules.KindDirectory {
		perm := filestore.DefaultDirMode
		if folder, ok := tmpl.FindFolder(ve.Definition); ok && ve.Definition != "" {
			perm = types.ParseMode(folder.Permissions, perm)
		}
		return e.files.CreateDirectory(ctx, ve.Path, perm)
	}

	data, perm, err := e.fileBody(ctx, r, tmpl, ve)
	if err != nil {
		return err
	}
	return e.files.WriteFile(ctx, ve.Path, data, perm)
}

// fileBody produces the content of a missing file: the definition body for
// implicit checks, the rule's fix content for custom rules.
func (e *Engine) fileBody(ctx context.Context, r *run, tmpl *types.Template, ve types.ValidationError) ([]byte, os.FileMode, error) {
	if ve.Definition == "" {
		rule, ok := tmpl.FindRule(ve.RuleID)
		if !ok {
			return nil, 0, fmt.Errorf("template %s has no rule %q", tmpl.Name, ve.RuleID)
		}
		out, err := e.render(rule.Fix.Content, r.manifest.Variables)
		return []byte(out), filestore.DefaultFileMode, err
	}

	def, ok := tmpl.FindFile(ve.Definition)
	if !ok {
		return nil, 0, fmt.Errorf("template %s has no file definition %q", tmpl.Name, ve.Definition)
	}
	data, err := e.definitionContent(ctx, tmpl, def, r.manifest.Variables)
	return data, types.ParseMode(def.Permissions, filestore.DefaultFileMode), err
}

// definitionContent renders a file definition: inline content wins over the
// source file, and NoSubstitute files are copied as is.
func (e *Engine) definitionContent(ctx context.Context, tmpl *types.Template, def types.FileDefinition, vars map[string]any) ([]byte, error) {
	body := def.Content
	if body == "" && def.SourcePath != "" {
		raw, err := e.templates.ReadTemplateFile(ctx, tmpl, def.SourcePath)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	if def.NoSubstitute {
		return []byte(body), nil
	}
	out, err := e.render(body, vars)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (e *Engine) recordFix(ctx context.Context, r *run, templateIDs, changes []string) error {
	m := r.manifest
	now := e.now()
	m.History = append(m.History, types.HistoryEntry{
		ID:        e.newID(),
		Timestamp: now,
		Action:    types.ActionFix,
		Templates: templateIDs,
		Changes:   changes,
	})
	m.Updated = now
	return e.files.UpdateProjectManifest(ctx, r.projectPath, m)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
