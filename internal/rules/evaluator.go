// Package rules evaluates a single structural rule against a resolved path.
//
// The evaluator does no I/O of its own: callers supply a Probe, and the
// outcome of a check is either a pass, a ValidationError or a
// ValidationWarning. Implicit folder and file checks of a template are
// expressed as required_folder and required_file rules so every structural
// check goes through the same code.
package rules

import (
	"context"
	"fmt"

	"github.com/conneroisu/scaffold/internal/types"
)

// Entry kinds used in ValidationError.Expected and ValidationError.Actual.
const (
	KindFile      = "file"
	KindDirectory = "directory"
	KindMissing   = "missing"
	KindAbsent    = "absent"
)

// Rule ids of checks the engine derives rather than reads from a template.
const (
	RequiredFolderID = string(types.RuleRequiredFolder)
	RequiredFileID   = string(types.RuleRequiredFile)
	StrictModeID     = "strict_mode"
)

// Probe answers existence and type questions about a path.
type Probe interface {
	Exists(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	IsDirectory(ctx context.Context, path string) (bool, error)
}

// Outcome is the result of evaluating one rule. At most one field is set;
// both nil means the rule passed.
type Outcome struct {
	Error   *types.ValidationError
	Warning *types.ValidationWarning
}

// Passed reports whether the rule produced no finding.
func (o Outcome) Passed() bool {
	return o.Error == nil && o.Warning == nil
}

// RequiredFolder is the implicit rule behind a template folder definition.
func RequiredFolder(target string) types.Rule {
	return types.Rule{
		ID:       RequiredFolderID,
		Name:     "Required folder",
		Type:     types.RuleRequiredFolder,
		Target:   target,
		Severity: types.SeverityError,
		Fix:      types.RuleFix{Action: types.FixCreate, AutoFix: true},
	}
}

// RequiredFile is the implicit rule behind a template file definition.
func RequiredFile(target string) types.Rule {
	return types.Rule{
		ID:       RequiredFileID,
		Name:     "Required file",
		Type:     types.RuleRequiredFile,
		Target:   target,
		Severity: types.SeverityError,
		Fix:      types.RuleFix{Action: types.FixCreate, AutoFix: true},
	}
}

// Evaluate checks rule against the already substituted path. Probe errors
// are returned as errors; everything else is an Outcome.
func Evaluate(ctx context.Context, rule types.Rule, path string, probe Probe) (Outcome, error) {
	switch rule.Type {
	case types.RuleRequiredFile:
		return evaluateRequired(ctx, rule, path, probe, KindFile)
	case types.RuleRequiredFolder:
		return evaluateRequired(ctx, rule, path, probe, KindDirectory)
	case types.RuleForbiddenFile:
		return evaluateForbidden(ctx, rule, path, probe, KindFile)
	case types.RuleForbiddenFolder:
		return evaluateForbidden(ctx, rule, path, probe, KindDirectory)
	default:
		return Outcome{Warning: &types.ValidationWarning{
			Path:    path,
			Message: fmt.Sprintf("unsupported rule type %q in rule %s", rule.Type, rule.ID),
		}}, nil
	}
}

func evaluateRequired(ctx context.Context, rule types.Rule, path string, probe Probe, want string) (Outcome, error) {
	exists, err := probe.Exists(ctx, path)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		fix := rule.Fix
		return Outcome{Error: &types.ValidationError{
			Severity: severityOf(rule),
			RuleID:   rule.ID,
			Path:     path,
			Expected: want,
			Actual:   KindMissing,
			Message:  fmt.Sprintf("required %s not found: %s", noun(want), path),
			Fix:      &fix,
		}}, nil
	}

	ok, err := isKind(ctx, probe, path, want)
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		return Outcome{}, nil
	}

	got := KindFile
	if want == KindFile {
		got = KindDirectory
	}
	// Replacing a conflicting entry would mean deleting it first, which is
	// never done automatically.
	fix := rule.Fix
	fix.AutoFix = false
	fix.Message = fmt.Sprintf("remove the %s at %s and re-run fix", noun(got), path)

	return Outcome{Error: &types.ValidationError{
		Severity: severityOf(rule),
		RuleID:   rule.ID,
		Path:     path,
		Expected: want,
		Actual:   got,
		Message:  fmt.Sprintf("expected a %s but found a %s: %s", noun(want), noun(got), path),
		Fix:      &fix,
	}}, nil
}

func evaluateForbidden(ctx context.Context, rule types.Rule, path string, probe Probe, kind string) (Outcome, error) {
	exists, err := probe.Exists(ctx, path)
	if err != nil || !exists {
		return Outcome{}, err
	}
	ok, err := isKind(ctx, probe, path, kind)
	if err != nil || !ok {
		return Outcome{}, err
	}

	msg := fmt.Sprintf("forbidden %s present: %s", noun(kind), path)
	if rule.Severity == types.SeverityWarning {
		return Outcome{Warning: &types.ValidationWarning{
			Path:       path,
			Message:    msg,
			Suggestion: rule.Fix.Message,
		}}, nil
	}

	fix := rule.Fix
	return Outcome{Error: &types.ValidationError{
		Severity: severityOf(rule),
		RuleID:   rule.ID,
		Path:     path,
		Expected: KindAbsent,
		Actual:   kind,
		Message:  msg,
		Fix:      &fix,
	}}, nil
}

func isKind(ctx context.Context, probe Probe, path, kind string) (bool, error) {
	if kind == KindFile {
		return probe.IsFile(ctx, path)
	}
	return probe.IsDirectory(ctx, path)
}

func severityOf(rule types.Rule) types.Severity {
	if rule.Severity == "" {
		return types.SeverityError
	}
	return rule.Severity
}

func noun(kind string) string {
	if kind == KindDirectory {
		return "folder"
	}
	return kind
}
