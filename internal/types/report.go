package types

import "time"

// ValidationReport is the result of reconciling a project against its
// applied templates. It is produced fresh on every run and never persisted.
type ValidationReport struct {
	ID          string              `json:"id" yaml:"id"`
	Timestamp   time.Time           `json:"timestamp" yaml:"timestamp"`
	ProjectID   string              `json:"projectId" yaml:"projectId"`
	ProjectName string              `json:"projectName" yaml:"projectName"`
	ProjectPath string              `json:"projectPath" yaml:"projectPath"`
	Templates   []string            `json:"templates" yaml:"templates"`
	Valid       bool                `json:"valid" yaml:"valid"`
	Errors      []ValidationError   `json:"errors" yaml:"errors"`
	Warnings    []ValidationWarning `json:"warnings" yaml:"warnings"`
	Suggestions []string            `json:"suggestions" yaml:"suggestions"`
	Stats       ValidationStats     `json:"stats" yaml:"stats"`
}

// ValidationStats summarizes a validation run. Duration is in milliseconds.
type ValidationStats struct {
	FilesChecked     int   `json:"filesChecked" yaml:"filesChecked"`
	FoldersChecked   int   `json:"foldersChecked" yaml:"foldersChecked"`
	TemplatesChecked int   `json:"templatesChecked" yaml:"templatesChecked"`
	ErrorCount       int   `json:"errorCount" yaml:"errorCount"`
	WarningCount     int   `json:"warningCount" yaml:"warningCount"`
	Duration         int64 `json:"duration" yaml:"duration"`
}

// ValidationError is a structural mismatch that makes a project invalid.
type ValidationError struct {
	ID         string   `json:"id" yaml:"id"`
	Severity   Severity `json:"severity" yaml:"severity"`
	RuleID     string   `json:"ruleId" yaml:"ruleId"`
	TemplateID string   `json:"templateSha,omitempty" yaml:"templateSha,omitempty"`
	// Path is the resolved absolute path the check ran against
	Path string `json:"path" yaml:"path"`
	// Definition is the raw, unsubstituted path of the originating folder or
	// file definition; empty for custom rules
	Definition string   `json:"definition,omitempty" yaml:"definition,omitempty"`
	Expected   string   `json:"expected" yaml:"expected"`
	Actual     string   `json:"actual" yaml:"actual"`
	Message    string   `json:"message" yaml:"message"`
	Fix        *RuleFix `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// ValidationWarning is a non-fatal finding. Warnings never affect validity.
type ValidationWarning struct {
	ID         string `json:"id" yaml:"id"`
	TemplateID string `json:"templateSha,omitempty" yaml:"templateSha,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Message    string `json:"message" yaml:"message"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// AppliedFix records one successful (or, in dry-run, planned) fix.
type AppliedFix struct {
	Path   string    `json:"path" yaml:"path"`
	Action FixAction `json:"action" yaml:"action"`
	RuleID string    `json:"ruleId" yaml:"ruleId"`
}

// FixReport is a ValidationReport after a fix pass. Errors holds the
// remaining errors, mirrored in RemainingErrors for callers that want the
// distinction explicit.
type FixReport struct {
	ValidationReport `yaml:",inline"`
	DryRun           bool              `json:"dryRun" yaml:"dryRun"`
	Applied          []AppliedFix      `json:"fixesApplied" yaml:"fixesApplied"`
	RemainingErrors  []ValidationError `json:"remainingErrors" yaml:"remainingErrors"`
}

// Finalize recomputes the derived fields of the report from its lists.
func (r *ValidationReport) Finalize(elapsed time.Duration) {
	r.Valid = len(r.Errors) == 0
	r.Stats.ErrorCount = len(r.Errors)
	r.Stats.WarningCount = len(r.Warnings)
	r.Stats.Duration = elapsed.Milliseconds()
}
