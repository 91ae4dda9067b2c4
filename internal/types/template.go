// Package types provides common type definitions used throughout the scaffold CLI.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"os"
	"strconv"
)

// RuleType identifies the structural check a Rule performs.
type RuleType string

const (
	RuleRequiredFile    RuleType = "required_file"
	RuleRequiredFolder  RuleType = "required_folder"
	RuleForbiddenFile   RuleType = "forbidden_file"
	RuleForbiddenFolder RuleType = "forbidden_folder"
)

// Severity is the level a failed rule is reported at.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FixAction names the remediation prescribed by a RuleFix.
type FixAction string

const (
	FixCreate FixAction = "create"
	FixDelete FixAction = "delete"
	FixRename FixAction = "rename"
	FixPrompt FixAction = "prompt"
)

// ConflictResolution controls what happens when a template file already
// exists on disk while a project is being created or extended.
type ConflictResolution string

const (
	ConflictSkip    ConflictResolution = "skip"
	ConflictReplace ConflictResolution = "replace"
	ConflictPrompt  ConflictResolution = "prompt"
	ConflictMerge   ConflictResolution = "merge"
)

// Template is an immutable definition of the folders, files, variables and
// structural rules a project gets when the template is applied to it.
type Template struct {
	// ID is the content-hash identifier of the template
	ID string `json:"id" yaml:"id"`
	// Name is the human readable template name (also usable as a lookup key)
	Name string `json:"name" yaml:"name"`
	// Version is the template's own version string
	Version string `json:"version" yaml:"version"`
	// Description documents what the template produces
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// RootFolder is the path prefix, relative to the project, under which
	// every folder, file and rule target of the template lives
	RootFolder string `json:"rootFolder" yaml:"rootFolder"`
	// Folders lists the directories the template creates
	Folders []FolderDefinition `json:"folders" yaml:"folders"`
	// Files lists the files the template creates
	Files []FileDefinition `json:"files" yaml:"files"`
	// Variables declares the variables the template expects
	Variables []TemplateVariable `json:"variables" yaml:"variables"`
	// Rules holds the structural rules checked during validation
	Rules TemplateRules `json:"rules" yaml:"rules"`
}

// FolderDefinition describes one directory of a template.
type FolderDefinition struct {
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Permissions is an octal permission string such as "0755"
	Permissions string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// FileDefinition describes one file of a template. Inline Content wins over
// SourcePath when both are set.
type FileDefinition struct {
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Permissions string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	// Content is the inline file body
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	// SourcePath points at a file shipped alongside the template definition
	SourcePath string `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`
	// NoSubstitute opts the file content out of variable substitution
	NoSubstitute bool `json:"noSubstitution,omitempty" yaml:"noSubstitution,omitempty"`
}

// TemplateVariable declares one variable used by a template.
type TemplateVariable struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	// Pattern is a regular expression every provided value must match
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// Transform is the name of a transform applied to the provided value
	Transform string `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// HasDefault reports whether the variable declares a non-empty default.
func (v TemplateVariable) HasDefault() bool {
	return v.Default != ""
}

// TemplateRules groups the structural policy of a template.
type TemplateRules struct {
	StrictMode         bool               `json:"strictMode" yaml:"strictMode"`
	AllowExtraFiles    bool               `json:"allowExtraFiles" yaml:"allowExtraFiles"`
	AllowExtraFolders  bool               `json:"allowExtraFolders" yaml:"allowExtraFolders"`
	ConflictResolution ConflictResolution `json:"conflictResolution,omitempty" yaml:"conflictResolution,omitempty"`
	ExcludePatterns    []string           `json:"excludePatterns,omitempty" yaml:"excludePatterns,omitempty"`
	Rules              []Rule             `json:"rules" yaml:"rules"`
}

// Rule is a custom structural rule evaluated against a substituted target path.
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RuleType `json:"type" yaml:"type"`
	Target      string   `json:"target" yaml:"target"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Fix         RuleFix  `json:"fix" yaml:"fix"`
}

// RuleFix is the prescribed remediation of a rule.
type RuleFix struct {
	Action  FixAction `json:"action" yaml:"action"`
	AutoFix bool      `json:"autoFix" yaml:"autoFix"`
	Content string    `json:"content,omitempty" yaml:"content,omitempty"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// ApplyDefaults fills fields older or hand-written definitions leave empty.
// It mutates the receiver and is meant to run once, right after decoding.
func (t *Template) ApplyDefaults() {
	if t.Rules.ConflictResolution == "" {
		t.Rules.ConflictResolution = ConflictSkip
	}
	for i := range t.Rules.Rules {
		r := &t.Rules.Rules[i]
		if r.Severity == "" {
			r.Severity = SeverityError
		}
		if r.Fix.Action == "" {
			switch r.Type {
			case RuleForbiddenFile, RuleForbiddenFolder:
				r.Fix.Action = FixDelete
			default:
				r.Fix.Action = FixCreate
			}
		}
		if r.ID == "" {
			r.ID = string(r.Type)
		}
	}
}

// FindFile returns the file definition whose raw path equals path.
func (t *Template) FindFile(path string) (FileDefinition, bool) {
	for _, f := range t.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileDefinition{}, false
}

// FindFolder returns the folder definition whose raw path equals path.
func (t *Template) FindFolder(path string) (FolderDefinition, bool) {
	for _, f := range t.Folders {
		if f.Path == path {
			return f, true
		}
	}
	return FolderDefinition{}, false
}

// FindRule returns the rule with the given id.
func (t *Template) FindRule(id string) (Rule, bool) {
	for _, r := range t.Rules.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// ParseMode converts an octal permission string into a file mode, falling
// back to def when the string is empty or malformed.
func ParseMode(perm string, def os.FileMode) os.FileMode {
	if perm == "" {
		return def
	}
	mode, err := strconv.ParseUint(perm, 8, 32)
	if err != nil || mode == 0 || mode > 0o7777 {
		return def
	}
	return os.FileMode(mode)
}
