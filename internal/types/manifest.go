package types

import "time"

// ManifestDir is the per-project directory holding scaffold state.
const ManifestDir = ".scaffold"

// ManifestFile is the manifest file name inside ManifestDir.
const ManifestFile = "manifest.json"

// ManifestVersion is written into new manifests.
const ManifestVersion = "1.0.0"

// TemplateStatus is the lifecycle state of an applied template.
type TemplateStatus string

const (
	StatusActive  TemplateStatus = "active"
	StatusRemoved TemplateStatus = "removed"
)

// HistoryAction names the operation a history entry records.
type HistoryAction string

const (
	ActionCreate HistoryAction = "create"
	ActionExtend HistoryAction = "extend"
	ActionRemove HistoryAction = "remove"
	ActionCheck  HistoryAction = "check"
	ActionFix    HistoryAction = "fix"
)

// ProjectManifest is the persisted state of one scaffolded project.
type ProjectManifest struct {
	Version     string    `json:"version" yaml:"version"`
	ID          string    `json:"id" yaml:"id"`
	ProjectName string    `json:"projectName" yaml:"projectName"`
	Created     time.Time `json:"created" yaml:"created"`
	Updated     time.Time `json:"updated" yaml:"updated"`
	// Templates lists applied templates in application order
	Templates []AppliedTemplate `json:"templates" yaml:"templates"`
	// Variables is the flat (possibly nested) variable map used for every
	// substitution performed on behalf of this project
	Variables map[string]any `json:"variables" yaml:"variables"`
	// History is append-only
	History []HistoryEntry `json:"history" yaml:"history"`
}

// AppliedTemplate records that a template was instantiated into the project.
type AppliedTemplate struct {
	TemplateID string         `json:"templateSha" yaml:"templateSha"`
	Name       string         `json:"name" yaml:"name"`
	Version    string         `json:"version" yaml:"version"`
	RootFolder string         `json:"rootFolder" yaml:"rootFolder"`
	Status     TemplateStatus `json:"status" yaml:"status"`
	AppliedAt  time.Time      `json:"appliedAt" yaml:"appliedAt"`
}

// HistoryEntry is one line of the manifest's audit log.
type HistoryEntry struct {
	ID        string         `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Action    HistoryAction  `json:"action" yaml:"action"`
	Templates []string       `json:"templates,omitempty" yaml:"templates,omitempty"`
	Changes   []string       `json:"changes,omitempty" yaml:"changes,omitempty"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// ActiveTemplates returns the applied templates whose status is active, in
// manifest order.
func (m *ProjectManifest) ActiveTemplates() []AppliedTemplate {
	active := make([]AppliedTemplate, 0, len(m.Templates))
	for _, t := range m.Templates {
		if t.Status == StatusActive {
			active = append(active, t)
		}
	}
	return active
}

// Normalize fills fields a hand-edited or older manifest may lack.
func (m *ProjectManifest) Normalize() {
	if m.Version == "" {
		m.Version = ManifestVersion
	}
	if m.Variables == nil {
		m.Variables = make(map[string]any)
	}
	for i := range m.Templates {
		if m.Templates[i].Status == "" {
			m.Templates[i].Status = StatusActive
		}
	}
}
