// Package reconcile compares projects with the templates they were built
// from. It validates a project into a ValidationReport, repairs what can be
// repaired automatically, and creates or extends projects from templates.
//
// Traversal is strictly sequential: templates in manifest order, and within
// a template folders, then files, then rules. Reports over unchanged state
// are therefore identical apart from ids, timestamps and durations.
package reconcile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/logging"
	"github.com/conneroisu/scaffold/internal/substitution"
	"github.com/conneroisu/scaffold/internal/templatestore"
	"github.com/conneroisu/scaffold/internal/types"
)

// DefaultSearchDepth is how many parent directories FindManifest climbs.
const DefaultSearchDepth = 20

// Engine reconciles projects. It holds no per-project state between calls.
type Engine struct {
	templates   templatestore.TemplateStore
	files       filestore.FileStore
	logger      logging.Logger
	now         func() time.Time
	newID       func() string
	subst       substitution.Options
	searchDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used for timestamps and special variables.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the generator of report, finding and history ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithSubstitution sets the options used to render file content.
func WithSubstitution(opts substitution.Options) Option {
	return func(e *Engine) { e.subst = opts }
}

// WithSearchDepth bounds the upward manifest search.
func WithSearchDepth(levels int) Option {
	return func(e *Engine) {
		if levels > 0 {
			e.searchDepth = levels
		}
	}
}

// New creates an Engine over the given collaborators.
func New(templates templatestore.TemplateStore, files filestore.FileStore, opts ...Option) *Engine {
	e := &Engine{
		templates:   templates,
		files:       files,
		logger:      logging.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		subst:       substitution.DefaultOptions(),
		searchDepth: DefaultSearchDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("reconcile")
	e.subst.Now = e.now
	return e
}

// FindManifest searches path and up to the configured number of parent
// directories for a project manifest, stopping at the filesystem root. It
// returns the project directory and its manifest.
func (e *Engine) FindManifest(ctx context.Context, path string) (string, *types.ProjectManifest, error) {
	start, err := filepath.Abs(path)
	if err != nil {
		return "", nil, errors.PathValidationError(path, err.Error())
	}

	dir := start
	for level := 0; level <= e.searchDepth; level++ {
		m, err := e.files.GetProjectManifest(ctx, dir)
		if err != nil {
			return "", nil, err
		}
		if m != nil {
			e.logger.Debug(ctx, "manifest found", "project", dir, "levels", level)
			return dir, m, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil, errors.ManifestNotFound(start, e.searchDepth)
}

// operation tags ctx with id so every log line of one call correlates. An id
// set by the caller wins.
func operation(ctx context.Context, id string) context.Context {
	if logging.OperationID(ctx) != "" {
		return ctx
	}
	return logging.WithOperationID(ctx, id)
}

// pathOptions are the substitution options for paths: an unresolved
// placeholder in a path is an error, never a literal directory name.
func (e *Engine) pathOptions() substitution.Options {
	opts := e.subst
	opts.ThrowOnMissing = true
	opts.PreserveEscapes = false
	return opts
}

// resolve substitutes a template-relative path with vars.
func (e *Engine) resolve(raw string, vars map[string]any) (string, error) {
	return substitution.Substitute(raw, vars, e.pathOptions())
}

// render substitutes file content with the engine's content options.
func (e *Engine) render(content string, vars map[string]any) (string, error) {
	return substitution.Substitute(content, vars, e.subst)
}
