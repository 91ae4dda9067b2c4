package watcher

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/scaffold/internal/logging"
	"github.com/conneroisu/scaffold/internal/types"
)

// ValidateFunc validates the project at projectPath.
type ValidateFunc func(ctx context.Context, projectPath string) (*types.ValidationReport, error)

// Revalidator runs a ValidateFunc, sharing one in-flight run between callers
// asking for the same project.
type Revalidator struct {
	validate ValidateFunc
	logger   logging.Logger
	group    singleflight.Group
}

// NewRevalidator wraps fn. A nil logger discards output.
func NewRevalidator(fn ValidateFunc, logger logging.Logger) *Revalidator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Revalidator{validate: fn, logger: logger.WithComponent("revalidate")}
}

// Revalidate validates projectPath. shared reports whether the result came
// from a run started by another caller.
func (r *Revalidator) Revalidate(ctx context.Context, projectPath string) (*types.ValidationReport, bool, error) {
	v, err, shared := r.group.Do(projectPath, func() (interface{}, error) {
		return r.validate(ctx, projectPath)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*types.ValidationReport), shared, nil
}

// Handler returns a ChangeHandler that revalidates projectPath after each
// batch and passes the outcome to onReport. Validation errors are reported,
// not returned, so the watcher keeps running.
func (r *Revalidator) Handler(projectPath string, onReport func(*types.ValidationReport, error)) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		r.logger.Debug(ctx, "revalidating", "project", projectPath, "changes", len(events))
		report, shared, err := r.Revalidate(ctx, projectPath)
		if shared {
			r.logger.Debug(ctx, "joined running validation", "project", projectPath)
		}
		onReport(report, err)
		return nil
	}
}
