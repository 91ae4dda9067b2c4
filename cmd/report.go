package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/conneroisu/scaffold/internal/reconcile"
	"github.com/conneroisu/scaffold/internal/types"
)

func writeValidationText(w io.Writer, st styles, r *types.ValidationReport) error {
	name := r.ProjectName
	if name == "" {
		name = filepath.Base(r.ProjectPath)
	}
	fmt.Fprintf(w, "%s %s\n", st.title.Render("Project"), st.path.Render(name))
	fmt.Fprintf(w, "  %s\n", st.muted.Render(r.ProjectPath))

	writeIssues(w, st, r)

	status := st.ok.Render("valid")
	if !r.Valid {
		status = st.err.Render("invalid")
	}
	fmt.Fprintf(w, "\n%s: %s, %s, checked %s and %s from %s in %dms\n",
		status,
		plural(r.Stats.ErrorCount, "error"),
		plural(r.Stats.WarningCount, "warning"),
		plural(r.Stats.FilesChecked, "file"),
		plural(r.Stats.FoldersChecked, "folder"),
		plural(r.Stats.TemplatesChecked, "template"),
		r.Stats.Duration,
	)
	return nil
}

func writeIssues(w io.Writer, st styles, r *types.ValidationReport) {
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Errors"))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s %s %s\n", st.err.Render("✗"), e.Message, st.muted.Render("["+e.RuleID+"]"))
			fmt.Fprintf(w, "    %s\n", st.path.Render(relTo(r.ProjectPath, e.Path)))
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Warnings"))
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  %s %s\n", st.warn.Render("!"), wn.Message)
			if wn.Suggestion != "" {
				fmt.Fprintf(w, "    %s\n", st.muted.Render("→ "+wn.Suggestion))
			}
		}
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Suggestions"))
		for _, s := range r.Suggestions {
			fmt.Fprintf(w, "  → %s\n", s)
		}
	}
}

func writeFixText(w io.Writer, st styles, r *types.FixReport) error {
	if len(r.Applied) > 0 {
		verb := "Applied fixes"
		if r.DryRun {
			verb = "Planned fixes"
		}
		fmt.Fprintf(w, "%s\n", st.heading.Render(verb))
		for _, f := range r.Applied {
			fmt.Fprintf(w, "  %s %s %s\n", st.ok.Render("✓"), f.Action, st.path.Render(relTo(r.ProjectPath, f.Path)))
		}
		fmt.Fprintln(w)
	}
	return writeValidationText(w, st, &r.ValidationReport)
}

func writeApplyText(w io.Writer, st styles, verb string, r *reconcile.ApplyResult) error {
	fmt.Fprintf(w, "%s %s\n", st.title.Render(verb), st.path.Render(r.ProjectPath))
	for _, p := range r.Created {
		fmt.Fprintf(w, "  %s %s\n", st.ok.Render("+"), p)
	}
	for _, p := range r.Skipped {
		fmt.Fprintf(w, "  %s %s %s\n", st.muted.Render("="), p, st.muted.Render("(exists)"))
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", st.warn.Render("!"), msg)
	}
	fmt.Fprintf(w, "\n%s created, %d skipped\n", plural(len(r.Created), "path"), len(r.Skipped))
	return nil
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
