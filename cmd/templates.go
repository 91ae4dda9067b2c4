package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/scaffold/internal/substitution"
	"github.com/conneroisu/scaffold/internal/templatestore"
	"github.com/conneroisu/scaffold/internal/types"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"t"},
		Short:   "Inspect available templates",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List templates in the configured search paths",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				list, err := a.templates.List(cmd.Context())
				if err != nil {
					return err
				}
				return a.write(cmd.OutOrStdout(), list, func(w io.Writer, st styles) error {
					return writeTemplateList(w, st, list)
				})
			},
		},
		&cobra.Command{
			Use:   "show <template>",
			Short: "Show a template definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tmpl, err := a.templates.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.write(cmd.OutOrStdout(), tmpl, func(w io.Writer, st styles) error {
					return writeTemplateText(w, st, tmpl)
				})
			},
		},
	)

	return cmd
}

func writeTemplateList(w io.Writer, st styles, list []templatestore.Summary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No templates found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tID\tDESCRIPTION")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Version, s.ID, s.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", st.muted.Render(plural(len(list), "template")))
	return nil
}

func writeTemplateText(w io.Writer, st styles, t *types.Template) error {
	fmt.Fprintf(w, "%s %s %s\n", st.title.Render(t.Name), st.muted.Render(t.Version), st.muted.Render(t.ID))
	if t.Description != "" {
		fmt.Fprintf(w, "%s\n", t.Description)
	}
	fmt.Fprintf(w, "root: %s\n", st.path.Render(t.RootFolder))

	if len(t.Variables) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Variables"))
		for _, v := range t.Variables {
			line := "  " + v.Name
			if v.Required {
				line += " " + st.warn.Render("(required)")
			}
			if v.HasDefault() {
				line += " = " + v.Default
			}
			if v.Description != "" {
				line += "  " + st.muted.Render(v.Description)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(t.Folders) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Folders"))
		for _, f := range t.Folders {
			fmt.Fprintf(w, "  %s/\n", f.Path)
		}
	}

	if len(t.Files) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Files"))
		for _, f := range t.Files {
			fmt.Fprintf(w, "  %s\n", f.Path)
		}
	}

	if len(t.Rules.Rules) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Rules"))
		for _, r := range t.Rules.Rules {
			fmt.Fprintf(w, "  %s %s %s %s\n", r.ID, r.Type, r.Target, st.muted.Render(string(r.Severity)))
		}
	}

	if t.Rules.StrictMode {
		fmt.Fprintf(w, "\nstrict mode: extra files allowed=%t, extra folders allowed=%t\n",
			t.Rules.AllowExtraFiles, t.Rules.AllowExtraFolders)
	}
	return nil
}

// varsReport is the placeholder audit of one template.
type varsReport struct {
	Template   string                   `json:"template" yaml:"template"`
	Declared   []types.TemplateVariable `json:"declared" yaml:"declared"`
	Used       []string                 `json:"used" yaml:"used"`
	Missing    []string                 `json:"missing" yaml:"missing"`
	Unresolved []string                 `json:"unresolved" yaml:"unresolved"`
	Valid      bool                     `json:"valid" yaml:"valid"`
}

func newVarsCmd(a *app) *cobra.Command {
	var vars varFlags

	cmd := &cobra.Command{
		Use:   "vars <template>",
		Short: "Check which variables a template needs",
		Long: `List the variables a template declares and the placeholders it uses, then
report required variables without a value and path placeholders nothing
resolves. Pass the variables you intend to use with --var or --vars-file.

The command exits with status 1 when anything is missing or unresolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provided, err := vars.parse()
			if err != nil {
				return err
			}
			tmpl, err := a.templates.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			check := substitution.ValidateRequiredVariables(tmpl, provided)
			report := &varsReport{
				Template:   tmpl.Name,
				Declared:   tmpl.Variables,
				Used:       usedVariables(tmpl),
				Missing:    check.Missing,
				Unresolved: check.Unresolved,
				Valid:      check.Valid(),
			}

			if err := a.write(cmd.OutOrStdout(), report, func(w io.Writer, st styles) error {
				return writeVarsText(w, st, report)
			}); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}

	vars.register(cmd)

	return cmd
}

// usedVariables lists placeholders in paths, rule targets and inline
// content, in order of first appearance.
func usedVariables(t *types.Template) []string {
	sources := []string{t.RootFolder}
	for _, f := range t.Folders {
		sources = append(sources, f.Path)
	}
	for _, f := range t.Files {
		sources = append(sources, f.Path)
		if !f.NoSubstitute {
			sources = append(sources, f.Content)
		}
	}
	for _, r := range t.Rules.Rules {
		sources = append(sources, r.Target, r.Fix.Content)
	}

	seen := make(map[string]bool)
	used := []string{}
	for _, src := range sources {
		for name := range substitution.ExtractVariables(src) {
			if !seen[name] {
				seen[name] = true
				used = append(used, name)
			}
		}
	}
	return used
}

func writeVarsText(w io.Writer, st styles, r *varsReport) error {
	fmt.Fprintf(w, "%s %s\n", st.title.Render("Template"), r.Template)

	if len(r.Used) > 0 {
		fmt.Fprintf(w, "\n%s\n", st.heading.Render("Used"))
		for _, name := range r.Used {
			marker := " "
			if substitution.IsSpecialVariable(name) {
				marker = st.muted.Render("*")
			}
			fmt.Fprintf(w, "  %s %s\n", marker, name)
		}
	}

	for _, name := range r.Missing {
		fmt.Fprintf(w, "%s required variable %s has no value\n", st.err.Render("✗"), name)
	}
	for _, name := range r.Unresolved {
		fmt.Fprintf(w, "%s placeholder %s is not declared and has no value\n", st.err.Render("✗"), name)
	}
	if r.Valid {
		fmt.Fprintf(w, "\n%s\n", st.ok.Render("all variables resolve"))
	}
	return nil
}
