package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/reconcile"
	"github.com/conneroisu/scaffold/internal/types"
	"github.com/conneroisu/scaffold/internal/validation"
)

// varFlags collects variables from --var and --vars-file.
type varFlags struct {
	pairs []string
	file  string
}

func (f *varFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.pairs, "var", nil, "variable as key=value (repeatable)")
	cmd.Flags().StringVar(&f.file, "vars-file", "", "YAML or JSON file of variables")
}

// parse merges the file first and the --var pairs over it.
func (f *varFlags) parse() (map[string]any, error) {
	vars := make(map[string]any)

	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, errors.FileOperationError("read", f.file, "cannot read variables file", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, errors.ConfigurationError("vars-file", "invalid YAML or JSON: "+err.Error(), f.file)
		}
	}

	for _, pair := range f.pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.ConfigurationError("var", "expected key=value", pair)
		}
		if err := validation.ValidateVariableName(key); err != nil {
			return nil, err
		}
		vars[key] = validation.SanitizeInput(value)
	}

	return vars, nil
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		vars      varFlags
		templates []string
		dir       string
	)

	cmd := &cobra.Command{
		Use:     "create <name>",
		Aliases: []string{"init"},
		Short:   "Create a new project from templates",
		Long: `Create the project directory <dir>/<name>, apply each template in order
and write the project manifest to .scaffold/manifest.json.

Every template is loaded and every variable resolved before anything is
written, so a missing variable or a root folder conflict leaves no trace.
The variable projectName defaults to <name>.

Examples:
  scaffold create shop -t web --var app="My Shop"
  scaffold create shop -t web -t api --vars-file vars.yml --dir ~/src`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := vars.parse()
			if err != nil {
				return err
			}
			res, err := a.engine.CreateProject(cmd.Context(), reconcile.CreateOptions{
				Dir:         dir,
				Name:        args[0],
				TemplateIDs: templates,
				Variables:   values,
			})
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), res, func(w io.Writer, st styles) error {
				return writeApplyText(w, st, "Created", res)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&templates, "template", "t", nil, "template id, name or directory (repeatable)")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "parent directory of the new project")
	vars.register(cmd)
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func newExtendCmd(a *app) *cobra.Command {
	var (
		vars      varFlags
		templates []string
	)

	cmd := &cobra.Command{
		Use:   "extend [path]",
		Short: "Apply more templates to an existing project",
		Long: `Apply templates to the project containing path (default: the working
directory). Provided variables are merged over the ones in the manifest.

Examples:
  scaffold extend -t api --var service=orders
  scaffold extend ./shop/src -t docs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := vars.parse()
			if err != nil {
				return err
			}
			res, err := a.engine.ExtendProject(cmd.Context(), reconcile.ExtendOptions{
				Path:        pathArg(args),
				TemplateIDs: templates,
				Variables:   values,
			})
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), res, func(w io.Writer, st styles) error {
				return writeApplyText(w, st, "Extended", res)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&templates, "template", "t", nil, "template id, name or directory (repeatable)")
	vars.register(cmd)
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "remove <template>",
		Short: "Stop tracking an applied template",
		Long: `Mark an applied template as removed so validation no longer checks it.
Files the template created are left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.engine.RemoveTemplate(cmd.Context(), path, args[0])
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), m, func(w io.Writer, st styles) error {
				return writeManifestText(w, st, m)
			})
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", ".", "path inside the project")

	return cmd
}

func writeManifestText(w io.Writer, st styles, m *types.ProjectManifest) error {
	fmt.Fprintf(w, "%s %s\n", st.title.Render("Project"), st.path.Render(m.ProjectName))
	for _, t := range m.Templates {
		status := st.ok.Render(string(t.Status))
		if t.Status != types.StatusActive {
			status = st.muted.Render(string(t.Status))
		}
		fmt.Fprintf(w, "  %-8s %s %s %s\n", status, t.Name, st.muted.Render(t.Version), st.path.Render(t.RootFolder))
	}
	return nil
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return filepath.Clean(args[0])
}
