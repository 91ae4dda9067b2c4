package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/conneroisu/scaffold/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	// loaded is the configuration as decoded; a.cfg may differ in output
	// format so an invalid format can still be reported
	var loaded *config.Config

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
		// load without validating so validate can list every problem
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			used, err := config.InitViper(a.viper, a.configFile)
			if err != nil {
				return err
			}
			a.configFile = used
			cfg, err := config.DecodeViper(a.viper)
			if err != nil {
				return err
			}
			loaded = cfg

			display := *cfg
			if !slices.Contains(config.OutputFormats, display.Output.Format) {
				display.Output.Format = config.DefaultFormat
			}
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				display.Output.Color = false
			}
			a.cfg = &display
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the merged configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.write(cmd.OutOrStdout(), loaded, func(w io.Writer, st styles) error {
					return writeConfigText(w, st, a.configFile, loaded)
				})
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration and list problems",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				result := config.ValidateConfigWithDetails(loaded)
				if err := a.write(cmd.OutOrStdout(), result, func(w io.Writer, st styles) error {
					if result.Valid && !result.HasWarnings() {
						fmt.Fprintln(w, st.ok.Render("configuration is valid"))
						return nil
					}
					_, err := io.WriteString(w, result.String())
					return err
				}); err != nil {
					return err
				}
				if !result.Valid {
					return errInvalid
				}
				return nil
			},
		},
	)

	return cmd
}

func writeConfigText(w io.Writer, st styles, file string, c *config.Config) error {
	source := file
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(w, "%s %s\n\n", st.title.Render("Configuration from"), st.path.Render(source))

	rows := []struct {
		key   string
		value interface{}
	}{
		{"substitution.max_depth", c.Substitution.MaxDepth},
		{"substitution.throw_on_missing", c.Substitution.ThrowOnMissing},
		{"substitution.allow_circular", c.Substitution.AllowCircular},
		{"substitution.preserve_escapes", c.Substitution.PreserveEscapes},
		{"validation.search_depth", c.Validation.SearchDepth},
		{"templates.paths", c.Templates.Paths},
		{"output.format", c.Output.Format},
		{"output.color", c.Output.Color},
		{"watch.debounce", c.Watch.Debounce},
		{"watch.ignore", c.Watch.Ignore},
		{"log.level", c.Log.Level},
		{"log.format", c.Log.Format},
		{"log.dir", c.Log.Dir},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-30s %v\n", r.key, r.value)
	}
	return nil
}
