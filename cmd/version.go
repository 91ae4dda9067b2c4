package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/scaffold/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		short  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the scaffold version, git commit, build time, Go version and
target platform.

Examples:
  scaffold version
  scaffold version --short
  scaffold version --json`,
		Args: cobra.NoArgs,
		// version works without a readable configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case short:
				fmt.Fprintln(out, info.Short())
			default:
				fmt.Fprintf(out, "scaffold %s\n", info.Short())
				fmt.Fprintln(out, info.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")

	return cmd
}
