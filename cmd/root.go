// Package cmd provides the scaffold command-line interface.
//
// Configuration is layered, highest priority first:
//  1. Command-line flags (--log-level, --output, --templates)
//  2. SCAFFOLD_ prefixed environment variables (SCAFFOLD_OUTPUT_FORMAT, ...)
//  3. The config file: --config, else SCAFFOLD_CONFIG_FILE, else
//     .scaffold.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/scaffold/internal/config"
	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/filestore"
	"github.com/conneroisu/scaffold/internal/logging"
	"github.com/conneroisu/scaffold/internal/reconcile"
	"github.com/conneroisu/scaffold/internal/templatestore"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	viper      *viper.Viper
	configFile string
	cfg        *config.Config
	logger     logging.Logger
	files      *filestore.OS
	templates  *templatestore.Dir
	engine     *reconcile.Engine
	closers    []io.Closer
}

// exitError ends the process with code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var errInvalid = &exitError{code: 1}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root, a := newRootCmd()
	err := root.Execute()
	a.close()
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}

	fmt.Fprintln(root.ErrOrStderr(), errors.Enhance(err, a.suggestionContext(root.Context())))
	return 1
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{viper: viper.New()}

	root := &cobra.Command{
		Use:   "scaffold",
		Short: "Create, validate and repair projects built from templates",
		Long: `Scaffold creates projects from reusable templates of folders and files with
{{variable}} placeholders, keeps a manifest of what was applied, and later
checks the project against those templates and repairs what drifted.

Quick Start:
  scaffold templates list                       List available templates
  scaffold create shop -t web --var app="Shop"  Create ./shop from the web template
  scaffold validate                             Check the project you are in
  scaffold fix --dry-run                        Show what fix would restore
  scaffold watch                                Revalidate on every change`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is .scaffold.yml, can also use SCAFFOLD_CONFIG_FILE env var)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringP("output", "o", "", "output format (text, json, yaml)")
	flags.StringSlice("templates", nil, "template search directories")
	flags.Bool("no-color", false, "disable colored output")

	_ = a.viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.viper.BindPFlag("output.format", flags.Lookup("output"))
	_ = a.viper.BindPFlag("templates.paths", flags.Lookup("templates"))

	root.AddCommand(
		newCreateCmd(a),
		newExtendCmd(a),
		newRemoveCmd(a),
		newValidateCmd(a),
		newFixCmd(a),
		newWatchCmd(a),
		newTemplatesCmd(a),
		newVarsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return root, a
}

// setup loads configuration and wires the engine. It runs before every
// subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	used, err := config.InitViper(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.configFile = used

	cfg, err := config.LoadViper(a.viper)
	if err != nil {
		return err
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.Output.Color = false
	}
	a.cfg = cfg

	logger, err := a.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	a.files = filestore.NewOS()
	a.templates = templatestore.NewDir(a.files, cfg.Templates.Paths...)
	a.engine = reconcile.New(a.templates, a.files,
		reconcile.WithLogger(logger),
		reconcile.WithSubstitution(cfg.SubstitutionOptions()),
		reconcile.WithSearchDepth(cfg.Validation.SearchDepth),
	)

	if used != "" {
		logger.Debug(cmd.Context(), "using config file", "path", used)
	}
	return nil
}

func (a *app) newLogger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	console := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: a.cfg.Log.Format,
		Output: w,
	})
	if a.cfg.Log.Dir == "" {
		return console, nil
	}

	file, err := logging.NewFileLogger(&logging.LoggerConfig{Level: level}, a.cfg.Log.Dir)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot open log directory")
	}
	a.closers = append(a.closers, file)
	return logging.NewMultiLogger(console, file), nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

// suggestionContext feeds error hints; it tolerates a half-initialized app.
func (a *app) suggestionContext(ctx context.Context) *errors.SuggestionContext {
	sc := &errors.SuggestionContext{ConfigPath: a.configFile}
	if wd, err := os.Getwd(); err == nil {
		sc.ProjectDir = wd
	}
	if a.templates != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if keys, err := a.templates.Keys(ctx); err == nil {
			sc.Templates = keys
		}
	}
	return sc
}
