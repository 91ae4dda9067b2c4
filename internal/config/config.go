// Package config provides configuration management for scaffold using Viper
// for loading from files, environment variables and command-line flags.
//
// Configuration is read from .scaffold.yml (or the file named by --config or
// SCAFFOLD_CONFIG_FILE), with SCAFFOLD_ prefixed environment overrides such
// as SCAFFOLD_SUBSTITUTION_MAX_DEPTH. It covers the substitution engine,
// manifest discovery, template search paths, report output, watch mode and
// logging.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/substitution"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SCAFFOLD"
	// FileName is the config file searched for without extension.
	FileName = ".scaffold"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = "SCAFFOLD_CONFIG_FILE"
)

type Config struct {
	Substitution SubstitutionConfig `mapstructure:"substitution" yaml:"substitution" json:"substitution"`
	Validation   ValidationConfig   `mapstructure:"validation" yaml:"validation" json:"validation"`
	Templates    TemplatesConfig    `mapstructure:"templates" yaml:"templates" json:"templates"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output" json:"output"`
	Watch        WatchConfig        `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log          LogConfig          `mapstructure:"log" yaml:"log" json:"log"`
}

type SubstitutionConfig struct {
	MaxDepth        int  `mapstructure:"max_depth" yaml:"max_depth" json:"max_depth"`
	ThrowOnMissing  bool `mapstructure:"throw_on_missing" yaml:"throw_on_missing" json:"throw_on_missing"`
	AllowCircular   bool `mapstructure:"allow_circular" yaml:"allow_circular" json:"allow_circular"`
	PreserveEscapes bool `mapstructure:"preserve_escapes" yaml:"preserve_escapes" json:"preserve_escapes"`
}

type ValidationConfig struct {
	// SearchDepth is how many parent directories are searched for a manifest
	SearchDepth int `mapstructure:"search_depth" yaml:"search_depth" json:"search_depth"`
}

type TemplatesConfig struct {
	// Paths are template search directories; earlier entries win
	Paths []string `mapstructure:"paths" yaml:"paths" json:"paths"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Color  bool   `mapstructure:"color" yaml:"color" json:"color"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	// Dir, when set, also writes daily JSON log files there
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// Defaults used when a value is not configured.
const (
	DefaultMaxDepth    = 10
	DefaultSearchDepth = 20
	DefaultFormat      = "text"
	DefaultDebounce    = 300 * time.Millisecond
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "console"
)

// DefaultTemplatePaths returns ./templates followed by the per-user
// template directory.
func DefaultTemplatePaths() []string {
	paths := []string{"./templates"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName, "templates"))
	}
	return paths
}

// InitViper points v at the config file and enables environment overrides.
// An explicit file wins over SCAFFOLD_CONFIG_FILE, which wins over
// .scaffold.yml in the working directory. It returns the file used, or ""
// when none was read.
func InitViper(v *viper.Viper, file string) (string, error) {
	switch {
	case file != "":
		v.SetConfigFile(file)
	case os.Getenv(EnvConfigFile) != "":
		v.SetConfigFile(os.Getenv(EnvConfigFile))
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && file == "" {
			return "", nil
		}
		return "", errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot read config file")
	}
	return v.ConfigFileUsed(), nil
}

// bindEnv registers every key so AutomaticEnv overrides reach Unmarshal
// even when the key appears in no config file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"substitution.max_depth",
		"substitution.throw_on_missing",
		"substitution.allow_circular",
		"substitution.preserve_escapes",
		"validation.search_depth",
		"templates.paths",
		"output.format",
		"output.color",
		"watch.debounce",
		"watch.ignore",
		"log.level",
		"log.format",
		"log.dir",
	} {
		_ = v.BindEnv(key)
	}
}

// LoadViper unmarshals v, fills defaults and validates the result.
func LoadViper(v *viper.Viper) (*Config, error) {
	config, err := DecodeViper(v)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// DecodeViper unmarshals v and fills defaults without validating, for
// callers that report every problem through ValidateConfigWithDetails.
func DecodeViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot decode configuration")
	}

	// env overrides arrive as strings
	if v.IsSet("templates.paths") && len(config.Templates.Paths) <= 1 {
		config.Templates.Paths = splitList(v.GetStringSlice("templates.paths"))
	}
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) <= 1 {
		config.Watch.Ignore = splitList(v.GetStringSlice("watch.ignore"))
	}

	if config.Substitution.MaxDepth == 0 {
		config.Substitution.MaxDepth = DefaultMaxDepth
	}
	if config.Validation.SearchDepth == 0 {
		config.Validation.SearchDepth = DefaultSearchDepth
	}
	if len(config.Templates.Paths) == 0 {
		config.Templates.Paths = DefaultTemplatePaths()
	}
	if config.Output.Format == "" {
		config.Output.Format = DefaultFormat
	}
	if !v.IsSet("output.color") {
		config.Output.Color = true
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}

	return &config, nil
}

// SubstitutionOptions converts the substitution section into engine options.
func (c *Config) SubstitutionOptions() substitution.Options {
	opts := substitution.DefaultOptions()
	opts.MaxDepth = c.Substitution.MaxDepth
	opts.ThrowOnMissing = c.Substitution.ThrowOnMissing
	opts.AllowCircular = c.Substitution.AllowCircular
	opts.PreserveEscapes = c.Substitution.PreserveEscapes
	return opts
}

// validateConfig returns the first error of ValidateConfigWithDetails.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return errors.ConfigurationError(first.Field, first.Message, first.Value).
		WithContext("suggestions", first.Suggestions)
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
