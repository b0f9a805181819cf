// Package config provides configuration management for sitepipe using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// Configuration is read from .sitepipe.yml (or the file named by --config or
// SITEPIPE_CONFIG_FILE), with SITEPIPE_ prefixed environment variables
// overriding file values. It describes where sources and outputs live, the
// development server, the watch engine, the build and logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Variants of the pipeline.
const (
	VariantDefault = "default"
	VariantIcons   = "icons"
)

type Config struct {
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Watch  WatchConfig  `yaml:"watch" mapstructure:"watch"`
	Build  BuildConfig  `yaml:"build" mapstructure:"build"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type PathsConfig struct {
	Source   string `yaml:"source" mapstructure:"source"`
	Output   string `yaml:"output" mapstructure:"output"`
	Layouts  string `yaml:"layouts" mapstructure:"layouts"`
	Partials string `yaml:"partials" mapstructure:"partials"`
	Data     string `yaml:"data" mapstructure:"data"`
	// StyleInclude lists directories searched by stylesheet imports.
	StyleInclude []string `yaml:"style_include" mapstructure:"style_include"`
	// VendorLibs are concatenated into the libs script.
	VendorLibs []string `yaml:"vendor_libs" mapstructure:"vendor_libs"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	Open           bool     `yaml:"open" mapstructure:"open"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	// Ignore lists directory names under the source root that are not watched.
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

type BuildConfig struct {
	// Concurrency bounds the steps running at once; 0 means unbounded.
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Variant     string `yaml:"variant" mapstructure:"variant"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.source", "src")
	v.SetDefault("paths.output", "dist")
	v.SetDefault("paths.layouts", "layouts")
	v.SetDefault("paths.partials", "partials")
	v.SetDefault("paths.data", "data")
	v.SetDefault("paths.style_include", []string{"node_modules"})
	v.SetDefault("paths.vendor_libs", []string{})

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.open", false)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.debounce", "100ms")
	v.SetDefault("watch.ignore", []string{"node_modules", ".git"})

	v.SetDefault("build.concurrency", 0)
	v.SetDefault("build.variant", VariantDefault)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v. Missing
// values fall back to the defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "unable to decode configuration", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration", &first).
		WithContext("field", first.Field)
}
