// Package cmd provides the command-line interface for sitepipe with
// configuration drawn from several sources.
//
// Configuration System:
//
//	Sources are applied with this precedence:
//	1. Command-line flags (--config, --port, --log-level) - highest priority
//	2. SITEPIPE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SITEPIPE_SERVER_PORT, etc.)
//	4. Configuration files (.sitepipe.yml) - lowest priority
//
// Environment Variables:
//
//	SITEPIPE_CONFIG_FILE: Path to custom configuration file
//	SITEPIPE_SERVER_PORT: Override server port
//	SITEPIPE_BUILD_VARIANT: Select the pipeline variant
//	And every other key following the SITEPIPE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// configFileEnv names a config file when --config is not given.
const configFileEnv = "SITEPIPE_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Build static sites from a dependency-ordered asset pipeline",
	Long: `sitepipe renders pages, bundles stylesheets and scripts, optimizes images
and copies fonts into an output directory. Steps run as a dependency graph:
independent steps run concurrently and a failing step only stops the steps
that depend on it.

Quick Start:
  sitepipe build                  Build the whole site once
  sitepipe build css js           Build selected steps and what they need
  sitepipe watch                  Rebuild on change and serve with live reload
  sitepipe steps                  Show the step graph`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use "+configFileEnv+" env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	bindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// flagBindings maps configuration keys to the flags that override them.
var flagBindings = map[string]*pflag.Flag{}

func bindFlag(key string, flag *pflag.Flag) {
	flagBindings[key] = flag
	_ = viper.BindPFlag(key, flag)
}

// rebindFlags restores flag bindings after viper.Reset.
func rebindFlags() {
	for key, flag := range flagBindings {
		_ = viper.BindPFlag(key, flag)
	}
}

// initConfig points viper at the configuration file and the environment.
//
// File lookup order:
//  1. --config flag
//  2. SITEPIPE_CONFIG_FILE environment variable
//  3. .sitepipe.yml in the current directory
//
// A missing default file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(configFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepipe")
	}

	viper.SetEnvPrefix("SITEPIPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the structured logger described by the log section.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}
