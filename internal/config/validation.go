package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/sitepipe/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validatePathsConfigDetails(&config.Paths, result)
	validateServerConfigDetails(&config.Server, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateBuildConfigDetails(&config.Build, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validatePathsConfigDetails(config *PathsConfig, result *ValidationResult) {
	for _, dir := range []struct {
		field, value string
	}{
		{"paths.source", config.Source},
		{"paths.output", config.Output},
	} {
		if err := validatePath(dir.value); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   dir.field,
				Value:   dir.value,
				Message: err.Error(),
				Suggestions: []string{
					"Use a relative directory inside the project, such as 'src' or 'dist'",
				},
			})
		}
	}

	if config.Source != "" && config.Output != "" {
		src, out := filepath.Clean(config.Source), filepath.Clean(config.Output)
		if src == out || strings.HasPrefix(src, out+string(filepath.Separator)) || out == "." {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "paths.output",
				Value:   config.Output,
				Message: "output directory must not contain the source directory",
				Suggestions: []string{
					"The output directory is removed by the clean step",
					"Use separate directories, for example 'src' and 'dist'",
				},
			})
		}
	}

	for _, dir := range []struct {
		field, value string
	}{
		{"paths.layouts", config.Layouts},
		{"paths.partials", config.Partials},
		{"paths.data", config.Data},
	} {
		if dir.value == "" {
			continue
		}
		if err := validatePath(dir.value); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   dir.field,
				Value:   dir.value,
				Message: err.Error(),
				Suggestions: []string{
					"Directories are relative to paths.source",
				},
			})
		}
	}

	for _, lib := range config.VendorLibs {
		if _, err := os.Stat(lib); err != nil {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "paths.vendor_libs",
				Value:   lib,
				Message: fmt.Sprintf("vendor script %s not found", lib),
				Suggestions: []string{
					"Install front-end dependencies before building",
				},
			})
		}
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
				"Common development ports: 3000, 8080, 8000, 3001",
				"Port 0 allows system to assign an available port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
			Suggestions: []string{
				"Consider using a port above 1024 for development",
			},
		})
	}

	if err := validateHostname(config.Host); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.host",
			Value:   config.Host,
			Message: err.Error(),
			Suggestions: []string{
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces",
			},
		})
	} else if config.Host == "0.0.0.0" || config.Host == "::" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.host",
			Value:   config.Host,
			Message: "development server is reachable from other machines",
		})
	}

	for _, origin := range config.AllowedOrigins {
		if strings.TrimSpace(origin) == "" || strings.ContainsAny(origin, " \t\n") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.allowed_origins",
				Value:   origin,
				Message: fmt.Sprintf("invalid origin %q", origin),
				Suggestions: []string{
					"Use a host such as 'preview.local:8080' or an origin such as 'https://preview.local'",
				},
			})
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "debounce must be positive",
			Suggestions: []string{
				"The default of 100ms coalesces editor save bursts",
			},
		})
	}

	for _, dir := range config.Ignore {
		if dir == "" || strings.ContainsAny(dir, `/\`) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "watch.ignore",
				Value:   dir,
				Message: fmt.Sprintf("ignore entry %q must be a single directory name", dir),
			})
		}
	}
}

func validateBuildConfigDetails(config *BuildConfig, result *ValidationResult) {
	if config.Concurrency < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "build.concurrency",
			Value:   config.Concurrency,
			Message: "concurrency cannot be negative",
			Suggestions: []string{
				"Use 0 to run every step of a level at once",
			},
		})
	}

	if config.Variant != VariantDefault && config.Variant != VariantIcons {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "build.variant",
			Value:   config.Variant,
			Message: fmt.Sprintf("unknown variant %q", config.Variant),
			Suggestions: []string{
				"Available variants: " + VariantDefault + ", " + VariantIcons,
			},
		})
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.level",
			Value:   config.Level,
			Message: err.Error(),
			Suggestions: []string{
				"Available levels: debug, info, warn, error",
			},
		})
	}

	if config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
			Suggestions: []string{
				"Available formats: text, json",
			},
		})
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	for _, segment := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if segment == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// validateHostname validates a hostname or IP address
func validateHostname(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 || !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname %q", host)
	}
	return nil
}
