//go:build property
// +build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConfigValidationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports are valid exactly in 0-65535", prop.ForAll(
		func(port int) bool {
			cfg := Default()
			cfg.Server.Port = port
			valid := !hasErrorFor(ValidateConfigWithDetails(cfg), "server.port")
			return valid == (port >= 0 && port <= 65535)
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("debounce is valid exactly when positive", prop.ForAll(
		func(ms int64) bool {
			cfg := Default()
			cfg.Watch.Debounce = time.Duration(ms) * time.Millisecond
			valid := !hasErrorFor(ValidateConfigWithDetails(cfg), "watch.debounce")
			return valid == (ms > 0)
		},
		gen.Int64Range(-100, 1000),
	))

	properties.Property("paths escaping the project are rejected", prop.ForAll(
		func(depth int, name string) bool {
			cfg := Default()
			cfg.Paths.Output = strings.Repeat("../", depth) + "out" + name
			return hasErrorFor(ValidateConfigWithDetails(cfg), "paths.output")
		},
		gen.IntRange(1, 5),
		gen.AlphaString(),
	))

	properties.Property("plain relative directories are accepted", prop.ForAll(
		func(name string) bool {
			cfg := Default()
			cfg.Paths.Output = "out" + name
			return ValidateConfigWithDetails(cfg).Valid
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func hasErrorFor(result *ValidationResult, field string) bool {
	for _, err := range result.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
