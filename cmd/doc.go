// # Available Commands
//
//   - build: run the whole pipeline, or named steps with their dependencies
//   - watch: build, then rebuild on change and serve with live reload
//   - steps: list registered steps, dependencies and levels
//   - version: print build information
//
// # Command Examples
//
//	// Full build with a JSON report
//	sitepipe build -o json
//
//	// Rebuild stylesheets only
//	sitepipe build css
//
//	// Development server on a custom port
//	sitepipe watch --port 8080 --open
//
//	// Inspect the icons variant
//	SITEPIPE_BUILD_VARIANT=icons sitepipe steps -o yaml
//
// # Exit Status
//
// build exits non-zero when any step failed or was skipped, after printing
// the report. watch only fails for configuration, graph, server or watcher
// errors; failed rebuilds are reported and watching continues.
package cmd
