// Package startup handles process initialization: configuration loading
// via viper (config file plus CURATOR_* environment overrides), directory
// validation, tool availability checks, build information and the
// structured startup and shutdown log output.
package startup
