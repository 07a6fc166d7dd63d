// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file, environment variables and command
// line flags. It also reads and writes the source list and whitelist files
// that describe a compilation run.
package config
