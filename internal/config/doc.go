// Package config loads, validates, and defaults the TOML configuration that
// drives a refinement run.
package config
