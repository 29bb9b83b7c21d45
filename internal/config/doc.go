// Package config loads, normalizes, and validates the TOML configuration
// shared by every clipsight command.
package config
