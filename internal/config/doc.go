// Package config loads, normalizes, and validates the TOML configuration
// shared by the daemon and CLI. Validation happens once at load time; the
// rest of the codebase treats Config as immutable.
package config
