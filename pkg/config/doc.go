// Package config loads poanet settings with viper. Defaults are overridden by
// an optional YAML file, then by POANET_* environment variables (dots and
// dashes become underscores, so runtime.poll-interval is
// POANET_RUNTIME_POLL_INTERVAL), then by explicitly set command-line flags.
package config
