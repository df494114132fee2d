// Package config loads and validates Wonderback server configuration.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then WONDERBACK_* environment variable overrides. The server must start
// with zero configuration for local development, so every setting has a
// usable default and Load() is only required when a config file exists.
//
// Secrets (the pre-shared agent token, MQTT credentials, the InfluxDB token)
// should be supplied via environment variables, not committed to YAML.
package config
