// Package config handles loading and parsing of configuration from YAML
// files and environment variables. It defines the daemon configuration
// structure: monitoring intervals, health thresholds, fetch behavior,
// registry and tracker locations, cache path, and logging.
package config
