// Package config loads the lab report server configuration from the environment
// and an optional YAML file, and validates it before use.
package config
