// Package config provides centralized configuration management for the
// OpenMint daemon, loading a single JSON or YAML file and layering sensible
// defaults on top. Secrets such as bot tokens and wallet keys are referenced
// by environment variable name so they never land in the file itself.
package config
