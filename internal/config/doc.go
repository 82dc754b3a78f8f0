// Package config provides the configuration for minicrawler: built-in
// defaults, validation, the optional YAML config file, and XDG paths.
package config
