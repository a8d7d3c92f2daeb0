// Package config provides configuration management for canvasflow.
//
// Configuration is loaded in three layers: built-in defaults, an
// optional YAML file, and environment variable overrides.
package config
