// Package config loads, validates, and normalizes manifold's TOML
// configuration.
//
// Load resolves the config path (explicit flag, ~/.config/manifold, or a
// project-local manifold.toml), overlays the file onto Default(), expands
// home-relative paths, and validates the result so downstream packages can
// trust every field.
package config
