// Package config loads and validates Darkroom's TOML configuration.
//
// Configuration resolves from an explicit path, then
// ~/.config/darkroom/config.toml, then ./darkroom.toml, falling back to
// built-in defaults when no file exists. All path fields are expanded
// (~ resolution) and made absolute during Load so downstream code never
// deals with relative or home-anchored paths.
package config
