// Package config defines configuration structures for the heliodata CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (HELIODATA_ prefix)
//   - YAML configuration file
//
// Precedence is flags over environment over file over defaults; mission
// subcommands apply that order with Merge and fail fast with Validate
// before any remote call.
package config
