// Package configs provides embedded configuration templates for photoidx.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//   - Homebrew installations
//
// The templates are used by:
//   - cmd/photoidx/cmd/init.go → creates .photoindex.yaml in an index root
//   - cmd/photoidx/cmd/init.go (`config init`) → creates user config at ~/.config/photoidx/config.yaml
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go New())
//   2. User config (~/.config/photoidx/config.yaml)
//   3. Project config ({root}/.photoindex.yaml)
//   4. Environment variables (PHOTOIDX_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for machine-level configuration.
// Created by: `photoidx config init` at ~/.config/photoidx/config.yaml
// Contains: embedder backend selection, model directory, decode worker tuning.
// Use case: settings that apply to every index root on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for per-root configuration.
// Created by: `photoidx init` at {root}/.photoindex.yaml
// Contains: fusion weights, default top-K, ANN backend hint, exclusions.
// Use case: settings that travel with a specific photo collection.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
