// Package configs provides embedded configuration templates for codeintel.
//
// Templates are embedded at build time via //go:embed so they ship inside
// the binary itself rather than depending on a separate install step.
//
// Used by `codeintel config init` (cmd/codeintel/cmd/config.go) to write
// a starting .codeintel.yaml or ~/.config/codeintel/config.yaml, following
// the same layering internal/config.Load reads back: hardcoded defaults,
// user config, project config, then CODEINTEL_* environment variables.
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/codeintel/config.yaml: settings that
// apply to every project on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds .codeintel.yaml in a project root: settings
// that are version-controlled with the project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
