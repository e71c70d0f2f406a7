// Package configs provides embedded starter templates for azmig.
//
// Templates are embedded at build time using Go's //go:embed directive,
// so they ship identically in source builds and binary releases.
//
// The templates are used by:
//   - cmd/azmig/cmd/init.go → writes azmig.yaml and plan.yaml starters
//
// Template files:
//   - config.example.yaml: validation settings (stage toggles, execution,
//     sessions, history)
//   - plan.example.yaml: a migration plan with one project and two machines
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults
//  2. User config (~/.config/azmig/config.yaml)
//  3. Project config (azmig.yaml)
//  4. Environment variables (AZMIG_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the starter project configuration.
// Created by `azmig init` as azmig.yaml in the working directory.
//
//go:embed config.example.yaml
var ConfigTemplate string

// PlanTemplate is the starter migration plan.
// Created by `azmig init` as plan.yaml in the working directory.
//
//go:embed plan.example.yaml
var PlanTemplate string
