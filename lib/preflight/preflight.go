// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package preflight checks that the environment can actually support
// the configured policy: roots exist, allowlisted executables resolve,
// the audit file is appendable, the queue database opens. The doctor
// command prints its results.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/queue"
)

// CheckResult is one validation outcome.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	// Warning marks a passed check whose message still deserves
	// attention.
	Warning bool
}

// Validator accumulates check results.
type Validator struct {
	results []CheckResult
	errors  int
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Results returns all recorded results in check order.
func (v *Validator) Results() []CheckResult {
	return v.results
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: true, Message: message})
}

func (v *Validator) warn(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: false, Message: message})
	v.errors++
}

// ValidateAll runs every check against the configuration.
func (v *Validator) ValidateAll(cfg *config.Config) {
	v.ValidateConfig(cfg)
	v.ValidateRoots(cfg)
	v.ValidateExecutables(cfg)
	v.ValidateAuditFile(cfg)
	v.ValidateQueue(cfg)
}

// ValidateConfig checks structural config validity.
func (v *Validator) ValidateConfig(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		v.fail("config", err.Error())
		return
	}
	v.pass("config", fmt.Sprintf("%d allowed commands, %d denied, %d roots",
		len(cfg.AllowedCommands), len(cfg.DeniedCommands), len(cfg.AllowedRoots)))
}

// ValidateRoots checks that every allowed root exists and is a
// directory.
func (v *Validator) ValidateRoots(cfg *config.Config) {
	for _, root := range cfg.AllowedRoots {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			v.fail("roots", fmt.Sprintf("%s: %v", root, err))
		case !info.IsDir():
			v.fail("roots", fmt.Sprintf("%s is not a directory", root))
		default:
			v.pass("roots", root)
		}
	}
}

// ValidateExecutables checks that allowlisted commands resolve on
// PATH. A missing binary is a warning, not a failure: the allowlist
// may deliberately include tools not installed everywhere.
func (v *Validator) ValidateExecutables(cfg *config.Config) {
	missing := 0
	for _, name := range cfg.AllowedCommands {
		if _, err := exec.LookPath(name); err != nil {
			v.warn("executables", fmt.Sprintf("%s not found on PATH", name))
			missing++
		}
	}
	if missing == 0 {
		v.pass("executables", fmt.Sprintf("all %d allowlisted commands resolve", len(cfg.AllowedCommands)))
	}
}

// ValidateAuditFile checks that the audit file can be appended to.
func (v *Validator) ValidateAuditFile(cfg *config.Config) {
	if err := os.MkdirAll(filepath.Dir(absolute(cfg.AuditPath)), 0o755); err != nil {
		v.fail("audit", fmt.Sprintf("%s: %v", cfg.AuditPath, err))
		return
	}
	file, err := os.OpenFile(cfg.AuditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		v.fail("audit", fmt.Sprintf("%s: %v", cfg.AuditPath, err))
		return
	}
	file.Close()
	v.pass("audit", fmt.Sprintf("%s is appendable", cfg.AuditPath))
}

// ValidateQueue checks that the queue database opens and migrates.
func (v *Validator) ValidateQueue(cfg *config.Config) {
	store, err := queue.Open(cfg.QueuePath, nil, nil)
	if err != nil {
		v.fail("queue", fmt.Sprintf("%s: %v", cfg.QueuePath, err))
		return
	}
	store.Close()
	v.pass("queue", fmt.Sprintf("%s opens", cfg.QueuePath))
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
