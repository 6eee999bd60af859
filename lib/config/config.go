// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the safety configuration consumed by the policy
// engine, executor, and job queue.
//
// Resolution precedence is fixed: built-in defaults, then the config
// file, then explicit per-call overrides. Environment variables never
// override config values — this keeps the active policy deterministic
// and auditable.
//
// Config files are YAML. Files ending in .json or .jsonc may contain
// JSONC comments; they are stripped before parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the safety configuration. The core treats it as read-only:
// it is loaded once per invocation and passed by pointer into every
// policy and executor call. Nothing in the core mutates it.
type Config struct {
	// AllowedCommands is the executable-name allowlist. Names are
	// matched against the basename of argv[0], case-insensitively.
	AllowedCommands []string `yaml:"allowed_commands"`

	// DeniedCommands is the executable-name denylist. Denylist
	// membership always wins over allowlist membership.
	DeniedCommands []string `yaml:"denied_commands"`

	// AllowedRoots are the directories file operations and command
	// working directories must stay inside. Relative roots resolve
	// against the process working directory at load time.
	AllowedRoots []string `yaml:"allowed_roots"`

	// RequireConfirmation gates every allowed action behind a yes/no
	// prompt unless the caller pre-authorizes with --yes. A missing or
	// ambiguous answer counts as no.
	RequireConfirmation bool `yaml:"require_confirmation"`

	// CommandTimeoutSeconds is the hard wall-clock limit for a single
	// command. On expiry the process group is killed.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`

	// MaxOutputBytes caps captured stdout/stderr and file-read
	// content. Output beyond the cap is head-truncated with a marker.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// NetworkAccess permits network-touching executables (curl, ssh,
	// nc, ...). Off by default; when off, those executables are denied
	// even if allowlisted.
	NetworkAccess bool `yaml:"network_access"`

	// AllowedEnv lists the environment variable names passed through
	// to spawned commands. Everything else is stripped. PATH always
	// gets a minimal default if it is not listed.
	AllowedEnv []string `yaml:"allowed_env"`

	// MaxJobAttempts is the execution attempt budget for a queued job
	// before it is marked terminally failed.
	MaxJobAttempts int `yaml:"max_job_attempts"`

	// QueuePath is the SQLite database file backing the job queue.
	QueuePath string `yaml:"queue_path"`

	// AuditPath is the append-only JSONL audit file.
	AuditPath string `yaml:"audit_path"`

	// AuditMaxBytes rotates the audit file once it exceeds this size.
	// Zero disables rotation.
	AuditMaxBytes int64 `yaml:"audit_max_bytes"`
}

// Overrides carries explicit per-call settings, typically from CLI
// flags. Nil fields leave the loaded value untouched.
type Overrides struct {
	AllowedCommands     []string
	DeniedCommands      []string
	AllowedRoots        []string
	RequireConfirmation *bool
	CommandTimeout      *time.Duration
	MaxOutputBytes      *int
	NetworkAccess       *bool
	MaxJobAttempts      *int
	QueuePath           *string
	AuditPath           *string
}

// Default returns the built-in configuration: a small read-mostly
// allowlist, a denylist of shells, interpreters, and network tools,
// and the process working directory as the only allowed root.
func Default() *Config {
	workingDirectory, err := os.Getwd()
	if err != nil {
		workingDirectory = "."
	}
	return &Config{
		AllowedCommands: []string{"ls", "pwd", "find", "cat", "echo", "git"},
		DeniedCommands: []string{
			"curl", "wget", "ssh", "nc", "sudo",
			"rm", "rmdir", "bash", "sh", "python", "node", "deno",
		},
		AllowedRoots:          []string{workingDirectory},
		RequireConfirmation:   true,
		CommandTimeoutSeconds: 10,
		MaxOutputBytes:        12_000,
		NetworkAccess:         false,
		AllowedEnv:            []string{"PATH", "HOME", "LANG", "TZ"},
		MaxJobAttempts:        3,
		QueuePath:             ".saferclaw.jobs.sqlite",
		AuditPath:             ".saferclaw.audit.jsonl",
		AuditMaxBytes:         0,
	}
}

// Load reads the config file at path and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Apply merges explicit per-call overrides into the config. Overrides
// have the highest precedence.
func (c *Config) Apply(o Overrides) {
	if o.AllowedCommands != nil {
		c.AllowedCommands = o.AllowedCommands
	}
	if o.DeniedCommands != nil {
		c.DeniedCommands = o.DeniedCommands
	}
	if o.AllowedRoots != nil {
		c.AllowedRoots = o.AllowedRoots
	}
	if o.RequireConfirmation != nil {
		c.RequireConfirmation = *o.RequireConfirmation
	}
	if o.CommandTimeout != nil {
		c.CommandTimeoutSeconds = int(o.CommandTimeout.Seconds())
	}
	if o.MaxOutputBytes != nil {
		c.MaxOutputBytes = *o.MaxOutputBytes
	}
	if o.NetworkAccess != nil {
		c.NetworkAccess = *o.NetworkAccess
	}
	if o.MaxJobAttempts != nil {
		c.MaxJobAttempts = *o.MaxJobAttempts
	}
	if o.QueuePath != nil {
		c.QueuePath = *o.QueuePath
	}
	if o.AuditPath != nil {
		c.AuditPath = *o.AuditPath
	}
	c.normalize()
}

// normalize lowercases command names, drops empty entries, and makes
// allowed roots absolute relative to the process working directory.
// Symlink resolution happens later, in the policy engine, so a root
// that is replaced by a symlink between load and evaluation cannot
// widen the containment check.
func (c *Config) normalize() {
	c.AllowedCommands = normalizeNames(c.AllowedCommands)
	c.DeniedCommands = normalizeNames(c.DeniedCommands)

	roots := make([]string, 0, len(c.AllowedRoots))
	for _, root := range c.AllowedRoots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		if !filepath.IsAbs(root) {
			if abs, err := filepath.Abs(root); err == nil {
				root = abs
			}
		}
		roots = append(roots, filepath.Clean(root))
	}
	c.AllowedRoots = roots
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if len(c.AllowedRoots) == 0 {
		errs = append(errs, fmt.Errorf("allowed_roots must not be empty"))
	}
	if c.CommandTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("command_timeout_seconds must be positive"))
	}
	if c.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_output_bytes must be positive"))
	}
	if c.MaxJobAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_job_attempts must be at least 1"))
	}
	if c.QueuePath == "" {
		errs = append(errs, fmt.Errorf("queue_path is required"))
	}
	if c.AuditPath == "" {
		errs = append(errs, fmt.Errorf("audit_path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CommandTimeout returns the command timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// CommandAllowed reports allowlist membership for a normalized
// executable name.
func (c *Config) CommandAllowed(name string) bool {
	return containsName(c.AllowedCommands, name)
}

// CommandDenied reports denylist membership for a normalized
// executable name.
func (c *Config) CommandDenied(name string) bool {
	return containsName(c.DeniedCommands, name)
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}

// WriteDefault writes a commented default config file to path. Fails
// if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

const defaultTemplate = `# saferclaw configuration
#
# Precedence: built-in defaults < this file < explicit CLI flags.

# Executables that may run. Matched against the basename of argv[0].
allowed_commands: [ls, pwd, find, cat, echo, git]

# Executables that may never run. The denylist always wins over the
# allowlist.
denied_commands: [curl, wget, ssh, nc, sudo, rm, rmdir, bash, sh, python, node, deno]

# Directories file operations must stay inside. Relative paths resolve
# against the working directory where saferclaw runs.
allowed_roots: ["."]

# Ask before every action. Pass --yes to pre-authorize a run.
require_confirmation: true

command_timeout_seconds: 10
max_output_bytes: 12000

# Permit network-touching executables (curl, ssh, nc, ...).
network_access: false

# Environment variable names passed through to spawned commands.
allowed_env: [PATH, HOME, LANG, TZ]

# Job queue.
max_job_attempts: 3
queue_path: .saferclaw.jobs.sqlite

# Audit log. Set audit_max_bytes to rotate and compress old segments.
audit_path: .saferclaw.audit.jsonl
audit_max_bytes: 0
`
