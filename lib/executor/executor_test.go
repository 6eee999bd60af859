// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/audit"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/policy"
)

// newTestExecutor builds an executor with a permissive test allowlist,
// an allowed root in a temp directory, and a real audit recorder.
func newTestExecutor(t *testing.T) (*Executor, string, string) {
	t.Helper()
	root := t.TempDir()
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")

	cfg := config.Default()
	cfg.Apply(config.Overrides{
		AllowedCommands: []string{"echo", "cat", "sleep", "false", "ghost-binary"},
		DeniedCommands:  []string{"rm"},
		AllowedRoots:    []string{root},
	})
	off := false
	cfg.Apply(config.Overrides{RequireConfirmation: &off})

	recorder, err := audit.Open(auditPath, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { recorder.Close() })

	return &Executor{Config: cfg, Recorder: recorder}, root, auditPath
}

// approve runs a request through the policy engine rooted at root and
// fails the test on denial.
func approve(t *testing.T, e *Executor, root string, request action.Request) policy.Result {
	t.Helper()
	decision := policy.EvaluateIn(request, e.Config, root)
	if !decision.Allowed() {
		t.Fatalf("request denied: %s", decision.Detail)
	}
	return decision
}

func TestEchoHelloSucceeds(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	request := action.NewCommand("echo", "hello")

	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("echo failed: %s / %s", result.Failure, result.Detail)
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Errorf("stdout = %q, want hello", result.Stdout)
	}
	if strings.Contains(result.Stdout, TruncationMarker) {
		t.Error("unexpected truncation marker")
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
}

func TestOutputTruncatedWithMarker(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	small := 16
	e.Config.Apply(config.Overrides{MaxOutputBytes: &small})

	request := action.NewCommand("echo", strings.Repeat("x", 200))
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Truncated {
		t.Fatal("result not marked truncated")
	}
	if !strings.HasSuffix(result.Stdout, TruncationMarker) {
		t.Errorf("stdout = %q, want truncation marker suffix", result.Stdout)
	}
	if len(result.Stdout) != small+len(TruncationMarker) {
		t.Errorf("stdout length = %d, want head of %d bytes plus marker", len(result.Stdout), small)
	}
}

func TestNonZeroExit(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	request := action.NewCommand("false")

	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("false reported success")
	}
	if result.Failure != FailureNonZeroExit {
		t.Errorf("failure = %s, want non_zero_exit", result.Failure)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", result.ExitCode)
	}
}

func TestSpawnFailureForMissingBinary(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	request := action.NewCommand("ghost-binary")

	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Failure != FailureSpawn {
		t.Errorf("failure = %s, want spawn_failure", result.Failure)
	}
}

func TestTimeoutKillsCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("timeout test sleeps for the full budget")
	}
	e, root, _ := newTestExecutor(t)
	e.Config.CommandTimeoutSeconds = 1

	request := action.NewCommand("sleep", "30")
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Failure != FailureTimeout {
		t.Errorf("failure = %s, want timeout", result.Failure)
	}
}

func TestWriteThenReadFile(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	path := filepath.Join(root, "nested", "dir", "out.txt")

	write := action.NewWriteFile(path, []byte("persisted"))
	result, err := e.Execute(context.Background(), write, approve(t, e, root, write))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("write failed: %s", result.Detail)
	}
	if result.BytesWritten != len("persisted") {
		t.Errorf("bytes written = %d", result.BytesWritten)
	}

	read := action.NewReadFile(path)
	result, err = e.Execute(context.Background(), read, approve(t, e, root, read))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || string(result.Content) != "persisted" {
		t.Errorf("read content = %q", result.Content)
	}
	if result.BytesRead != len("persisted") {
		t.Errorf("bytes read = %d", result.BytesRead)
	}
}

func TestReadTruncatesLargeFile(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	small := 8
	e.Config.Apply(config.Overrides{MaxOutputBytes: &small})

	path := filepath.Join(root, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("z", 100)), 0o644); err != nil {
		t.Fatal(err)
	}

	read := action.NewReadFile(path)
	result, err := e.Execute(context.Background(), read, approve(t, e, root, read))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Truncated {
		t.Fatal("large read not truncated")
	}
	if !strings.HasSuffix(string(result.Content), TruncationMarker) {
		t.Error("truncated content missing marker")
	}
	if result.BytesRead != small {
		t.Errorf("bytes read = %d, want %d", result.BytesRead, small)
	}
}

func TestWriteRevalidatesSymlinkTarget(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	outside := t.TempDir()

	// Validate a clean path, then swap a symlink into its parent
	// before execution.
	request := action.NewWriteFile(filepath.Join(root, "swapped", "inner.txt"), []byte("payload"))
	decision := approve(t, e, root, request)

	if err := os.Symlink(outside, filepath.Join(root, "swapped")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	// The target now resolves outside the roots; the pre-write
	// re-check must refuse.
	result := e.writeFile(request, decision)
	if result.Success {
		t.Fatal("write followed a symlink outside allowed roots")
	}
	if result.Failure != FailureIO {
		t.Errorf("failure = %s, want io_failure", result.Failure)
	}
	if _, err := os.Stat(filepath.Join(outside, "inner.txt")); !os.IsNotExist(err) {
		t.Error("write escaped through the swapped symlink")
	}
}

func TestRelativeWriteStaysInValidatedDirectory(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	// The path is relative; the decision resolves it against sub, not
	// against the process working directory.
	request := action.NewWriteFile("notes.txt", []byte("anchored"))
	decision := policy.EvaluateIn(request, e.Config, sub)
	if !decision.Allowed() {
		t.Fatalf("request denied: %s", decision.Detail)
	}
	expected, err := policy.Canonicalize(filepath.Join(sub, "notes.txt"), "")
	if err != nil {
		t.Fatal(err)
	}
	if decision.CanonicalPath != expected {
		t.Fatalf("canonical path = %s, want %s", decision.CanonicalPath, expected)
	}

	result, err := e.Execute(context.Background(), request, decision)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("write failed: %s / %s", result.Failure, result.Detail)
	}

	data, err := os.ReadFile(filepath.Join(sub, "notes.txt"))
	if err != nil {
		t.Fatalf("validated target not written: %v", err)
	}
	if string(data) != "anchored" {
		t.Errorf("content = %q, want anchored", data)
	}
	// Nothing may land where the process happens to run.
	if _, err := os.Stat("notes.txt"); !os.IsNotExist(err) {
		t.Error("write landed in the process working directory")
	}
}

func TestDryRunPerformsNothing(t *testing.T) {
	e, root, auditPath := newTestExecutor(t)
	e.DryRun = true

	path := filepath.Join(root, "never.txt")
	request := action.NewWriteFile(path, []byte("nope"))
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Fatal("dry run result not skipped")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("dry run created the file")
	}

	events, err := audit.Tail(auditPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[1].Status != audit.StatusSkipped {
		t.Errorf("audit events = %+v, want attempted then skipped", events)
	}
}

func TestConfirmationFailsClosed(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	e.Config.RequireConfirmation = true
	// No confirmer configured: the gate must refuse, not pass.

	path := filepath.Join(root, "never.txt")
	request := action.NewWriteFile(path, []byte("nope"))
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped || result.Failure != FailureDeclined {
		t.Errorf("result = %+v, want skipped/confirmation_declined", result)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("declined action created the file")
	}
}

func TestConfirmationDeclinedByAnswer(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	e.Config.RequireConfirmation = true
	e.Confirm = func(action.Request) (bool, error) { return false, nil }

	request := action.NewCommand("echo", "gated")
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped || result.Failure != FailureDeclined {
		t.Errorf("result = %+v, want skipped/confirmation_declined", result)
	}
}

func TestPreAuthorizationBypassesGate(t *testing.T) {
	e, root, _ := newTestExecutor(t)
	e.Config.RequireConfirmation = true
	e.PreAuthorized = true

	request := action.NewCommand("echo", "authorized")
	result, err := e.Execute(context.Background(), request, approve(t, e, root, request))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("pre-authorized action failed: %s", result.Detail)
	}
}

func TestExecutePanicsOnDenial(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	denial := policy.Evaluate(action.NewCommand("rm", "-rf", "/"), e.Config)
	if denial.Allowed() {
		t.Fatal("rm unexpectedly allowed")
	}

	defer func() {
		if recover() == nil {
			t.Error("Execute accepted a denied decision")
		}
	}()
	e.Execute(context.Background(), action.NewCommand("rm", "-rf", "/"), denial)
}

func TestPlanFailFast(t *testing.T) {
	e, root, auditPath := newTestExecutor(t)

	plan := action.NewPlan(
		action.NewCommand("echo", "one"),
		action.NewCommand("false"),
		action.NewCommand("echo", "three"),
	)
	result, err := e.Execute(context.Background(), plan, approve(t, e, root, plan))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("plan with failing step reported success")
	}
	if len(result.Steps) != 3 {
		t.Fatalf("got %d step results, want 3", len(result.Steps))
	}
	if !result.Steps[0].Success {
		t.Error("step 1 should succeed")
	}
	if result.Steps[1].Success || result.Steps[1].Failure != FailureNonZeroExit {
		t.Error("step 2 should fail with non_zero_exit")
	}
	if !result.Steps[2].Skipped {
		t.Error("step 3 should be skipped after the failure")
	}

	events, err := audit.Tail(auditPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	var skipped int
	for _, event := range events {
		if event.Status == audit.StatusSkipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("audit skipped events = %d, want 1", skipped)
	}
}

func TestAuditTrailForSingleAction(t *testing.T) {
	e, root, auditPath := newTestExecutor(t)

	request := action.NewCommand("echo", "audited")
	if _, err := e.Execute(context.Background(), request, approve(t, e, root, request)); err != nil {
		t.Fatal(err)
	}

	events, err := audit.Tail(auditPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want attempted + outcome", len(events))
	}
	if events[0].Status != audit.StatusAttempted || events[1].Status != audit.StatusSucceeded {
		t.Errorf("statuses = %s, %s", events[0].Status, events[1].Status)
	}
	if events[0].Correlation == "" || events[0].Correlation != events[1].Correlation {
		t.Error("attempted and outcome events not correlated")
	}
	if events[1].ExitCode == nil || *events[1].ExitCode != 0 {
		t.Error("outcome event missing exit code")
	}
}

func TestFilterEnvironment(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		"HOME=/home/u",
		"AWS_SECRET_ACCESS_KEY=shhh",
		"LANG=C.UTF-8",
	}
	filtered := filterEnvironment(environ, []string{"PATH", "HOME", "LANG"})
	if len(filtered) != 3 {
		t.Fatalf("filtered = %v", filtered)
	}
	for _, entry := range filtered {
		if strings.Contains(entry, "shhh") {
			t.Error("secret leaked through environment filter")
		}
	}

	// PATH fallback when stripped.
	fallback := filterEnvironment([]string{"PATH=/usr/bin"}, []string{"HOME"})
	if len(fallback) != 1 || !strings.HasPrefix(fallback[0], "PATH=") {
		t.Errorf("fallback = %v, want minimal PATH", fallback)
	}
}

func TestBoundedBufferHeadTruncation(t *testing.T) {
	buffer := &boundedBuffer{limit: 4}
	buffer.Write([]byte("abcdef"))
	buffer.Write([]byte("gh"))
	if got := buffer.String(); got != "abcd"+TruncationMarker {
		t.Errorf("buffer = %q", got)
	}
}
