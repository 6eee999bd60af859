// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/clock"
)

func openTestRecorder(t *testing.T, maxBytes int64) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	recorder, err := Open(path, maxBytes, clock.Fake(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { recorder.Close() })
	return recorder, path
}

func TestRecordAppendsOneLinePerEvent(t *testing.T) {
	recorder, path := openTestRecorder(t, 0)

	for _, status := range []Status{StatusAttempted, StatusSucceeded} {
		if err := recorder.Record(Event{Action: "command", Status: status}); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			t.Errorf("line is not a JSON object: %s", line)
		}
	}
}

func TestRecordFillsTimestampAndID(t *testing.T) {
	recorder, path := openTestRecorder(t, 0)
	if err := recorder.Record(Event{Action: "read_file", Status: StatusBlocked, Reason: "path_outside_roots"}); err != nil {
		t.Fatal(err)
	}

	events, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	event := events[0]
	if event.ID == "" {
		t.Error("event ID not assigned")
	}
	if !event.Timestamp.Equal(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v, want injected clock time", event.Timestamp)
	}
	if event.Reason != "path_outside_roots" {
		t.Errorf("reason = %q", event.Reason)
	}
}

func TestTailReturnsLastN(t *testing.T) {
	recorder, path := openTestRecorder(t, 0)
	for i := 0; i < 5; i++ {
		if err := recorder.Record(Event{Action: "command", Status: StatusSucceeded, Correlation: NewCorrelation()}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	events, err := Tail(filepath.Join(t.TempDir(), "absent.jsonl"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestTailSkipsTornLine(t *testing.T) {
	recorder, path := openTestRecorder(t, 0)
	if err := recorder.Record(Event{Action: "command", Status: StatusSucceeded}); err != nil {
		t.Fatal(err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := file.WriteString(`{"timestamp": "2026-`); err != nil {
		t.Fatal(err)
	}
	file.Close()

	events, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (torn line skipped)", len(events))
	}
}

func TestRotationArchivesAndTruncates(t *testing.T) {
	recorder, path := openTestRecorder(t, 300)

	// Enough events to exceed the byte ceiling at least once.
	for i := 0; i < 10; i++ {
		err := recorder.Record(Event{
			Action:  "write_file",
			Status:  StatusSucceeded,
			Payload: map[string]any{"path": "/workspace/out.txt", "content_bytes": 4096},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	archives, err := filepath.Glob(path + ".*.zst")
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) == 0 {
		t.Fatal("no rotation archive produced")
	}

	// Archive decompresses to valid JSONL.
	file, err := os.Open(archives[0])
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	decoder, err := zstd.NewReader(file)
	if err != nil {
		t.Fatal(err)
	}
	defer decoder.Close()
	content, err := io.ReadAll(decoder)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `"write_file"`) {
		t.Error("archive missing recorded events")
	}

	// The live file stays under the ceiling after rotation.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > 300 {
		t.Errorf("live file is %d bytes after rotation, want <= 300", info.Size())
	}
}

func TestRedactWritePayloadHidesContent(t *testing.T) {
	secret := []byte("api_key=hunter2")
	payload := RedactPayload(action.NewWriteFile("/workspace/.env", secret))

	if payload["content_bytes"] != len(secret) {
		t.Errorf("content_bytes = %v, want %d", payload["content_bytes"], len(secret))
	}
	digest, ok := payload["content_blake3"].(string)
	if !ok || len(digest) != 64 {
		t.Errorf("content_blake3 = %v, want 64 hex characters", payload["content_blake3"])
	}
	for _, value := range payload {
		if s, ok := value.(string); ok && strings.Contains(s, "hunter2") {
			t.Error("raw content leaked into audit payload")
		}
	}

	// The digest is a function of content: same bytes, same digest.
	again := RedactPayload(action.NewWriteFile("/elsewhere", secret))
	if again["content_blake3"] != payload["content_blake3"] {
		t.Error("digest differs for identical content")
	}
}

func TestRedactClipsLongTokens(t *testing.T) {
	long := strings.Repeat("a", 2000)
	payload := RedactPayload(action.NewCommand("echo", long))
	argv := payload["command"].([]string)
	if len(argv[1]) >= 2000 {
		t.Errorf("token not clipped: %d bytes", len(argv[1]))
	}
	if !strings.HasSuffix(argv[1], "...") {
		t.Error("clipped token missing ellipsis")
	}
}

func TestRedactPlanRecursion(t *testing.T) {
	plan := action.NewPlan(
		action.NewCommand("ls"),
		action.NewWriteFile("/workspace/a", []byte("x")),
	)
	payload := RedactPayload(plan)
	steps := payload["steps"].([]map[string]any)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if _, ok := steps[1]["content_blake3"]; !ok {
		t.Error("nested write step not redacted")
	}
}
