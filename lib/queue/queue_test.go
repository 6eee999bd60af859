// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/saferclaw/saferclaw/lib/action"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "jobs.sqlite"), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestEnqueueRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, action.NewCommand("echo", "hello"), 3)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != StatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", job.Attempts)
	}
	if job.Result != "" || job.LastError != "" {
		t.Errorf("fresh job carries result %q / error %q", job.Result, job.LastError)
	}

	queued, err := store.List(ctx, StatusQueued, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(queued) != 1 || queued[0].ID != job.ID {
		t.Fatalf("queued jobs = %+v, want the enqueued job", queued)
	}

	request, err := queued[0].Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if request.Kind != action.KindCommand || len(request.Argv) != 2 || request.Argv[1] != "hello" {
		t.Errorf("decoded request = %+v", request)
	}
}

func TestClaimMovesOldestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, action.NewCommand("echo", "first"), 1)
	store.Enqueue(ctx, action.NewCommand("echo", "second"), 1)

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed.ID != first.ID {
		t.Errorf("claimed job %d, want oldest %d", claimed.ID, first.ID)
	}
	if claimed.Status != StatusRunning {
		t.Errorf("status = %s, want running", claimed.Status)
	}
	if claimed.ClaimedAt.IsZero() {
		t.Error("claimed job has zero claim timestamp")
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.ClaimNext(context.Background()); !errors.Is(err, ErrNoJob) {
		t.Fatalf("err = %v, want ErrNoJob", err)
	}
}

func TestClaimExclusivity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, action.NewCommand("echo", "contested"), 1); err != nil {
		t.Fatal(err)
	}

	const claimers = 8
	var waitGroup sync.WaitGroup
	wins := make(chan int64, claimers)
	failures := make(chan error, claimers)

	for i := 0; i < claimers; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			job, err := store.ClaimNext(ctx)
			switch {
			case err == nil:
				wins <- job.ID
			case errors.Is(err, ErrNoJob):
			default:
				failures <- err
			}
		}()
	}
	waitGroup.Wait()
	close(wins)
	close(failures)

	for err := range failures {
		t.Error(err)
	}
	if len(wins) != 1 {
		t.Errorf("%d claims succeeded, want exactly 1", len(wins))
	}
}

func TestRetrySequenceUntilFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, action.NewCommand("echo", "doomed"), 3)
	if err != nil {
		t.Fatal(err)
	}

	// queued → running → queued(1) → running → queued(2) → running → failed(3)
	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := store.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("attempt %d claim: %v", attempt, err)
		}
		if claimed.ID != job.ID {
			t.Fatalf("claimed job %d, want %d", claimed.ID, job.ID)
		}
		after, err := store.MarkFailed(ctx, job.ID, "exit status 1")
		if err != nil {
			t.Fatalf("attempt %d fail: %v", attempt, err)
		}
		if after.Attempts != attempt {
			t.Errorf("attempt %d: count = %d", attempt, after.Attempts)
		}
		want := StatusQueued
		if attempt == 3 {
			want = StatusFailed
		}
		if after.Status != want {
			t.Errorf("attempt %d: status = %s, want %s", attempt, after.Status, want)
		}
	}

	final, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.LastError != "exit status 1" {
		t.Errorf("last error = %q", final.LastError)
	}
	if final.FinishedAt.IsZero() {
		t.Error("failed job has zero finish timestamp")
	}
}

func TestMarkDoneRecordsResult(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, action.NewCommand("echo", "hello"), 1)
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDone(ctx, job.ID, `{"stdout":"hello\n"}`); err != nil {
		t.Fatal(err)
	}

	done, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusDone {
		t.Errorf("status = %s, want done", done.Status)
	}
	if done.Result == "" {
		t.Error("done job missing result")
	}
}

func TestBlockedIsTerminal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, action.NewCommand("rm", "-rf", "/"), 3)
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkBlocked(ctx, job.ID, "denylisted"); err != nil {
		t.Fatal(err)
	}

	blocked, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if blocked.Status != StatusBlocked {
		t.Errorf("status = %s, want blocked", blocked.Status)
	}

	// No further transitions.
	if _, err := store.MarkFailed(ctx, job.ID, "late failure"); !errors.Is(err, ErrTerminal) {
		t.Errorf("MarkFailed on blocked job: err = %v, want ErrTerminal", err)
	}
	if err := store.MarkDone(ctx, job.ID, ""); !errors.Is(err, ErrTerminal) {
		t.Errorf("MarkDone on blocked job: err = %v, want ErrTerminal", err)
	}

	// Blocked jobs are never claimable again.
	if _, err := store.ClaimNext(ctx); !errors.Is(err, ErrNoJob) {
		t.Errorf("ClaimNext after block: err = %v, want ErrNoJob", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTerminalJobsRemainListed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, action.NewReadFile("/workspace/notes.txt"), 1)
	store.ClaimNext(ctx)
	store.MarkDone(ctx, job.ID, "42 bytes")

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d jobs, want terminal job retained", len(all))
	}
}

func TestListHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		job, err := store.Enqueue(ctx, action.NewCommand("echo", "n"), 1)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}

	limited, err := store.List(ctx, StatusQueued, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 3 {
		t.Fatalf("got %d jobs, want 3", len(limited))
	}
	// Oldest first, same as claim order.
	for i, job := range limited {
		if job.ID != ids[i] {
			t.Errorf("job %d id = %d, want %d", i, job.ID, ids[i])
		}
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d jobs with no limit, want 5", len(all))
	}
}
