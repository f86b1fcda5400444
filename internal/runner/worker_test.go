package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/pwgen/internal/pipeline"
	"github.com/kalambet/pwgen/internal/storage"
)

type mockExecutor struct {
	mu        sync.Mutex
	calls     []Payload
	executeFn func(base string, limit int, hints string) *pipeline.Run
}

func (m *mockExecutor) Execute(_ context.Context, base string, limit int, hints string) *pipeline.Run {
	m.mu.Lock()
	m.calls = append(m.calls, Payload{URL: base, Limit: limit, Hints: hints})
	m.mu.Unlock()
	if m.executeFn != nil {
		return m.executeFn(base, limit, hints)
	}
	run := pipeline.NewRun(base, limit, hints)
	run.ID = "run-1"
	run.Discovered = []string{base + "/a"}
	run.Jobs[base+"/a"] = &pipeline.Job{Target: base + "/a", Errors: []string{}}
	return run
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueTestJob(t *testing.T, store *storage.Store, p Payload) storage.Job {
	t.Helper()
	job, err := NewJob(p)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	return job
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(Payload{URL: "https://example.com", Limit: 5, Hints: "log in"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.Type != JobType || job.ID == "" {
		t.Errorf("job = %+v", job)
	}
	var p Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.URL != "https://example.com" || p.Limit != 5 || p.Hints != "log in" {
		t.Errorf("payload = %+v", p)
	}

	if _, err := NewJob(Payload{URL: "  "}); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	exec := &mockExecutor{}
	job := enqueueTestJob(t, store, Payload{URL: "https://example.com", Limit: 3, Hints: "h"})

	w := NewWorker(store, exec, 10*time.Millisecond)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}

	if len(exec.calls) != 1 || exec.calls[0] != (Payload{URL: "https://example.com", Limit: 3, Hints: "h"}) {
		t.Errorf("calls = %+v", exec.calls)
	}
	got, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" || got.ResultID != "run-1" {
		t.Errorf("job = %+v", got)
	}
}

func TestWorker_NoJob(t *testing.T) {
	w := NewWorker(openTestStore(t), &mockExecutor{}, 0)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("expected no job")
	}
}

func TestWorker_CrawlFailureRetried(t *testing.T) {
	store := openTestStore(t)
	exec := &mockExecutor{executeFn: func(base string, limit int, hints string) *pipeline.Run {
		run := pipeline.NewRun(base, limit, hints)
		run.ID = "run-failed"
		run.RunErrors = []string{"crawl error: connection refused"}
		return run
	}}
	job := enqueueTestJob(t, store, Payload{URL: "https://example.com"})

	w := NewWorker(store, exec, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "pending" || got.Attempts != 1 {
		t.Errorf("Status = %q, Attempts = %d, want pending, 1", got.Status, got.Attempts)
	}
	if got.LastError == "" {
		t.Error("LastError should be set")
	}
}

func TestWorker_RetriedRunIsNotKept(t *testing.T) {
	store := openTestStore(t)
	exec := &mockExecutor{executeFn: func(base string, limit int, hints string) *pipeline.Run {
		run := pipeline.NewRun(base, limit, hints)
		run.ID = "run-" + strings.TrimPrefix(base, "https://")
		run.RunErrors = []string{"crawl error: connection refused"}
		run.Summary = pipeline.Summarize(run)
		if err := store.SaveRun(context.Background(), run); err != nil {
			t.Errorf("SaveRun: %v", err)
		}
		return run
	}}
	w := NewWorker(store, exec, 0)
	ctx := context.Background()

	if err := store.EnqueueJob(storage.Job{ID: "retried", Type: JobType, PayloadJSON: `{"url":"https://retried.test"}`, MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got, _ := store.GetJob("retried"); got.Status != "pending" {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if _, err := store.GetRun(ctx, "run-retried.test"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("run of an attempt that will be retried should be discarded, err = %v", err)
	}

	if err := store.EnqueueJob(storage.Job{ID: "last", Type: JobType, PayloadJSON: `{"url":"https://last.test"}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got, _ := store.GetJob("last"); got.Status != "failed" {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if _, err := store.GetRun(ctx, "run-last.test"); err != nil {
		t.Errorf("run of the final attempt should be kept: %v", err)
	}
	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("stored runs = %d, want 1", len(runs))
	}
}

func TestWorker_BadPayload(t *testing.T) {
	store := openTestStore(t)
	if err := store.EnqueueJob(storage.Job{ID: "bad", Type: JobType, PayloadJSON: `{not json`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	exec := &mockExecutor{}

	if _, err := NewWorker(store, exec, 0).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Error("executor should not run for a bad payload")
	}
	got, _ := store.GetJob("bad")
	if got.Status != "failed" {
		t.Errorf("Status = %q, want failed", got.Status)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	exec := &mockExecutor{}
	enqueueTestJob(t, store, Payload{URL: "https://example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		NewWorker(store, exec, 5*time.Millisecond).Run(ctx)
		close(finished)
	}()

	deadline := time.After(2 * time.Second)
	for {
		exec.mu.Lock()
		n := len(exec.calls)
		exec.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
