package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/pwgen/internal/pipeline"
	"github.com/kalambet/pwgen/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"job not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func sampleRun() *pipeline.Run {
	run := pipeline.NewRun("https://example.com", 2, "")
	run.ID = "0123456789abcdef"
	run.StartedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	run.Discovered = []string{"https://example.com/login", "https://example.com/broken"}
	run.Jobs["https://example.com/login"] = &pipeline.Job{
		Target:       "https://example.com/login",
		Identifier:   "Login",
		PrimaryRef:   "out/poms/Login.py",
		SecondaryRef: "out/tests/login.spec.ts",
		Errors:       []string{},
		Repair:       pipeline.RepairHealed,
	}
	run.Jobs["https://example.com/broken"] = &pipeline.Job{
		Target:     "https://example.com/broken",
		Identifier: "Broken",
		Errors:     []string{"parse error: unexpected end of JSON input"},
		Repair:     pipeline.RepairNotAttempted,
	}
	run.Summary = pipeline.Summarize(run)
	return run
}

func TestSubmit_PostsRun(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /runs": `{"job_id":"job-123","status":"queued"}`,
	})

	resp, err := ts.client().post(ctx, "/runs", map[string]any{"url": "https://example.com", "limit": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["job_id"] != "job-123" {
		t.Errorf("job_id = %q", result["job_id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/runs" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["url"] != "https://example.com" || body["limit"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestJob_Get(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /jobs/job-1": `{"id":"job-1","type":"generate_run","status":"completed","attempts":0,"max_attempts":3,"result_id":"run-9"}`,
	})

	resp, err := ts.client().get(ctx, "/jobs/job-1")
	if err != nil {
		t.Fatal(err)
	}
	var job storage.Job
	if err := decodeJSON(resp, &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != "completed" || job.ResultID != "run-9" {
		t.Errorf("job = %+v", job)
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server returned 404: job not found" {
		t.Errorf("err = %q", err.Error())
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", token: "x", httpClient: &http.Client{Timeout: time.Second}}
	_, err := c.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "pwgen serve") {
		t.Errorf("err = %v", err)
	}
}

func TestWriteRun_Text(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	var buf bytes.Buffer
	if err := writeRun(&buf, sampleRun(), formatText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Run 0123456789abcdef",
		"Total: 2  Successful: 1  Failed: 1  Healed: 1",
		"✓ https://example.com/login",
		"page object: out/poms/Login.py",
		"repaired",
		"✗ https://example.com/broken",
		"errors: parse error: unexpected end of JSON input",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "/login") > strings.Index(out, "/broken") {
		t.Error("jobs should be listed in discovery order")
	}
}

func TestWriteRun_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRun(&buf, sampleRun(), formatJSON); err != nil {
		t.Fatal(err)
	}
	var got runReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got.Total != 2 || got.Failed != 1 || len(got.Jobs) != 2 || got.Jobs[0].Identifier != "Login" {
		t.Errorf("report = %+v", got)
	}
}

func TestWriteRun_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRun(&buf, sampleRun(), formatYAML); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "base_target: https://example.com") {
		t.Errorf("yaml = %s", buf.String())
	}
	var got runReport
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got.ID != "0123456789abcdef" || got.Healed != 1 || got.Jobs[1].Repair != "not_attempted" {
		t.Errorf("report = %+v", got)
	}
}

func TestWriteRun_UnknownFormat(t *testing.T) {
	if err := writeRun(&bytes.Buffer{}, sampleRun(), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestShouldOpenUI(t *testing.T) {
	if !shouldOpenUI(sampleRun()) {
		t.Error("expected UI for a run with a successful page")
	}
	empty := pipeline.NewRun("https://example.com", 1, "")
	empty.Summary = pipeline.Summarize(empty)
	if shouldOpenUI(empty) {
		t.Error("expected no UI for an empty run")
	}
}

func TestFormatRunSummary(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	run := sampleRun()
	line := formatRunSummary(storage.RunSummary{
		ID:         run.ID,
		BaseTarget: run.BaseTarget,
		Summary:    run.Summary,
		StartedAt:  run.StartedAt,
	})
	if !strings.HasPrefix(line, "01234567  ") || !strings.HasSuffix(line, "https://example.com  1/2 ok") {
		t.Errorf("line = %q", line)
	}
}

func TestSetupLogging(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)

	setupLogging("debug")
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled")
	}
	setupLogging("WARN")
	if slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled at warn")
	}
	setupLogging("nonsense")
	if !slog.Default().Enabled(ctx, slog.LevelInfo) || slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("unknown level should fall back to info")
	}
}

func TestRunCommand_Args(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"run"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestRunCommand_BadOutput(t *testing.T) {
	defer rootCmd.SetArgs(nil)
	defer runCmd.Flags().Set("output", formatText)

	rootCmd.SetArgs([]string{"run", "https://example.com", "--output", "xml"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Fatalf("err = %v", err)
	}
}
