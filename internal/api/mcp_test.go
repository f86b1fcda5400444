package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/pwgen/internal/pagemodel"
	"github.com/kalambet/pwgen/internal/pipeline"
)

// --- mocks ---

type mockCrawler struct {
	links []string
	err   error
}

func (m *mockCrawler) Crawl(_ context.Context, _ string) ([]string, error) {
	return m.links, m.err
}

type mockScanner struct {
	dom string
	err error
}

func (m *mockScanner) Scan(_ context.Context, _ string) (string, error) {
	return m.dom, m.err
}

type mockExtractor struct {
	page *pagemodel.Page
	err  error
}

func (m *mockExtractor) Extract(_ context.Context, _, _, _ string) (*pagemodel.Page, error) {
	return m.page, m.err
}

type mockPOM struct {
	gotName string
	gotPage *pagemodel.Page
	err     error
}

func (m *mockPOM) Generate(_ context.Context, name string, page *pagemodel.Page) (string, error) {
	m.gotName, m.gotPage = name, page
	if m.err != nil {
		return "", m.err
	}
	return "out/poms/" + name + ".py", nil
}

type mockVerifier struct {
	ok         bool
	diagnostic string
	err        error
}

func (m *mockVerifier) Verify(_ context.Context, _ string) (bool, string, error) {
	return m.ok, m.diagnostic, m.err
}

type mockRepairer struct {
	gotRef, gotDiagnostic string
	err                   error
}

func (m *mockRepairer) Repair(_ context.Context, ref, diagnostic string) error {
	m.gotRef, m.gotDiagnostic = ref, diagnostic
	return m.err
}

// --- helpers ---

func newTestMCPDeps() MCPDeps {
	return MCPDeps{
		Pipeline:  &mockExecutor{},
		Crawler:   &mockCrawler{},
		Scanner:   &mockScanner{dom: "<html></html>"},
		Extractor: &mockExtractor{page: &pagemodel.Page{URL: "https://example.com"}},
		POM:       &mockPOM{},
		Verifier:  &mockVerifier{ok: true},
		Repairer:  &mockRepairer{},
		OutputDir: "out",
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s returned Go error: %v", name, err)
	}
	return result
}

// --- tests ---

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps())

	msg := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshaling response: %v", err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	registered := make(map[string]bool)
	for _, tool := range resp.Result.Tools {
		registered[tool.Name] = true
	}
	for _, name := range []string{
		"generate_tests_full", "crawl_links", "scan_site", "extract_model",
		"generate_pom", "verify_pom", "repair_file", "quick_start",
	} {
		if !registered[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
	if len(registered) != 8 {
		t.Errorf("registered %d tools, want 8: %s", len(registered), raw)
	}
}

func TestMCPTool_GenerateTestsFull(t *testing.T) {
	deps := newTestMCPDeps()
	exec := deps.Pipeline.(*mockExecutor)

	result := callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{
		"url":       "https://example.com",
		"max_pages": 4,
		"stories":   "user logs in",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	if len(exec.calls) != 1 || exec.calls[0] != (execCall{"https://example.com", 4, "user logs in"}) {
		t.Fatalf("calls = %+v", exec.calls)
	}
	text := toolText(t, result)
	for _, want := range []string{"Pages processed: 1", "Successful: 1", "out/poms/", "out/tests/", "npx playwright test --ui"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestMCPTool_GenerateTestsFull_DefaultLimit(t *testing.T) {
	deps := newTestMCPDeps()
	exec := deps.Pipeline.(*mockExecutor)

	callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{"url": "https://example.com"})
	if exec.calls[0].limit != pipeline.DefaultLimit {
		t.Errorf("limit = %d, want %d", exec.calls[0].limit, pipeline.DefaultLimit)
	}
}

func TestMCPTool_GenerateTestsFull_MissingURL(t *testing.T) {
	deps := newTestMCPDeps()
	result := callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if len(deps.Pipeline.(*mockExecutor).calls) != 0 {
		t.Error("pipeline should not run without url")
	}
}

func TestMCPTool_GenerateTestsFull_NegativeMaxPages(t *testing.T) {
	deps := newTestMCPDeps()
	result := callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{
		"url":       "https://example.com",
		"max_pages": -1,
	})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "max_pages must not be negative") {
		t.Errorf("text = %s", toolText(t, result))
	}
	if len(deps.Pipeline.(*mockExecutor).calls) != 0 {
		t.Error("pipeline should not run with a negative max_pages")
	}
}

func TestMCPTool_GenerateTestsFull_CrawlFailure(t *testing.T) {
	deps := newTestMCPDeps()
	deps.Pipeline = &mockExecutor{run: func(base string, limit int, hints string) *pipeline.Run {
		run := pipeline.NewRun(base, limit, hints)
		run.RunErrors = []string{"crawl error: boom"}
		run.Summary = pipeline.Summarize(run)
		return run
	}}

	result := callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{"url": "https://example.com"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "crawl error: boom") {
		t.Errorf("text = %s", toolText(t, result))
	}
}

func TestMCPTool_GenerateTestsFull_ListsFailedJobs(t *testing.T) {
	deps := newTestMCPDeps()
	deps.Pipeline = &mockExecutor{run: func(base string, limit int, hints string) *pipeline.Run {
		run := pipeline.NewRun(base, limit, hints)
		run.Discovered = []string{base + "/x"}
		run.Jobs[base+"/x"] = &pipeline.Job{Target: base + "/x", Errors: []string{"parse error: bad"}}
		run.Summary = pipeline.Summarize(run)
		return run
	}}

	result := callTool(t, mcpGenerateTestsFull(deps), "generate_tests_full", map[string]interface{}{"url": "https://example.com"})
	if result.IsError {
		t.Fatal("failed jobs alone should not make an error result")
	}
	text := toolText(t, result)
	if !strings.Contains(text, "https://example.com/x: parse error: bad") || !strings.Contains(text, "Failed: 1") {
		t.Errorf("text = %s", text)
	}
}

func TestMCPTool_QuickStart(t *testing.T) {
	deps := newTestMCPDeps()
	exec := deps.Pipeline.(*mockExecutor)

	result := callTool(t, mcpQuickStart(deps), "quick_start", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if len(exec.calls) != 1 || exec.calls[0] != (execCall{QuickStartTarget, 2, ""}) {
		t.Fatalf("calls = %+v", exec.calls)
	}
	if !strings.HasPrefix(toolText(t, result), "Demo complete") {
		t.Errorf("text = %s", toolText(t, result))
	}
}

func TestMCPTool_CrawlLinks(t *testing.T) {
	var links []string
	for i := 0; i < 18; i++ {
		links = append(links, fmt.Sprintf("https://example.com/p%d", i))
	}
	deps := newTestMCPDeps()
	deps.Crawler = &mockCrawler{links: links}

	result := callTool(t, mcpCrawlLinks(deps), "crawl_links", map[string]interface{}{"base_url": "https://example.com"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.HasPrefix(text, "Found 18 links") {
		t.Errorf("text = %s", text)
	}
	if !strings.Contains(text, "• https://example.com/p14") || strings.Contains(text, "p15") {
		t.Errorf("expected the first 15 links only:\n%s", text)
	}
	if !strings.HasSuffix(text, "... and 3 more") {
		t.Errorf("text = %s", text)
	}
}

func TestFormatLinks_Short(t *testing.T) {
	got := formatLinks([]string{"https://a", "https://b"})
	want := "Found 2 links\n• https://a\n• https://b"
	if got != want {
		t.Errorf("formatLinks = %q, want %q", got, want)
	}
	if got := formatLinks(nil); got != "Found 0 links" {
		t.Errorf("formatLinks(nil) = %q", got)
	}
}

func TestMCPTool_CrawlLinks_Error(t *testing.T) {
	deps := newTestMCPDeps()
	deps.Crawler = &mockCrawler{err: errors.New("connection refused")}

	result := callTool(t, mcpCrawlLinks(deps), "crawl_links", map[string]interface{}{"base_url": "https://example.com"})
	if !result.IsError || !strings.Contains(toolText(t, result), "connection refused") {
		t.Fatalf("result = %+v", result)
	}
}

func TestMCPTool_ScanSite(t *testing.T) {
	deps := newTestMCPDeps()
	deps.Scanner = &mockScanner{dom: "<html>hello</html>"}

	result := callTool(t, mcpScanSite(deps), "scan_site", map[string]interface{}{"url": "https://example.com"})
	want := "Scanned https://example.com\nDOM extracted: 18 chars"
	if got := toolText(t, result); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestMCPTool_ExtractModel(t *testing.T) {
	deps := newTestMCPDeps()
	deps.Extractor = &mockExtractor{page: &pagemodel.Page{
		URL: "https://example.com/login",
		Elements: []pagemodel.Element{
			{Name: "username", Locator: pagemodel.Locator{Strategy: "label", Value: "Username"}, Actions: []string{"fill"}},
			{Name: "submit", Locator: pagemodel.Locator{Strategy: "role", Value: "button"}, Actions: []string{"click"}},
		},
	}}

	result := callTool(t, mcpExtractModel(deps), "extract_model", map[string]interface{}{
		"url":  "https://example.com/login",
		"name": "LoginPage",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.HasPrefix(text, "Extracted model for LoginPage\nElements: 2") {
		t.Errorf("text = %s", text)
	}
	if !strings.Contains(text, `"name": "username"`) {
		t.Errorf("model JSON missing from text:\n%s", text)
	}
}

func TestMCPTool_ExtractModel_Errors(t *testing.T) {
	deps := newTestMCPDeps()
	if r := callTool(t, mcpExtractModel(deps), "extract_model", map[string]interface{}{"url": "https://example.com"}); !r.IsError {
		t.Error("expected error without name")
	}

	deps.Extractor = &mockExtractor{err: errors.New("parse error: nope")}
	r := callTool(t, mcpExtractModel(deps), "extract_model", map[string]interface{}{"url": "https://example.com", "name": "X"})
	if !r.IsError || !strings.Contains(toolText(t, r), "parse error") {
		t.Errorf("result = %s", toolText(t, r))
	}
}

func TestMCPTool_GeneratePOM(t *testing.T) {
	tests := []struct {
		name  string
		model interface{}
	}{
		{"object", map[string]interface{}{
			"url": "https://example.com",
			"elements": []interface{}{
				map[string]interface{}{"name": "go", "locator": map[string]interface{}{"strategy": "text", "value": "Go"}},
			},
		}},
		{"string", `{"url":"https://example.com","elements":[{"name":"go","locator":{"strategy":"text","value":"Go"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestMCPDeps()
			pom := deps.POM.(*mockPOM)

			result := callTool(t, mcpGeneratePOM(deps), "generate_pom", map[string]interface{}{
				"name":  "HomePage",
				"model": tt.model,
			})
			if result.IsError {
				t.Fatalf("unexpected error: %s", toolText(t, result))
			}
			if got := toolText(t, result); got != "Generated POM: out/poms/HomePage.py" {
				t.Errorf("text = %q", got)
			}
			if pom.gotName != "HomePage" || len(pom.gotPage.Elements) != 1 || pom.gotPage.Elements[0].Locator.Value != "Go" {
				t.Errorf("generator got %q, %+v", pom.gotName, pom.gotPage)
			}
		})
	}
}

func TestMCPTool_GeneratePOM_BadModel(t *testing.T) {
	deps := newTestMCPDeps()
	for _, args := range []map[string]interface{}{
		{"name": "X"},
		{"name": "X", "model": "{not json"},
	} {
		if r := callTool(t, mcpGeneratePOM(deps), "generate_pom", args); !r.IsError {
			t.Errorf("args %v: expected error result", args)
		}
	}
}

func TestMCPTool_VerifyPOM(t *testing.T) {
	deps := newTestMCPDeps()
	r := callTool(t, mcpVerifyPOM(deps), "verify_pom", map[string]interface{}{"pom_path": "out/poms/A.py"})
	if got := toolText(t, r); got != "Valid: out/poms/A.py" {
		t.Errorf("text = %q", got)
	}

	deps.Verifier = &mockVerifier{ok: false, diagnostic: "syntax error: line 3"}
	r = callTool(t, mcpVerifyPOM(deps), "verify_pom", map[string]interface{}{"pom_path": "out/poms/A.py"})
	if r.IsError {
		t.Error("an invalid file is a result, not a tool error")
	}
	if got := toolText(t, r); got != "Invalid: out/poms/A.py\nsyntax error: line 3" {
		t.Errorf("text = %q", got)
	}

	deps.Verifier = &mockVerifier{err: context.Canceled}
	r = callTool(t, mcpVerifyPOM(deps), "verify_pom", map[string]interface{}{"pom_path": "out/poms/A.py"})
	if !r.IsError {
		t.Error("expected error result when the verifier cannot run")
	}
}

func TestMCPTool_RepairFile(t *testing.T) {
	deps := newTestMCPDeps()
	rep := deps.Repairer.(*mockRepairer)

	r := callTool(t, mcpRepairFile(deps), "repair_file", map[string]interface{}{
		"file_path":     "out/poms/A.py",
		"error_message": "syntax error",
	})
	if got := toolText(t, r); got != "Repaired: out/poms/A.py" {
		t.Errorf("text = %q", got)
	}
	if rep.gotRef != "out/poms/A.py" || rep.gotDiagnostic != "syntax error" {
		t.Errorf("repairer got %q, %q", rep.gotRef, rep.gotDiagnostic)
	}

	deps.Repairer = &mockRepairer{err: errors.New("llm down")}
	r = callTool(t, mcpRepairFile(deps), "repair_file", map[string]interface{}{"file_path": "out/poms/A.py"})
	if !r.IsError {
		t.Error("expected error result")
	}
	if r := callTool(t, mcpRepairFile(deps), "repair_file", map[string]interface{}{}); !r.IsError {
		t.Error("expected error result without file_path")
	}
}
