package api

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/pwgen/internal/pagemodel"
	"github.com/kalambet/pwgen/internal/pipeline"
)

// QuickStartTarget is the demo site quick_start generates tests for.
const QuickStartTarget = "https://the-internet.herokuapp.com"

const (
	quickStartLimit = 2
	maxListedLinks  = 15
)

// MCPDeps holds dependencies for the MCP server. Each tool uses only the
// collaborators it needs.
type MCPDeps struct {
	Pipeline  RunExecutor
	Crawler   pipeline.Crawler
	Scanner   pipeline.Scanner
	Extractor pipeline.Extractor
	POM       pipeline.PrimaryGenerator
	Verifier  pipeline.Verifier
	Repairer  pipeline.Repairer
	OutputDir string
}

// NewMCPServer creates an MCP server with all pwgen tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.OutputDir == "" {
		deps.OutputDir = "out"
	}

	s := server.NewMCPServer(
		"pwgen",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("pwgen generates Playwright page objects and tests for a website."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_tests_full",
			mcp.WithDescription("Complete pipeline: crawl the site, create page object models and generate Playwright test files."),
			mcp.WithString("url", mcp.Description("Base URL to crawl and generate tests for"), mcp.Required()),
			mcp.WithNumber("max_pages", mcp.Description("Maximum number of pages to process (default: 10)"), mcp.DefaultNumber(pipeline.DefaultLimit)),
			mcp.WithString("stories", mcp.Description("Optional user stories to guide test generation")),
		),
		mcpGenerateTestsFull(deps),
	)

	s.AddTool(
		mcp.NewTool("crawl_links",
			mcp.WithDescription("Crawl and discover all same-site links on a website."),
			mcp.WithString("base_url", mcp.Description("Base URL to start crawling from"), mcp.Required()),
		),
		mcpCrawlLinks(deps),
	)

	s.AddTool(
		mcp.NewTool("scan_site",
			mcp.WithDescription("Scan a URL and capture its DOM."),
			mcp.WithString("url", mcp.Description("URL to scan"), mcp.Required()),
		),
		mcpScanSite(deps),
	)

	s.AddTool(
		mcp.NewTool("extract_model",
			mcp.WithDescription("Extract a UI model (buttons, forms, links) from a webpage."),
			mcp.WithString("url", mcp.Description("URL to extract model from"), mcp.Required()),
			mcp.WithString("name", mcp.Description("Name for the page (e.g. 'LoginPage')"), mcp.Required()),
		),
		mcpExtractModel(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_pom",
			mcp.WithDescription("Generate a page object model from a UI model."),
			mcp.WithString("name", mcp.Description("Name for the POM (e.g. 'LoginPage')"), mcp.Required()),
			mcp.WithObject("model", mcp.Description("UI model extracted from a page"), mcp.Required()),
		),
		mcpGeneratePOM(deps),
	)

	s.AddTool(
		mcp.NewTool("verify_pom",
			mcp.WithDescription("Verify that a page object model file compiles."),
			mcp.WithString("pom_path", mcp.Description("Path to the POM file to verify"), mcp.Required()),
		),
		mcpVerifyPOM(deps),
	)

	s.AddTool(
		mcp.NewTool("repair_file",
			mcp.WithDescription("Repair syntax errors in a generated file."),
			mcp.WithString("file_path", mcp.Description("Path to the file to repair"), mcp.Required()),
			mcp.WithString("error_message", mcp.Description("Optional error message to help with repair")),
		),
		mcpRepairFile(deps),
	)

	s.AddTool(
		mcp.NewTool("quick_start",
			mcp.WithDescription("Quick demo: generate tests for the-internet.herokuapp.com (2 pages)."),
		),
		mcpQuickStart(deps),
	)

	return s
}

func mcpGenerateTestsFull(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("url")
		if err != nil || target == "" {
			return mcpError("url is required"), nil
		}
		limit := req.GetInt("max_pages", pipeline.DefaultLimit)
		if limit < 0 {
			return mcpError("max_pages must not be negative"), nil
		}
		stories := req.GetString("stories", "")

		run := deps.Pipeline.Execute(ctx, target, limit, stories)
		return runResult("Test generation complete", run, deps.OutputDir), nil
	}
}

func mcpQuickStart(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		run := deps.Pipeline.Execute(ctx, QuickStartTarget, quickStartLimit, "")
		return runResult("Demo complete", run, deps.OutputDir), nil
	}
}

// runResult reports a run. A run that produced no jobs because of
// run-level errors is an error result.
func runResult(title string, run *pipeline.Run, outDir string) *mcp.CallToolResult {
	s := run.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nSummary:\n", title)
	fmt.Fprintf(&b, "- Run: %s\n", run.ID)
	fmt.Fprintf(&b, "- Pages processed: %d\n", s.Total)
	fmt.Fprintf(&b, "- Successful: %d\n", s.Successful)
	fmt.Fprintf(&b, "- Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "- Healed: %d\n", s.Healed)
	for _, e := range s.RunErrors {
		fmt.Fprintf(&b, "- Run error: %s\n", e)
	}
	for _, job := range run.Order() {
		if !job.Healthy() {
			fmt.Fprintf(&b, "- %s: %s\n", job.Target, strings.Join(job.Errors, "; "))
		}
	}
	fmt.Fprintf(&b, "\nGenerated files:\n")
	fmt.Fprintf(&b, "- Page objects (Python): %s\n", filepath.Join(outDir, "poms")+"/")
	fmt.Fprintf(&b, "- Tests (TypeScript): %s\n", filepath.Join(outDir, "tests")+"/")
	fmt.Fprintf(&b, "\nRun the tests with:\n- npx playwright test --ui\n- npx playwright test\n- npx playwright test --headed\n")

	if s.Total == 0 && len(s.RunErrors) > 0 {
		return mcpError(b.String())
	}
	return mcpText(b.String())
}

func mcpCrawlLinks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		base, err := req.RequireString("base_url")
		if err != nil || base == "" {
			return mcpError("base_url is required"), nil
		}

		links, err := deps.Crawler.Crawl(ctx, base)
		if err != nil {
			return mcpError(fmt.Sprintf("crawl failed: %v", err)), nil
		}

		return mcpText(formatLinks(links)), nil
	}
}

func formatLinks(links []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d links", len(links))
	for i, link := range links {
		if i == maxListedLinks {
			fmt.Fprintf(&b, "\n... and %d more", len(links)-maxListedLinks)
			break
		}
		fmt.Fprintf(&b, "\n• %s", link)
	}
	return b.String()
}

func mcpScanSite(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("url")
		if err != nil || target == "" {
			return mcpError("url is required"), nil
		}

		dom, err := deps.Scanner.Scan(ctx, target)
		if err != nil {
			return mcpError(fmt.Sprintf("scan failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Scanned %s\nDOM extracted: %d chars", target, len(dom))), nil
	}
}

func mcpExtractModel(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("url")
		if err != nil || target == "" {
			return mcpError("url is required"), nil
		}
		name, err := req.RequireString("name")
		if err != nil || name == "" {
			return mcpError("name is required"), nil
		}

		dom, err := deps.Scanner.Scan(ctx, target)
		if err != nil {
			return mcpError(fmt.Sprintf("scan failed: %v", err)), nil
		}
		page, err := deps.Extractor.Extract(ctx, target, dom, "")
		if err != nil {
			return mcpError(fmt.Sprintf("extraction failed: %v", err)), nil
		}

		b, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal model: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Extracted model for %s\nElements: %d\n\n%s", name, len(page.Elements), b)), nil
	}
}

func mcpGeneratePOM(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil || name == "" {
			return mcpError("name is required"), nil
		}

		page, err := decodeModel(req.GetArguments()["model"])
		if err != nil {
			return mcpError(err.Error()), nil
		}

		ref, err := deps.POM.Generate(ctx, name, page)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Generated POM: %s", ref)), nil
	}
}

// decodeModel accepts the model as a JSON object or a JSON string.
func decodeModel(raw any) (*pagemodel.Page, error) {
	if raw == nil {
		return nil, fmt.Errorf("model is required")
	}
	var data []byte
	if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid model: %v", err)
		}
		data = b
	}

	var page pagemodel.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("invalid model JSON: %v", err)
	}
	return &page, nil
}

func mcpVerifyPOM(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("pom_path")
		if err != nil || path == "" {
			return mcpError("pom_path is required"), nil
		}

		ok, diagnostic, err := deps.Verifier.Verify(ctx, path)
		if err != nil {
			return mcpError(fmt.Sprintf("verification could not run: %v", err)), nil
		}

		status := "Valid"
		if !ok {
			status = "Invalid"
		}
		text := fmt.Sprintf("%s: %s", status, path)
		if diagnostic != "" {
			text += "\n" + diagnostic
		}
		return mcpText(text), nil
	}
}

func mcpRepairFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("file_path")
		if err != nil || path == "" {
			return mcpError("file_path is required"), nil
		}
		diagnostic := req.GetString("error_message", "")

		if err := deps.Repairer.Repair(ctx, path, diagnostic); err != nil {
			return mcpError(fmt.Sprintf("repair failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Repaired: %s", path)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
