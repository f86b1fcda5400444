package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kalambet/pwgen/internal/llm"
)

const (
	fallbackURL       = "https://example.com"
	maxPromptElements = 15
	maxScenarios      = 5
)

var (
	gotoRe    = regexp.MustCompile(`page\.goto\(["'](.+?)["']\)`)
	elementRe = regexp.MustCompile(`self\.(\w+)\s*=\s*self\.page\.(\w+)\(("(?:[^"\\]|\\.)*")`)
)

// tsLocators maps Python locator calls to their TypeScript names.
var tsLocators = map[string]string{
	"get_by_role":        "getByRole",
	"get_by_label":       "getByLabel",
	"get_by_placeholder": "getByPlaceholder",
	"get_by_test_id":     "getByTestId",
	"get_by_text":        "getByText",
	"locator":            "locator",
}

const scenariosPrompt = `Analyze this page and identify key test scenarios.

URL: %s
Page Type: %s
Elements: %s

Return JSON only:
{"scenarios": [{"name": "scenario_name", "type": "happy_path|validation|edge_case|navigation|accessibility", "expected": "expected outcome"}]}`

const testPrompt = `You are an expert Playwright test engineer. Generate TypeScript tests.

Page: %s
Available elements: %s
URL: %s
%s
Only test elements that exist on the page and use their exact names.
Use page.getByRole(), page.getByText() or page.locator() selectors and expect() assertions.
Write 3-5 independent tests with descriptive names.

Return ONLY TypeScript code, no markdown fences, no explanations. Start with:
import { test, expect } from '@playwright/test';

test.describe('%s Page', () => {`

// SpecConfig configures a SpecGenerator.
type SpecConfig struct {
	OutDir string
	// AI enables LLM-written tests. Without it, or without a Client, a
	// template spec is rendered from the page object's locators.
	AI                  bool
	Client              llm.Client
	ScenarioModel       string
	ScenarioTemperature float64
	TestModel           string
	TestTemperature     float64
	Logger              *slog.Logger
}

// SpecGenerator writes a Playwright TypeScript spec for a page object to
// <OutDir>/tests/<classname>.spec.ts.
type SpecGenerator struct {
	cfg    SpecConfig
	logger *slog.Logger
}

func NewSpec(cfg SpecConfig) *SpecGenerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SpecGenerator{cfg: cfg, logger: logger}
}

// Scenario is one LLM-suggested test case.
type Scenario struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Expected string `json:"expected"`
}

// PageObject is what the spec generator reads back from a page object file.
type PageObject struct {
	ClassName string
	URL       string
	Locators  []locatorLine
}

// Elements returns the element attribute names in file order.
func (p PageObject) Elements() []string {
	names := make([]string, len(p.Locators))
	for i, l := range p.Locators {
		names[i] = l.Name
	}
	return names
}

// ReadPageObject parses a generated page object file.
func ReadPageObject(path string) (PageObject, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return PageObject{}, fmt.Errorf("reading page object: %w", err)
	}
	po := ParsePageObject(string(content))
	po.ClassName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return po, nil
}

// ParsePageObject extracts the goto URL and element locators from page
// object source. Locators whose call is unknown are kept as CSS locators.
func ParsePageObject(content string) PageObject {
	po := PageObject{URL: fallbackURL}
	if m := gotoRe.FindStringSubmatch(content); m != nil {
		po.URL = m[1]
	}
	for _, m := range elementRe.FindAllStringSubmatch(content, -1) {
		value, err := strconv.Unquote(m[3])
		if err != nil {
			value = strings.Trim(m[3], `"`)
		}
		call, ok := tsLocators[m[2]]
		if !ok {
			call = "locator"
		}
		po.Locators = append(po.Locators, locatorLine{Name: m[1], Call: call, Value: value})
	}
	return po
}

// DetectPageType classifies a page from its URL and element names.
func DetectPageType(url string, elements []string) string {
	url = strings.ToLower(url)
	lower := make([]string, len(elements))
	for i, e := range elements {
		lower[i] = strings.ToLower(e)
	}
	anyContains := func(subs ...string) bool {
		for _, e := range lower {
			for _, s := range subs {
				if strings.Contains(e, s) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case strings.Contains(url, "login") || anyContains("login", "password"):
		return "Login Page"
	case strings.Contains(url, "checkout") || anyContains("cart", "checkout"):
		return "Checkout Page"
	case strings.Contains(url, "search") || anyContains("search"):
		return "Search Page"
	case anyContains("form", "submit"):
		return "Form Page"
	default:
		return "Generic Page"
	}
}

// Generate writes the spec for the page object at primaryRef and returns
// the spec path.
func (g *SpecGenerator) Generate(ctx context.Context, primaryRef, hints string) (string, error) {
	po, err := ReadPageObject(primaryRef)
	if err != nil {
		return "", err
	}

	var code string
	if g.cfg.AI && g.cfg.Client != nil {
		code, err = g.generateAI(ctx, po, hints)
		if err != nil {
			return "", err
		}
	} else {
		code, err = RenderSpec(po, hints)
		if err != nil {
			return "", err
		}
	}

	dir := filepath.Join(g.cfg.OutDir, "tests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating tests dir: %w", err)
	}
	path := filepath.Join(dir, strings.ToLower(po.ClassName)+".spec.ts")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("writing spec: %w", err)
	}
	return path, nil
}

func (g *SpecGenerator) generateAI(ctx context.Context, po PageObject, hints string) (string, error) {
	elements := po.Elements()
	if len(elements) > maxPromptElements {
		elements = elements[:maxPromptElements]
	}

	var stories string
	if hints != "" {
		stories = "\nUser stories:\n" + hints + "\n"
	}
	prompt := fmt.Sprintf(testPrompt, po.ClassName, strings.Join(elements, ", "), po.URL, stories, po.ClassName)

	if scenarios := g.scenarios(ctx, po); len(scenarios) > 0 {
		var b strings.Builder
		b.WriteString("\n\nSuggested scenarios:\n")
		for _, s := range scenarios {
			fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Expected)
		}
		prompt += b.String()
	}

	out, err := g.cfg.Client.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Model:       g.cfg.TestModel,
		Temperature: g.cfg.TestTemperature,
	})
	if err != nil {
		return "", err
	}
	code := llm.StripFences(out)
	if code == "" {
		return "", errors.New("llm returned an empty spec")
	}
	return code + "\n", nil
}

// scenarios asks the LLM for test scenarios. Any failure yields none.
func (g *SpecGenerator) scenarios(ctx context.Context, po PageObject) []Scenario {
	elements := po.Elements()
	if len(elements) > 10 {
		elements = elements[:10]
	}
	out, err := g.cfg.Client.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(scenariosPrompt, po.URL, DetectPageType(po.URL, po.Elements()), strings.Join(elements, ", ")),
		Model:       g.cfg.ScenarioModel,
		Temperature: g.cfg.ScenarioTemperature,
		JSON:        true,
	})
	if err != nil {
		g.logger.Debug("scenario extraction failed", "class", po.ClassName, "error", err)
		return nil
	}

	var result struct {
		Scenarios []Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(out)), &result); err != nil {
		g.logger.Debug("scenario response is not json", "class", po.ClassName, "error", err)
		return nil
	}
	if len(result.Scenarios) > maxScenarios {
		result.Scenarios = result.Scenarios[:maxScenarios]
	}
	return result.Scenarios
}

type specData struct {
	PageObject
	Stories []string
}

// RenderSpec renders the template spec for a page object: a page load
// check plus one visibility check per element.
func RenderSpec(po PageObject, hints string) (string, error) {
	data := specData{PageObject: po}
	for _, line := range strings.Split(hints, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			data.Stories = append(data.Stories, line)
		}
	}
	var buf bytes.Buffer
	if err := specTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering spec: %w", err)
	}
	return buf.String(), nil
}
