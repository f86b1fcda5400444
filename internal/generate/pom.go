// Package generate writes the Python page objects and TypeScript specs a
// run produces.
package generate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/pwgen/internal/llm"
	"github.com/kalambet/pwgen/internal/pagemodel"
)

const defaultClassName = "GeneratedPage"

const improvePrompt = `You are an expert in Playwright page object models. Improve this Python page object.

Current page object:
%s

Use role-based locators where possible. Add helper methods for common operations, explicit waits,
state validation helpers, docstrings and type hints.
Keep every existing element and method, the class name, and the goto() method with its URL.
Return ONLY Python code, no markdown fences, no explanations.`

// pythonLocators maps locator strategies to Playwright's Python page methods.
var pythonLocators = map[string]string{
	pagemodel.StrategyRole:        "get_by_role",
	pagemodel.StrategyLabel:       "get_by_label",
	pagemodel.StrategyPlaceholder: "get_by_placeholder",
	pagemodel.StrategyTestID:      "get_by_test_id",
	pagemodel.StrategyText:        "get_by_text",
	pagemodel.StrategyCSS:         "locator",
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// POMConfig configures a POMGenerator.
type POMConfig struct {
	OutDir string
	// Enhance sends the rendered page object to the LLM for improvement.
	// Requires Client.
	Enhance     bool
	Client      llm.Client
	Model       string
	Temperature float64
	Logger      *slog.Logger
}

// POMGenerator renders a Python page object class for a page model and
// writes it to <OutDir>/poms/<ClassName>.py. When two different page URLs
// map to the same class name, later ones get a numeric suffix (Login2).
type POMGenerator struct {
	cfg    POMConfig
	logger *slog.Logger

	mu sync.Mutex
	// claimed maps a class name to the page URL that owns its file.
	claimed map[string]string
}

func NewPOM(cfg POMConfig) *POMGenerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &POMGenerator{cfg: cfg, logger: logger, claimed: make(map[string]string)}
}

// PomDir is where page objects are written.
func (g *POMGenerator) PomDir() string {
	return filepath.Join(g.cfg.OutDir, "poms")
}

type locatorLine struct {
	Name  string
	Call  string
	Value string
}

type actionMethod struct {
	Method string
	Param  string
	Body   string
}

type pomData struct {
	ClassName string
	URL       string
	Locators  []locatorLine
	Actions   []actionMethod
}

// Generate writes the page object and returns its path.
func (g *POMGenerator) Generate(ctx context.Context, name string, page *pagemodel.Page) (string, error) {
	if err := page.Validate(); err != nil {
		return "", err
	}
	className := g.claim(ClassName(name), page.URL)

	code, err := RenderPOM(className, page)
	if err != nil {
		return "", err
	}
	if g.cfg.Enhance && g.cfg.Client != nil {
		code = g.enhance(ctx, className, code)
	}

	if err := os.MkdirAll(g.PomDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating pom dir: %w", err)
	}
	path := filepath.Join(g.PomDir(), className+".py")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("writing pom: %w", err)
	}
	return path, nil
}

// claim reserves a class name for url. The same url always gets the same
// name back.
func (g *POMGenerator) claim(className, url string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := className
	for n := 2; ; n++ {
		owner, taken := g.claimed[candidate]
		if !taken || owner == url {
			break
		}
		candidate = className + strconv.Itoa(n)
	}
	g.claimed[candidate] = url
	return candidate
}

// enhance returns the LLM-improved code, or the original when the model
// fails or answers with nothing.
func (g *POMGenerator) enhance(ctx context.Context, className, code string) string {
	out, err := g.cfg.Client.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(improvePrompt, code),
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		g.logger.Warn("pom enhancement failed, keeping template", "class", className, "error", err)
		return code
	}
	improved := llm.StripFences(out)
	if improved == "" {
		g.logger.Warn("pom enhancement returned nothing, keeping template", "class", className)
		return code
	}
	return improved + "\n"
}

// RenderPOM renders the template page object without touching the disk.
func RenderPOM(className string, page *pagemodel.Page) (string, error) {
	data := pomData{ClassName: className, URL: page.URL}
	seen := make(map[string]bool)
	for _, el := range page.Elements {
		data.Locators = append(data.Locators, locatorLine{
			Name:  el.Name,
			Call:  pythonLocator(el.Locator.Strategy),
			Value: el.Locator.Value,
		})
		for _, action := range el.Actions {
			m, ok := buildAction(el.Name, action)
			if !ok || seen[m.Method] {
				continue
			}
			seen[m.Method] = true
			data.Actions = append(data.Actions, m)
		}
	}

	var buf bytes.Buffer
	if err := pomTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering pom: %w", err)
	}
	return buf.String(), nil
}

func pythonLocator(strategy string) string {
	if call, ok := pythonLocators[strategy]; ok {
		return call
	}
	return "locator"
}

// buildAction returns the helper method for an element action. Actions
// without a generated body still get a stub so the class lists them.
func buildAction(element, action string) (actionMethod, bool) {
	action = strings.ToLower(strings.TrimSpace(action))
	if !identRe.MatchString(action) {
		return actionMethod{}, false
	}
	m := actionMethod{Method: action + "_" + element}
	switch action {
	case "click":
		m.Body = "self." + element + ".click()"
	case "fill":
		m.Param = "value: str"
		m.Body = "self." + element + ".fill(value)"
	case "check":
		m.Body = "self." + element + ".check()"
	default:
		m.Body = "pass  # " + action
	}
	return m, true
}

// ClassName normalizes a requested page object name: underscore-separated
// words are joined with their first letter upper-cased. Characters that
// cannot appear in an identifier are dropped.
func ClassName(name string) string {
	var b strings.Builder
	for _, word := range strings.Split(name, "_") {
		word = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, word)
		if word == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(word[size:])
	}
	if b.Len() == 0 {
		return defaultClassName
	}
	out := b.String()
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		out = "Page" + out
	}
	return out
}
