package pagemodel

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Locator strategies understood by the generators. Anything else is
// rendered as a CSS locator.
const (
	StrategyRole        = "role"
	StrategyLabel       = "label"
	StrategyPlaceholder = "placeholder"
	StrategyTestID      = "testId"
	StrategyText        = "text"
	StrategyCSS         = "css"
)

// Page is the structured element model extracted from a single page.
type Page struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

// Element is one interactive element on a page.
type Element struct {
	Name    string   `json:"name"`
	Purpose string   `json:"purpose,omitempty"`
	Locator Locator  `json:"locator"`
	Actions []string `json:"actions,omitempty"`
}

// Locator tells the generated code how to find an element.
type Locator struct {
	Strategy string `json:"strategy"`
	Value    string `json:"value"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pythonKeywords is keyword.kwlist plus the soft keywords that cannot be
// assigned as attributes.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// reservedNames are attributes the generated page object already defines.
var reservedNames = map[string]bool{
	"page": true,
	"goto": true,
}

// ErrInvalidModel is wrapped by every Validate failure.
var ErrInvalidModel = errors.New("invalid page model")

// Validate checks that element names are usable as generated identifiers
// and unique within the page.
func (p *Page) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil page", ErrInvalidModel)
	}
	seen := make(map[string]bool, len(p.Elements))
	for i, el := range p.Elements {
		if el.Name == "" {
			return fmt.Errorf("%w: element %d has no name", ErrInvalidModel, i)
		}
		if !identRe.MatchString(el.Name) {
			return fmt.Errorf("%w: element name %q is not an identifier", ErrInvalidModel, el.Name)
		}
		if pythonKeywords[el.Name] {
			return fmt.Errorf("%w: element name %q is a Python keyword", ErrInvalidModel, el.Name)
		}
		if reservedNames[el.Name] || strings.HasPrefix(el.Name, "__") {
			return fmt.Errorf("%w: element name %q is reserved by the page object", ErrInvalidModel, el.Name)
		}
		if seen[el.Name] {
			return fmt.Errorf("%w: duplicate element name %q", ErrInvalidModel, el.Name)
		}
		seen[el.Name] = true
	}
	return nil
}

// ElementNames returns element names in model order.
func (p *Page) ElementNames() []string {
	names := make([]string, len(p.Elements))
	for i, el := range p.Elements {
		names[i] = el.Name
	}
	return names
}

// Schema returns the JSON schema the extractor's LLM output must satisfy.
func Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"elements"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
			"elements": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "locator"},
					"properties": map[string]any{
						"name":    map[string]any{"type": "string", "minLength": 1},
						"purpose": map[string]any{"type": "string"},
						"locator": map[string]any{
							"type":     "object",
							"required": []any{"strategy", "value"},
							"properties": map[string]any{
								"strategy": map[string]any{"type": "string"},
								"value":    map[string]any{"type": "string"},
							},
						},
						"actions": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
}
