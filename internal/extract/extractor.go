// Package extract turns a page snapshot into a pagemodel.Page with an LLM.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kalambet/pwgen/internal/llm"
	"github.com/kalambet/pwgen/internal/pagemodel"
)

// maxSnapshotRunes bounds how much of the DOM is sent to the model.
const maxSnapshotRunes = 5000

const systemPrompt = `You extract interactive UI elements from web pages for Playwright page objects.
Identify buttons, links, inputs and forms. Give each element a camelCase name that is a valid identifier.
Pick the best locator strategy, in order of preference: role, label, placeholder, testId, text, css.
List the actions the element supports: click, fill, check, select, hover.
Return ONLY a JSON object, no markdown, no explanations.`

const promptTemplate = `URL: %s
DOM: %s
%s
Return JSON with:
- "url": the page URL
- "elements": array of objects with
  - "name": camelCase identifier
  - "purpose": what the element does
  - "locator": {"strategy": "role|label|placeholder|testId|text|css", "value": "..."}
  - "actions": ["click", "fill", ...] (optional)`

// Extractor asks an LLM for the element model of a page and validates the
// answer against pagemodel.Schema before decoding it.
type Extractor struct {
	client      llm.Client
	model       string
	temperature float64
	schema      *jsonschema.Schema
}

// New compiles the page model schema and returns an Extractor that uses
// client with the given model name.
func New(client llm.Client, model string, temperature float64) (*Extractor, error) {
	schema, err := compileSchema(pagemodel.Schema())
	if err != nil {
		return nil, err
	}
	return &Extractor{
		client:      client,
		model:       model,
		temperature: temperature,
		schema:      schema,
	}, nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("page.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("page.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func (e *Extractor) Extract(ctx context.Context, target, snapshot, hints string) (*pagemodel.Page, error) {
	out, err := e.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(target, snapshot, hints),
		Model:       e.model,
		Temperature: e.temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return e.parse(target, out)
}

func buildPrompt(target, snapshot, hints string) string {
	var hintLine string
	if hints != "" {
		hintLine = "Hints: " + hints + "\n"
	}
	return fmt.Sprintf(promptTemplate, target, Truncate(snapshot, maxSnapshotRunes), hintLine)
}

// parse validates and decodes a model response. The page URL defaults to
// target when the model leaves it empty.
func (e *Extractor) parse(target, raw string) (*pagemodel.Page, error) {
	body := jsonObject(llm.StripFences(raw))

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var page pagemodel.Page
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if page.URL == "" {
		page.URL = target
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return &page, nil
}

// jsonObject slices s from the first '{' to the last '}'. Text without
// braces is returned unchanged so that decoding reports the error.
func jsonObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
