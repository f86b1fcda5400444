// Package repair fixes broken generated files with an LLM.
package repair

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kalambet/pwgen/internal/llm"
)

const repairPrompt = `Fix this Python code:

%s

Error: %s

Return ONLY the corrected Python code, no markdown.`

// ErrEmptyRepair is returned when the model answers with no code.
var ErrEmptyRepair = errors.New("llm returned no code")

// LLMRepairer rewrites a file in place with the model's corrected version.
type LLMRepairer struct {
	client      llm.Client
	model       string
	temperature float64
}

func New(client llm.Client, model string, temperature float64) *LLMRepairer {
	return &LLMRepairer{client: client, model: model, temperature: temperature}
}

// Repair sends the file and diagnostic to the model and overwrites the
// file with the answer. The file is left untouched on any error.
func (r *LLMRepairer) Repair(ctx context.Context, ref, diagnostic string) error {
	content, err := os.ReadFile(ref)
	if err != nil {
		return fmt.Errorf("reading %s: %w", ref, err)
	}

	out, err := r.client.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(repairPrompt, content, diagnostic),
		Model:       r.model,
		Temperature: r.temperature,
	})
	if err != nil {
		return err
	}

	fixed := llm.StripFences(out)
	if fixed == "" {
		return ErrEmptyRepair
	}
	if err := os.WriteFile(ref, []byte(fixed+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ref, err)
	}
	return nil
}
