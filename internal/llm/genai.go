package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAI completes prompts with Google's Gemini API.
type GenAI struct {
	client *genai.Client
}

// NewGenAI creates a Gemini client. baseURL overrides the API endpoint and
// is only needed for tests and proxies.
func NewGenAI(ctx context.Context, apiKey, baseURL string) (*GenAI, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenAI{client: client}, nil
}

func (c *GenAI) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return result.Text(), nil
}
