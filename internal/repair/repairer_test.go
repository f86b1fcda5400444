package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/pwgen/internal/llm"
)

type mockLLM struct {
	completeFn func(req llm.Request) (string, error)
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	return m.completeFn(req)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Page.py")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRepair(t *testing.T) {
	path := writeFile(t, "class Page\n    pass\n")
	var got llm.Request
	r := New(&mockLLM{completeFn: func(req llm.Request) (string, error) {
		got = req
		return "```python\nclass Page:\n    pass\n```", nil
	}}, "gpt-4o-mini", 0)

	if err := r.Repair(context.Background(), path, "syntax error: line 1"); err != nil {
		t.Fatalf("Repair: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "class Page:\n    pass\n" {
		t.Errorf("content = %q", data)
	}
	if !strings.Contains(got.Prompt, "class Page\n    pass") || !strings.Contains(got.Prompt, "Error: syntax error: line 1") {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
}

func TestRepair_MissingFile(t *testing.T) {
	r := New(&mockLLM{completeFn: func(llm.Request) (string, error) {
		t.Fatal("llm should not be called")
		return "", nil
	}}, "m", 0)
	err := r.Repair(context.Background(), filepath.Join(t.TempDir(), "Nope.py"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestRepair_FileUntouchedOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(llm.Request) (string, error)
		wantErr error
	}{
		{"llm error", func(llm.Request) (string, error) { return "", llm.ErrMissingCredential }, llm.ErrMissingCredential},
		{"empty answer", func(llm.Request) (string, error) { return "```\n```", nil }, ErrEmptyRepair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "broken")
			err := New(&mockLLM{completeFn: tt.fn}, "m", 0).Repair(context.Background(), path, "x")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			data, _ := os.ReadFile(path)
			if string(data) != "broken" {
				t.Errorf("file changed: %q", data)
			}
		})
	}
}
