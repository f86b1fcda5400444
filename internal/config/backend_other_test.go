//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("server.port", "4321"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("output.dir", "/tmp/pw-out"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	b := newPlatformBackend()
	port, ok, err := b.GetInt("server.port")
	if err != nil || !ok || port != 4321 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	dir, ok, err := b.GetString("output.dir")
	if err != nil || !ok || dir != "/tmp/pw-out" {
		t.Errorf("GetString = %q, %v, %v", dir, ok, err)
	}
}

func TestFileBackendBadJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	path := filepath.Join(home, "pwgen", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newPlatformBackend()
	if _, ok, _ := b.GetString("output.dir"); ok {
		t.Error("expected no values from an unparseable file")
	}
}

func TestSecretFileStore(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := SetSecret("llm.api_key", "sk-file"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	got, err := keychainReader{}.Get(secretService, "llm_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-file" {
		t.Errorf("secret = %q, want sk-file", got)
	}
	if err := SetSecret("server.port", "1"); err == nil {
		t.Error("expected error for non-secret key")
	}
}
