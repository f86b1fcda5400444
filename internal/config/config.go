package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Output     OutputConfig
	Pipeline   PipelineConfig
	Generation GenerationConfig
	LLM        LLMConfig
	Fetch      FetchConfig
	Verify     VerifyConfig
	API        APIConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	DataDir string
}

type OutputConfig struct {
	Dir string
}

type PipelineConfig struct {
	DefaultLimit int
	Concurrency  int
	JobTimeout   string
}

type GenerationConfig struct {
	Quality string
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	TestModel   string
	Temperature float64
	APIKey      string
}

type FetchConfig struct {
	Mode        string
	DebuggerURL string
}

type VerifyConfig struct {
	Python string
}

type APIConfig struct {
	Token string
}

const (
	QualityBasic         = "basic"
	QualityStandard      = "standard"
	QualityComprehensive = "comprehensive"
)

const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

// ProviderOpenAI is the default llm.provider; preset test models name its models.
const ProviderOpenAI = "openai"

// Preset is what a generation quality level turns on.
type Preset struct {
	EnhancePOM bool
	AITests    bool
	// TestModel is the OpenAI model for AI tests when llm.test_model is unset.
	TestModel string
}

var presets = map[string]Preset{
	QualityBasic:         {},
	QualityStandard:      {EnhancePOM: true, AITests: true},
	QualityComprehensive: {EnhancePOM: true, AITests: true, TestModel: "gpt-4o"},
}

// Preset returns the preset for Generation.Quality. Unknown levels fall
// back to standard.
func (c Config) Preset() Preset {
	if p, ok := presets[strings.ToLower(c.Generation.Quality)]; ok {
		return p
	}
	return presets[QualityStandard]
}

// TestModel returns the model used to write AI tests: llm.test_model when
// set, the preset's model for the openai provider, otherwise llm.model.
func (c Config) TestModel() string {
	if c.LLM.TestModel != "" {
		return c.LLM.TestModel
	}
	if p := c.Preset(); p.TestModel != "" && (c.LLM.Provider == "" || c.LLM.Provider == ProviderOpenAI) {
		return p.TestModel
	}
	return c.LLM.Model
}

// JobTimeout parses Pipeline.JobTimeout. Empty, zero or invalid values
// disable the per-job deadline.
func (c Config) JobTimeout() time.Duration {
	if c.Pipeline.JobTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Pipeline.JobTimeout)
	if err != nil || d < 0 {
		fmt.Fprintf(os.Stderr, "[WARN] invalid pipeline.job_timeout %q; job deadline disabled.\n", c.Pipeline.JobTimeout)
		return 0
	}
	return d
}

func defaults() Config {
	return Config{
		Server:     ServerConfig{Port: 4100},
		Log:        LogConfig{Level: "info"},
		Storage:    StorageConfig{DataDir: defaultDataDir()},
		Output:     OutputConfig{Dir: "out"},
		Pipeline:   PipelineConfig{DefaultLimit: 10, Concurrency: 1, JobTimeout: "5m"},
		Generation: GenerationConfig{Quality: QualityStandard},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
		},
		Fetch:  FetchConfig{Mode: FetchHTTP},
		Verify: VerifyConfig{Python: "python3"},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.kalambet.pwgen) and the
// LLM key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/pwgen/config.json
// and the LLM key falls back to $XDG_DATA_HOME/pwgen/secrets.json.
//
// Environment variables (PWGEN_*) override backend values on all platforms.
// A missing LLM key is not an error here; the LLM client reports it when a
// request is made.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	applySecrets(&cfg, kc)

	if cfg.Fetch.Mode != FetchHTTP && cfg.Fetch.Mode != FetchBrowser {
		return Config{}, fmt.Errorf("invalid fetch.mode %q: want %q or %q", cfg.Fetch.Mode, FetchHTTP, FetchBrowser)
	}

	return cfg, nil
}

// applySecrets fills unset secrets from the platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(secretService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

const secretService = "pwgen"

// secretAccount maps "llm.api_key" to "llm_api_key".
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
