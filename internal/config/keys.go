package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PWGEN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "PWGEN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PWGEN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "output.dir", typ: kString, env: "PWGEN_OUTPUT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Output.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Output.Dir },
	},
	{
		key: "pipeline.default_limit", typ: kInt, env: "PWGEN_PIPELINE_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.DefaultLimit },
	},
	{
		key: "pipeline.concurrency", typ: kInt, env: "PWGEN_PIPELINE_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.Concurrency },
	},
	{
		key: "pipeline.job_timeout", typ: kString, env: "PWGEN_PIPELINE_JOB_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.JobTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.JobTimeout },
	},
	{
		key: "generation.quality", typ: kString, env: "PWGEN_GENERATION_QUALITY",
		apply:   func(cfg *Config, v any) { cfg.Generation.Quality = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Quality },
	},
	{
		key: "llm.provider", typ: kString, env: "PWGEN_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "PWGEN_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "PWGEN_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.test_model", typ: kString, env: "PWGEN_LLM_TEST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.TestModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.TestModel },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "PWGEN_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.api_key", typ: kString, env: "PWGEN_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "fetch.mode", typ: kString, env: "PWGEN_FETCH_MODE",
		apply:   func(cfg *Config, v any) { cfg.Fetch.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Fetch.Mode },
	},
	{
		key: "fetch.debugger_url", typ: kString, env: "PWGEN_FETCH_DEBUGGER_URL",
		apply:   func(cfg *Config, v any) { cfg.Fetch.DebuggerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Fetch.DebuggerURL },
	},
	{
		key: "verify.python", typ: kString, env: "PWGEN_VERIFY_PYTHON",
		apply:   func(cfg *Config, v any) { cfg.Verify.Python = v.(string) },
		extract: func(cfg Config) any { return cfg.Verify.Python },
	},
	{
		key: "api.token", typ: kString, env: "PWGEN_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
