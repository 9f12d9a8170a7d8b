// Package config handles configuration loading for marketbrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all environment overrides.
const EnvPrefix = "MARKETBRIEF"

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	Collector  CollectorConfig  `mapstructure:"collector"  yaml:"collector"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Watch      WatchConfig      `mapstructure:"watch"      yaml:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds language-model backend configuration.
type LLMConfig struct {
	Backend        string   `mapstructure:"backend"         yaml:"backend"` // groq, openai, ollama, anthropic, gemini, auto
	GroqKey        string   `mapstructure:"groq_key"        yaml:"groq_key"        json:"-"`
	GroqModel      string   `mapstructure:"groq_model"      yaml:"groq_model"`
	OpenAIKey      string   `mapstructure:"openai_key"      yaml:"openai_key"      json:"-"`
	OpenAIModel    string   `mapstructure:"openai_model"    yaml:"openai_model"`
	OllamaURL      string   `mapstructure:"ollama_url"      yaml:"ollama_url"`
	OllamaModel    string   `mapstructure:"ollama_model"    yaml:"ollama_model"`
	AnthropicKey   string   `mapstructure:"anthropic_key"   yaml:"anthropic_key"   json:"-"`
	AnthropicModel string   `mapstructure:"anthropic_model" yaml:"anthropic_model"`
	GeminiKey      string   `mapstructure:"gemini_key"      yaml:"gemini_key"      json:"-"`
	GeminiModel    string   `mapstructure:"gemini_model"    yaml:"gemini_model"`
	Temperature    float64  `mapstructure:"temperature"     yaml:"temperature"`
	MaxTokens      int      `mapstructure:"max_tokens"      yaml:"max_tokens"`
	Fallbacks      []string `mapstructure:"fallbacks"       yaml:"fallbacks"`
}

// CollectorConfig holds settings for the three fetchers.
type CollectorConfig struct {
	NewsLimit         int     `mapstructure:"news_limit"          yaml:"news_limit"`
	WikiSentences     int     `mapstructure:"wiki_sentences"      yaml:"wiki_sentences"`
	CacheTTL          int     `mapstructure:"cache_ttl"           yaml:"cache_ttl"` // seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	EnrichSnippets    bool    `mapstructure:"enrich_snippets"     yaml:"enrich_snippets"`
}

// CheckpointConfig selects where pipeline state is checkpointed.
type CheckpointConfig struct {
	Backend     string `mapstructure:"backend"      yaml:"backend"` // "memory" or "badger"
	MaxSessions int    `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host           string   `mapstructure:"host"            yaml:"host"`
	Port           int      `mapstructure:"port"            yaml:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout int      `mapstructure:"request_timeout" yaml:"request_timeout"` // seconds
}

// WatchConfig holds the scheduled watchlist.
type WatchConfig struct {
	Schedule  string       `mapstructure:"schedule"   yaml:"schedule"`
	OutputDir string       `mapstructure:"output_dir" yaml:"output_dir"`
	Format    string       `mapstructure:"format"     yaml:"format"`
	Entries   []WatchEntry `mapstructure:"entries"    yaml:"entries"`
}

// WatchEntry is one company on the watchlist.
type WatchEntry struct {
	Company string `mapstructure:"company" yaml:"company"`
	Ticker  string `mapstructure:"ticker"  yaml:"ticker"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketbrief/config.yaml (home directory)
//  3. /etc/marketbrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETBRIEF_<SECTION>_<KEY>, e.g., MARKETBRIEF_LLM_BACKEND
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketbrief"))
	v.AddConfigPath("/etc/marketbrief")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.backend", string(BackendGroq))
	v.SetDefault("llm.groq_model", "llama-3.1-8b-instant")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.ollama_model", "llama3.2:1b")
	v.SetDefault("llm.anthropic_model", "claude-3-5-haiku-20241022")
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.fallbacks", []string{})

	// Collector defaults
	v.SetDefault("collector.news_limit", 8)
	v.SetDefault("collector.wiki_sentences", 3)
	v.SetDefault("collector.cache_ttl", 300) // 5 minutes
	v.SetDefault("collector.requests_per_second", 2.0)
	v.SetDefault("collector.enrich_snippets", false)

	v.SetDefault("checkpoint.backend", "memory")
	v.SetDefault("checkpoint.max_sessions", 1000)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.request_timeout", 300)

	// Watchlist defaults: weekday mornings
	v.SetDefault("watch.schedule", "0 9 * * 1-5")
	v.SetDefault("watch.output_dir", "./reports")
	v.SetDefault("watch.format", "markdown")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// secretEnv lists, per secret, the environment variables consulted in order.
// The prefixed form wins over the vendor's conventional name.
var secretEnv = map[string][]string{
	"groq":      {EnvPrefix + "_LLM_GROQ_KEY", "GROQ_API_KEY"},
	"openai":    {EnvPrefix + "_LLM_OPENAI_KEY", "OPENAI_API_KEY"},
	"anthropic": {EnvPrefix + "_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
	"gemini":    {EnvPrefix + "_LLM_GEMINI_KEY", "GEMINI_API_KEY"},
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key, _ := lookupSecret("groq"); key != "" {
		cfg.LLM.GroqKey = key
	}
	if key, _ := lookupSecret("openai"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key, _ := lookupSecret("anthropic"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key, _ := lookupSecret("gemini"); key != "" {
		cfg.LLM.GeminiKey = key
	}
}

// lookupSecret returns the first non-empty env value for the named secret
// and the variable it came from.
func lookupSecret(name string) (string, string) {
	for _, env := range secretEnv[name] {
		if v := os.Getenv(env); v != "" {
			return v, env
		}
	}
	return "", ""
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
