package config

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	EnvVar string       `json:"env_var,omitempty"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "gsk...abc"
}

// CheckAPIKeys returns the status of every backend credential.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Groq API Key", cfg.LLM.GroqKey, "groq"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "openai"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, "anthropic"),
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, "gemini"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, secret string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	if _, env := lookupSecret(secret); env != "" {
		status.Source = KeySourceEnv
		status.EnvVar = env
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
