package config

import (
	"fmt"
	"strings"
)

// Backend identifies a language-model backend.
type Backend string

const (
	BackendGroq      Backend = "groq"
	BackendOpenAI    Backend = "openai"
	BackendOllama    Backend = "ollama"
	BackendAnthropic Backend = "anthropic"
	BackendGemini    Backend = "gemini"
	BackendAuto      Backend = "auto"
)

// Backends lists every concrete backend in display order.
var Backends = []Backend{BackendGroq, BackendOpenAI, BackendOllama, BackendAnthropic, BackendGemini}

// BackendOption is one step of the auto cascade.
type BackendOption struct {
	Available bool
	Backend   Backend
}

// AutoCascade returns the ordered auto-selection checks. Ollama needs no
// credential, so it is always available and terminates the cascade.
func (c LLMConfig) AutoCascade() []BackendOption {
	return []BackendOption{
		{Available: c.GroqKey != "", Backend: BackendGroq},
		{Available: c.OpenAIKey != "", Backend: BackendOpenAI},
		{Available: true, Backend: BackendOllama},
	}
}

// ResolveBackend returns the concrete backend to use. "auto" walks
// AutoCascade and picks the first available entry; anything else must name
// a known backend.
func (c LLMConfig) ResolveBackend() (Backend, error) {
	b, err := ParseBackend(c.Backend)
	if err != nil {
		return "", err
	}
	if b != BackendAuto {
		return b, nil
	}
	for _, opt := range c.AutoCascade() {
		if opt.Available {
			return opt.Backend, nil
		}
	}
	return BackendOllama, nil
}

// ParseBackend normalizes a backend name. An empty name means groq.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if b == "" {
		return BackendGroq, nil
	}
	if b == BackendAuto {
		return b, nil
	}
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown llm backend %q", name)
}

// ModelFor returns the configured model for a backend.
func (c LLMConfig) ModelFor(b Backend) string {
	switch b {
	case BackendGroq:
		return c.GroqModel
	case BackendOpenAI:
		return c.OpenAIModel
	case BackendOllama:
		return c.OllamaModel
	case BackendAnthropic:
		return c.AnthropicModel
	case BackendGemini:
		return c.GeminiModel
	default:
		return ""
	}
}

// KeyFor returns the configured credential for a backend. Ollama has none.
func (c LLMConfig) KeyFor(b Backend) string {
	switch b {
	case BackendGroq:
		return c.GroqKey
	case BackendOpenAI:
		return c.OpenAIKey
	case BackendAnthropic:
		return c.AnthropicKey
	case BackendGemini:
		return c.GeminiKey
	default:
		return ""
	}
}
