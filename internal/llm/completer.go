package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/config"
)

// Completer turns a system instruction and a user prompt into text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

var _ Completer = (*Router)(nil)

// NewCompleter builds a Router for the configured backend. "auto" is
// resolved through the config cascade. A missing credential for the selected
// backend fails here, before any pipeline stage runs. Fallback backends that
// cannot be built are skipped with a warning.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, log logrus.FieldLogger) (*Router, error) {
	backend, err := cfg.ResolveBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownBackend, err)
	}

	primary, err := NewProvider(ctx, cfg, backend)
	if err != nil {
		return nil, err
	}

	router := NewRouter(primary.Name(),
		WithMaxRetries(2),
		WithRetryDelay(time.Second),
		WithLogger(log),
		WithDefaultChatOptions(ChatOptions{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}),
	)
	router.RegisterProvider(primary)

	var fallbacks []string
	for _, name := range cfg.Fallbacks {
		b, err := config.ParseBackend(name)
		if err != nil || b == config.BackendAuto || b == backend {
			if log != nil && err != nil {
				log.WithError(err).Warn("ignoring llm fallback")
			}
			continue
		}
		p, err := NewProvider(ctx, cfg, b)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("backend", b).Warn("llm fallback unavailable")
			}
			continue
		}
		router.RegisterProvider(p)
		fallbacks = append(fallbacks, p.Name())
	}
	router.fallbacks = fallbacks

	return router, nil
}

// NewProvider constructs the provider for one concrete backend.
func NewProvider(ctx context.Context, cfg config.LLMConfig, backend config.Backend) (LLMProvider, error) {
	model := cfg.ModelFor(backend)
	key := cfg.KeyFor(backend)

	switch backend {
	case config.BackendGroq:
		p, err := NewGroqProvider(ctx, key, WithGroqModel(model))
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendOpenAI:
		p, err := NewOpenAIProvider(key, WithOpenAIModel(model))
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendOllama:
		return NewOllamaProvider(cfg.OllamaURL, WithOllamaModel(model)), nil
	case config.BackendAnthropic:
		p, err := NewAnthropicProvider(key, WithAnthropicModel(model))
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendGemini:
		p, err := NewGeminiProvider(ctx, key, WithGeminiModel(model))
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// IsConfigError reports whether err comes from backend selection rather
// than from a completion call.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrUnknownBackend)
}
