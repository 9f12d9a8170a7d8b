package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// groqModels lists the hosted models suited to short analytical prompts.
var groqModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"gemma2-9b-it",
	"mixtral-8x7b-32768",
}

// GroqProvider talks to Groq's OpenAI-compatible endpoint through an eino
// chat model.
type GroqProvider struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	chat    model.BaseChatModel
}

// GroqOption configures the Groq provider.
type GroqOption func(*GroqProvider)

// WithGroqBaseURL overrides the API endpoint.
func WithGroqBaseURL(url string) GroqOption {
	return func(p *GroqProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithGroqModel sets the default model.
func WithGroqModel(model string) GroqOption {
	return func(p *GroqProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// NewGroqProvider creates a Groq provider.
func NewGroqProvider(ctx context.Context, apiKey string, opts ...GroqOption) (*GroqProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: %w", ErrNoAPIKey)
	}
	p := &GroqProvider{
		apiKey:  apiKey,
		baseURL: "https://api.groq.com/openai/v1",
		model:   "llama-3.1-8b-instant",
		timeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	cm, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL: p.baseURL,
		APIKey:  p.apiKey,
		Model:   p.model,
		Timeout: p.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: init chat model: %w", err)
	}
	p.chat = cm
	return p, nil
}

func (p *GroqProvider) Name() string     { return ProviderGroq }
func (p *GroqProvider) Models() []string { return groqModels }

// Ping verifies the API key by listing models.
func (p *GroqProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: invalid API key", ErrNoAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// Chat generates a completion through the eino chat model.
func (p *GroqProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()

	input := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		input = append(input, &schema.Message{Role: toSchemaRole(m.Role), Content: m.Content})
	}

	modelName := p.model
	var callOpts []model.Option
	if opts != nil {
		if opts.Model != "" {
			modelName = opts.Model
			callOpts = append(callOpts, model.WithModel(opts.Model))
		}
		if opts.Temperature > 0 {
			callOpts = append(callOpts, model.WithTemperature(float32(opts.Temperature)))
		}
		if opts.MaxTokens > 0 {
			callOpts = append(callOpts, model.WithMaxTokens(opts.MaxTokens))
		}
	}

	out, err := p.chat.Generate(ctx, input, callOpts...)
	if err != nil {
		return nil, classifyStatusError("groq", err)
	}
	if out == nil {
		return nil, fmt.Errorf("groq: %w", ErrEmptyResponse)
	}

	resp := &Response{
		Content:  out.Content,
		Model:    modelName,
		Provider: ProviderGroq,
		Latency:  time.Since(start),
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		u := out.ResponseMeta.Usage
		resp.Usage = Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return resp, nil
}

func toSchemaRole(r Role) schema.RoleType {
	switch r {
	case RoleSystem:
		return schema.System
	case RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}

// classifyStatusError maps SDK errors that only expose the HTTP status in
// their message onto the package sentinels.
func classifyStatusError(provider string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource_exhausted"):
		return fmt.Errorf("%s: %w: %v", provider, ErrRateLimit, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "api_key_invalid"):
		return fmt.Errorf("%s: %w: %v", provider, ErrNoAPIKey, err)
	case strings.Contains(msg, "model_not_found") || strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%s: %w: %v", provider, ErrInvalidModel, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}
