package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiModels lists commonly available Gemini models.
var geminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

// GeminiProvider implements LLMProvider for Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*genai.ClientConfig, *string)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(_ *genai.ClientConfig, m *string) {
		if model != "" {
			*m = model
		}
	}
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(cfg *genai.ClientConfig, _ *string) {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(url, "/") + "/"
	}
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}

	timeout := 120 * time.Second
	cfg := &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{Timeout: &timeout},
	}
	model := "gemini-2.0-flash"
	for _, opt := range opts {
		opt(cfg, &model)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string     { return ProviderGemini }
func (p *GeminiProvider) Models() []string { return geminiModels }

// Ping checks that the configured model is visible to the key.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return classifyStatusError("gemini", fmt.Errorf("%w: %v", ErrProviderDown, err))
	}
	return nil
}

// Chat sends a generateContent request to Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()

	model := p.model
	gcfg := &genai.GenerateContentConfig{}
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.Temperature > 0 {
			gcfg.Temperature = genai.Ptr(float32(opts.Temperature))
		}
		if opts.MaxTokens > 0 {
			gcfg.MaxOutputTokens = int32(opts.MaxTokens)
		}
	}

	system, rest := splitSystem(messages)
	if system != "" {
		gcfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gcfg)
	if err != nil {
		return nil, classifyStatusError("gemini", err)
	}

	var sb strings.Builder
	if resp != nil {
		for _, c := range resp.Candidates {
			if c.Content == nil {
				continue
			}
			for _, part := range c.Content.Parts {
				sb.WriteString(part.Text)
			}
			if sb.Len() > 0 {
				break
			}
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	out := &Response{
		Content:  sb.String(),
		Model:    model,
		Provider: ProviderGemini,
		Latency:  time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
