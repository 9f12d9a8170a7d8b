package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// AnalystSystemPrompt is sent as the system instruction with every analysis.
const AnalystSystemPrompt = "Be accurate, measured, and practical."

const analystPromptHeader = `You are a senior equity analyst. Using the JSON below, write a concise analysis:
- 4-6 bullet risk factors (clear, specific)
- 3-5 bullet actionable recommendations for an investor
- A brief 1-paragraph narrative summary

JSON:
`

// Analyst turns a collected record into narrative text with one completion.
type Analyst struct {
	llm llm.Completer
}

// NewAnalyst creates an Analyst backed by c.
func NewAnalyst(c llm.Completer) *Analyst {
	return &Analyst{llm: c}
}

// BuildPrompt renders the user prompt for collected.
func BuildPrompt(collected models.CollectedRecord) (string, error) {
	data, err := json.MarshalIndent(collected, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode collected record: %w", err)
	}
	return analystPromptHeader + string(data), nil
}

// Analyze asks the model for an analysis. The text is returned unmodified.
func (a *Analyst) Analyze(ctx context.Context, collected models.CollectedRecord) (models.AnalysisResult, error) {
	prompt, err := BuildPrompt(collected)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	text, err := a.llm.Complete(ctx, AnalystSystemPrompt, prompt)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("completion: %w", err)
	}
	return models.AnalysisResult{AnalysisText: text}, nil
}
