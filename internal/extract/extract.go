// Package extract turns the analyst's free text into a MarketSummary using a
// deterministic line classifier.
package extract

import (
	"strings"
	"time"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// maxRiskTokens bounds the "mentions risk" rule so long narrative
// paragraphs that merely use the word are not picked up.
const maxRiskTokens = 25

// bulletCutset is trimmed from both ends of every line before classification.
const bulletCutset = "-• "

// Summarize builds a MarketSummary from the collected record and the raw
// analysis text. It never fails; an empty text yields empty lists.
func Summarize(company string, collected models.CollectedRecord, analysisText string, now time.Time) models.MarketSummary {
	risks, recs := Classify(analysisText)

	news := collected.News
	if len(news) > models.MaxTopNews {
		news = news[:models.MaxTopNews]
	}
	topNews := make([]models.NewsItem, len(news))
	copy(topNews, news)

	return models.MarketSummary{
		Company:         company,
		AsOf:            utils.ISOTimestamp(now),
		PriceSnapshot:   collected.Stock.Clone(),
		TopNews:         topNews,
		Analysis:        analysisText,
		Risks:           risks,
		Recommendations: recs,
	}
}

// Classify splits text into capped risk and recommendation lists. Both
// results are non-nil.
func Classify(text string) (risks, recommendations []string) {
	risks = []string{}
	recommendations = []string{}

	for _, raw := range strings.FieldsFunc(text, isLineBreak) {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		switch kind, value := classifyLine(line); kind {
		case lineRisk:
			if len(risks) < models.MaxRisks {
				risks = append(risks, value)
			}
		case lineRecommendation:
			if len(recommendations) < models.MaxRecommendations {
				recommendations = append(recommendations, value)
			}
		}
	}
	return risks, recommendations
}

// isLineBreak reports the line boundaries recognised when splitting
// analysis text: \n, \r, \v, \f, the file/group/record separators,
// NEL, and the Unicode line and paragraph separators. Empty lines produced
// by \r\n pairs are dropped along with every other blank line.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

type lineKind int

const (
	lineOther lineKind = iota
	lineRisk
	lineRecommendation
)

func cleanLine(raw string) string {
	return strings.TrimSpace(strings.Trim(raw, bulletCutset))
}

// classifyLine applies the rules in order; the first match wins.
func classifyLine(line string) (lineKind, string) {
	lower := strings.ToLower(line)

	if strings.HasPrefix(lower, "risk:") || strings.HasPrefix(lower, "risk ") {
		if _, after, ok := strings.Cut(line, ":"); ok {
			return lineRisk, strings.TrimSpace(after)
		}
		return lineRisk, line
	}

	if strings.Contains(lower, "risk") && len(strings.Fields(line)) <= maxRiskTokens {
		return lineRisk, line
	}

	if strings.HasPrefix(lower, "recommendation:") ||
		strings.HasPrefix(lower, "buy") ||
		strings.HasPrefix(lower, "hold") ||
		strings.HasPrefix(lower, "sell") ||
		strings.Contains(lower, "recommend") {
		return lineRecommendation, line
	}

	return lineOther, ""
}

// FromState builds the summary for a finished pipeline state. A state that
// never reached a stage contributes empty values for it.
func FromState(state models.State, now time.Time) models.MarketSummary {
	collected := models.CollectedRecord{
		Company: state.Company,
		Ticker:  state.Ticker,
		Stock:   models.EmptySnapshot(state.Ticker),
	}
	if state.Collected != nil {
		collected = *state.Collected
	}
	text := ""
	if state.Analysis != nil {
		text = state.Analysis.AnalysisText
	}
	return Summarize(state.Company, collected, text, now)
}
