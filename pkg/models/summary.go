package models

// Caps applied when a MarketSummary is built.
const (
	MaxRisks           = 6
	MaxRecommendations = 5
	MaxTopNews         = 5
)

// MarketSummary is the final, serializable output of a pipeline run.
type MarketSummary struct {
	Company         string        `json:"company"         yaml:"company"         toml:"company"`
	AsOf            string        `json:"as_of"           yaml:"as_of"           toml:"as_of"`
	PriceSnapshot   StockSnapshot `json:"price_snapshot"  yaml:"price_snapshot"  toml:"price_snapshot"`
	TopNews         []NewsItem    `json:"top_news"        yaml:"top_news"        toml:"top_news"`
	Analysis        string        `json:"analysis"        yaml:"analysis"        toml:"analysis"`
	Risks           []string      `json:"risks"           yaml:"risks"           toml:"risks"`
	Recommendations []string      `json:"recommendations" yaml:"recommendations" toml:"recommendations"`
}
