package models

import (
	"fmt"
	"strings"
)

// Sentiment is the closed label set the categorizer is allowed to assign.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// DefaultCategories is the comma-separated category list sent with every
// categorization request.
const DefaultCategories = "Positive, Negative, Neutral"

// ParseCategories splits a comma-separated category list into the set of
// labels a model reply is allowed to use.
func ParseCategories(categories string) (map[Sentiment]struct{}, error) {
	allowed := make(map[Sentiment]struct{})
	for _, c := range strings.Split(categories, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		allowed[Sentiment(c)] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("category list %q contains no categories", categories)
	}
	return allowed, nil
}

// AnalysisResult is one validated categorization returned to the caller.
// InputText is always echoed from the request, never taken from the model.
type AnalysisResult struct {
	InputText   string    `json:"input_text"`
	Category    Sentiment `json:"category"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation"`
}

// Validate enforces the result contract: a category from the allowed set,
// confidence within [0,1], and a non-empty explanation.
func (r AnalysisResult) Validate(allowed map[Sentiment]struct{}) error {
	if _, ok := allowed[r.Category]; !ok {
		return fmt.Errorf("category %q is not in the allowed set", r.Category)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v is outside [0,1]", r.Confidence)
	}
	if strings.TrimSpace(r.Explanation) == "" {
		return fmt.Errorf("explanation is empty")
	}
	return nil
}
