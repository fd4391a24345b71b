package categorizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"sentimatic/internal/models"
)

// cleanModelReply strips markdown code fences the model sometimes wraps
// around its JSON reply, even when a JSON response format was requested.
func cleanModelReply(reply string) string {
	cleaned := strings.TrimSpace(reply)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}

// decodeSingle parses one categorization reply and enforces the result
// schema. InputText is left empty; the caller echoes the request text.
func decodeSingle(reply string, allowed map[models.Sentiment]struct{}) (models.AnalysisResult, error) {
	var raw models.ModelCategorization
	if err := json.Unmarshal([]byte(cleanModelReply(reply)), &raw); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("reply is not valid JSON: %w", err)
	}

	return resultFromRaw(raw.Category, raw.Confidence, raw.Explanation, allowed)
}

// decodeBatch parses a batch reply into ordered results. Each result
// carries the model's echoed inputText, trimmed; count and echo alignment
// against the input are the caller's responsibility.
func decodeBatch(reply string, allowed map[models.Sentiment]struct{}) ([]models.AnalysisResult, error) {
	var raw models.ModelBatchCategorization
	if err := json.Unmarshal([]byte(cleanModelReply(reply)), &raw); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}

	results := make([]models.AnalysisResult, 0, len(raw.Results))
	for i, item := range raw.Results {
		result, err := resultFromRaw(item.Category, item.Confidence, item.Explanation, allowed)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		if item.InputText != nil {
			result.InputText = strings.TrimSpace(*item.InputText)
		}
		results = append(results, result)
	}

	return results, nil
}

func resultFromRaw(category *string, confidence *float64, explanation *string, allowed map[models.Sentiment]struct{}) (models.AnalysisResult, error) {
	if category == nil {
		return models.AnalysisResult{}, fmt.Errorf("missing required field %q", "category")
	}
	if confidence == nil {
		return models.AnalysisResult{}, fmt.Errorf("missing required field %q", "confidence")
	}
	if explanation == nil {
		return models.AnalysisResult{}, fmt.Errorf("missing required field %q", "explanation")
	}

	result := models.AnalysisResult{
		Category:    models.Sentiment(strings.TrimSpace(*category)),
		Confidence:  *confidence,
		Explanation: strings.TrimSpace(*explanation),
	}
	if err := result.Validate(allowed); err != nil {
		return models.AnalysisResult{}, err
	}

	return result, nil
}
