package models

import "time"

// HistoryRecord is one persisted categorization. ID and Timestamp are
// assigned by the store at write time; records are never updated afterwards.
type HistoryRecord struct {
	ID          string    `json:"id"`
	InputText   string    `json:"input_text"`
	Sentiment   Sentiment `json:"sentiment"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordFromResult shapes an analysis result for the history table.
func RecordFromResult(res AnalysisResult) HistoryRecord {
	return HistoryRecord{
		InputText:   res.InputText,
		Sentiment:   res.Category,
		Confidence:  res.Confidence,
		Explanation: res.Explanation,
	}
}
