// Package summary aggregates history records for the dashboard: totals,
// average confidence, sentiment distribution, and a 7-day daily trend.
package summary

import (
	"time"

	"sentimatic/internal/models"
)

const trendDays = 7

type SentimentCount struct {
	Sentiment models.Sentiment `json:"sentiment"`
	Count     int              `json:"count"`
}

// DailyTrend counts analyses per sentiment for one calendar day.
type DailyTrend struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
}

type Overview struct {
	Total int `json:"total"`
	// AverageConfidence is a percentage (0-100), matching how the
	// dashboard renders it.
	AverageConfidence float64          `json:"average_confidence"`
	Distribution      []SentimentCount `json:"distribution"`
	Trend             []DailyTrend     `json:"trend"`
}

// Build aggregates records into an Overview. The trend covers the 7
// calendar days ending at now, oldest day first; records older than that
// still count toward the totals and distribution.
func Build(records []models.HistoryRecord, now time.Time) Overview {
	if len(records) == 0 {
		return Overview{}
	}

	var totalConfidence float64
	counts := make(map[models.Sentiment]int)
	for _, rec := range records {
		totalConfidence += rec.Confidence
		counts[rec.Sentiment]++
	}

	var distribution []SentimentCount
	for _, s := range []models.Sentiment{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral} {
		if counts[s] > 0 {
			distribution = append(distribution, SentimentCount{Sentiment: s, Count: counts[s]})
		}
	}

	return Overview{
		Total:             len(records),
		AverageConfidence: totalConfidence / float64(len(records)) * 100,
		Distribution:      distribution,
		Trend:             buildTrend(records, now),
	}
}

func buildTrend(records []models.HistoryRecord, now time.Time) []DailyTrend {
	start := startOfDay(now).AddDate(0, 0, -(trendDays - 1))

	trend := make([]DailyTrend, trendDays)
	index := make(map[string]*DailyTrend, trendDays)
	for i := range trend {
		day := start.AddDate(0, 0, i)
		trend[i].Date = day.Format("Jan 2")
		index[day.Format("2006-01-02")] = &trend[i]
	}

	for _, rec := range records {
		day, ok := index[rec.Timestamp.In(now.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		switch rec.Sentiment {
		case models.SentimentPositive:
			day.Positive++
		case models.SentimentNegative:
			day.Negative++
		case models.SentimentNeutral:
			day.Neutral++
		}
	}

	return trend
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
