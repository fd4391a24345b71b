// Package api exposes the categorization and history read surface the web
// frontend consumes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/smithy-go"
	"github.com/go-chi/chi/v5"

	"sentimatic/internal/categorizer"
	"sentimatic/internal/db"
	"sentimatic/internal/models"
	"sentimatic/internal/summary"
)

// historyPageSize caps the history view; the summary view reads everything.
const historyPageSize = 50

// Analyzer is the categorization service surface the handlers call.
type Analyzer interface {
	CategorizeOne(ctx context.Context, text, categories string) (models.AnalysisResult, error)
	CategorizeBatch(ctx context.Context, input, categories string) ([]models.AnalysisResult, error)
}

// HistoryReader is the read-only slice of the history store.
type HistoryReader interface {
	RecentRecords(ctx context.Context, limit int32) ([]models.HistoryRecord, error)
	AllRecords(ctx context.Context) ([]models.HistoryRecord, error)
}

type Service struct {
	analyzer Analyzer
	history  HistoryReader
	now      func() time.Time
}

func NewService(analyzer Analyzer, history HistoryReader) *Service {
	return &Service{analyzer: analyzer, history: history, now: time.Now}
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", RestHandler(s.Analyze))
		r.Post("/analyze/batch", RestHandler(s.AnalyzeBatch))
		r.Get("/history", RestHandler(s.History))
		r.Get("/summary", RestHandler(s.Summary))
	})
}

type AnalyzeRequest struct {
	Text string `json:"text"`
}

type BatchAnalyzeResponse struct {
	Results []models.AnalysisResult `json:"results"`
}

type HistoryResponse struct {
	Items []models.HistoryRecord `json:"items"`
}

func (s *Service) Analyze(r *http.Request) (any, error) {
	req, err := ParseRequest[AnalyzeRequest](r)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.CategorizeOne(r.Context(), req.Text, models.DefaultCategories)
	if err != nil {
		return nil, mapAnalysisError(err)
	}

	return result, nil
}

func (s *Service) AnalyzeBatch(r *http.Request) (any, error) {
	req, err := ParseRequest[AnalyzeRequest](r)
	if err != nil {
		return nil, err
	}

	results, err := s.analyzer.CategorizeBatch(r.Context(), req.Text, models.DefaultCategories)
	if err != nil {
		return nil, mapAnalysisError(err)
	}

	return BatchAnalyzeResponse{Results: results}, nil
}

func (s *Service) History(r *http.Request) (any, error) {
	records, err := s.history.RecentRecords(r.Context(), historyPageSize)
	if err != nil {
		return nil, mapHistoryError(err)
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}

	return HistoryResponse{Items: records}, nil
}

func (s *Service) Summary(r *http.Request) (any, error) {
	records, err := s.history.AllRecords(r.Context())
	if err != nil {
		return nil, mapHistoryError(err)
	}

	return summary.Build(records, s.now()), nil
}

// mapAnalysisError turns service errors into user-facing responses:
// validation messages pass through, model failures collapse into a generic
// try-again message.
func mapAnalysisError(err error) error {
	var verr *categorizer.ValidationError
	if errors.As(err, &verr) {
		return CodedErrorf(http.StatusBadRequest, "%s", verr.Message)
	}

	var merr *categorizer.ModelError
	if errors.As(err, &merr) {
		slog.Error("sentiment analysis failed",
			slog.String("reason", string(merr.Reason)),
			slog.String("error", merr.Error()))
		return CodedErrorf(http.StatusBadGateway, "failed to analyze sentiment, please try again later")
	}

	return CodedErrorf(http.StatusInternalServerError, "unexpected error during analysis")
}

// mapHistoryError keeps "not set up" distinguishable from "backend down".
func mapHistoryError(err error) error {
	var cerr *db.ConfigError
	if errors.As(err, &cerr) {
		slog.Error("history backend misconfigured", slog.String("error", cerr.Error()))
		return CodedErrorf(http.StatusInternalServerError, "history backend is not configured correctly, check the server environment")
	}

	slog.Error("history read failed", slog.String("error", err.Error()))
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		return CodedErrorf(http.StatusInternalServerError, "history backend denied access, check the table permissions")
	}
	return CodedErrorf(http.StatusInternalServerError, "could not fetch analysis history, please try again later")
}
