// Package categorizer implements the sentiment categorization flows: it
// builds the model instruction, enforces the reply schema, and mirrors
// validated results into the history store without blocking the caller.
package categorizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sentimatic/internal/models"
)

const defaultPersistTimeout = 10 * time.Second

// ChatCompleter is the slice of the OpenAI client the service needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// HistoryStore receives validated results. AppendRecords must be
// all-or-nothing at the storage layer.
type HistoryStore interface {
	AppendRecord(ctx context.Context, rec models.HistoryRecord) error
	AppendRecords(ctx context.Context, recs []models.HistoryRecord) error
}

type Service struct {
	llm   ChatCompleter
	store HistoryStore
	model string

	persistTimeout time.Duration
	persistWG      sync.WaitGroup
}

func NewService(llm ChatCompleter, store HistoryStore, model string) *Service {
	return &Service{
		llm:            llm,
		store:          store,
		model:          model,
		persistTimeout: defaultPersistTimeout,
	}
}

// CategorizeOne categorizes a single text against a comma-separated
// category list. The returned result echoes the submitted text verbatim.
func (s *Service) CategorizeOne(ctx context.Context, text, categories string) (models.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.AnalysisResult{}, &ValidationError{Message: "text input cannot be empty"}
	}

	allowed, err := models.ParseCategories(categories)
	if err != nil {
		return models.AnalysisResult{}, &ValidationError{Message: err.Error()}
	}

	reply, err := s.complete(ctx, buildSingleMessages(text, categories))
	if err != nil {
		return models.AnalysisResult{}, err
	}

	result, err := decodeSingle(reply, allowed)
	if err != nil {
		return models.AnalysisResult{}, &ModelError{Reason: ModelMalformedReply, Err: err}
	}
	result.InputText = text

	s.persistDetached("append_record", func(ctx context.Context) error {
		return s.store.AppendRecord(ctx, models.RecordFromResult(result))
	})

	return result, nil
}

// CategorizeBatch splits input on newlines, trims each line, drops empty
// ones, and categorizes the survivors in a single model call. Results come
// back in input order, one per line, each echoing its trimmed line.
func (s *Service) CategorizeBatch(ctx context.Context, input, categories string) ([]models.AnalysisResult, error) {
	lines := splitLines(input)
	if len(lines) == 0 {
		return nil, &ValidationError{Message: "no text to analyze, provide at least one non-empty line"}
	}

	allowed, err := models.ParseCategories(categories)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	reply, err := s.complete(ctx, buildBatchMessages(lines, categories))
	if err != nil {
		return nil, err
	}

	decoded, err := decodeBatch(reply, allowed)
	if err != nil {
		return nil, &ModelError{Reason: ModelMalformedReply, Err: err}
	}
	if len(decoded) == 0 {
		return nil, &ModelError{Reason: ModelEmptyReply, Err: fmt.Errorf("model returned no results for %d texts", len(lines))}
	}
	// The model is not trusted to preserve order on its own: a count
	// mismatch, or an echoed inputText that disagrees with its line,
	// means results cannot be aligned with the input, so the whole call
	// fails rather than returning a misaligned list.
	if len(decoded) != len(lines) {
		return nil, &ModelError{
			Reason: ModelMalformedReply,
			Err:    fmt.Errorf("model returned %d results for %d texts", len(decoded), len(lines)),
		}
	}

	results := make([]models.AnalysisResult, len(decoded))
	records := make([]models.HistoryRecord, len(decoded))
	for i, d := range decoded {
		if d.InputText != "" && d.InputText != lines[i] {
			return nil, &ModelError{
				Reason: ModelMalformedReply,
				Err:    fmt.Errorf("result %d echoes %q, expected %q", i, d.InputText, lines[i]),
			}
		}
		d.InputText = lines[i]
		results[i] = d
		records[i] = models.RecordFromResult(d)
	}

	s.persistDetached("append_records", func(ctx context.Context) error {
		return s.store.AppendRecords(ctx, records)
	})

	return results, nil
}

// Wait blocks until all detached history writes have finished. Called on
// shutdown so in-flight best-effort writes are not cut off mid-request.
func (s *Service) Wait() {
	s.persistWG.Wait()
}

func (s *Service) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", &ModelError{Reason: ModelUnreachable, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ModelError{Reason: ModelEmptyReply, Err: fmt.Errorf("response contained no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}

// persistDetached runs a history write on its own goroutine with its own
// timeout. Failures are logged and never surfaced to the caller; history
// is best-effort by design of the flows, not a durability guarantee.
func (s *Service) persistDetached(op string, write func(ctx context.Context) error) {
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()

		if err := write(ctx); err != nil {
			perr := &PersistenceError{Op: op, Err: err}
			slog.Error("[Categorizer] best-effort history write failed",
				slog.String("op", op),
				slog.String("error", perr.Error()))
		}
	}()
}

func splitLines(input string) []string {
	var lines []string
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
