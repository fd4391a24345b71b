package categorizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentimatic/internal/models"
)

type mockChatCompleter struct {
	reply    string
	err      error
	calls    int
	lastReq  openai.ChatCompletionRequest
	noChoice bool
}

func (m *mockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if m.noChoice {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.reply}},
		},
	}, nil
}

type fakeStore struct {
	mu          sync.Mutex
	err         error
	records     []models.HistoryRecord
	singleCalls int
	batchCalls  int
}

func (f *fakeStore) AppendRecord(ctx context.Context, rec models.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleCalls++
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) AppendRecords(ctx context.Context, recs []models.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recs...)
	return nil
}

func (f *fakeStore) stored() []models.HistoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.HistoryRecord(nil), f.records...)
}

func newTestService(llm ChatCompleter, store HistoryStore) *Service {
	return NewService(llm, store, "gpt-test")
}

func TestCategorizeOneEmptyTextSkipsRemoteCall(t *testing.T) {
	llm := &mockChatCompleter{}
	svc := newTestService(llm, &fakeStore{})

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.CategorizeOne(context.Background(), text, models.DefaultCategories)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	}
	assert.Equal(t, 0, llm.calls)
}

func TestCategorizeOneSuccess(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"category": "Positive", "confidence": 0.97, "explanation": "The text expresses strong enthusiasm for the product."}`,
	}
	store := &fakeStore{}
	svc := newTestService(llm, store)

	result, err := svc.CategorizeOne(context.Background(), "I love this product!", models.DefaultCategories)
	require.NoError(t, err)

	assert.Equal(t, "I love this product!", result.InputText)
	assert.Equal(t, models.SentimentPositive, result.Category)
	assert.Equal(t, 0.97, result.Confidence)
	assert.NotEmpty(t, result.Explanation)

	assert.Equal(t, "gpt-test", llm.lastReq.Model)
	require.NotNil(t, llm.lastReq.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, llm.lastReq.ResponseFormat.Type)

	svc.Wait()
	records := store.stored()
	require.Len(t, records, 1)
	assert.Equal(t, "I love this product!", records[0].InputText)
	assert.Equal(t, models.SentimentPositive, records[0].Sentiment)
	assert.Equal(t, 0.97, records[0].Confidence)
}

func TestCategorizeOneFencedReply(t *testing.T) {
	llm := &mockChatCompleter{
		reply: "```json\n{\"category\": \"Negative\", \"confidence\": 0.8, \"explanation\": \"Complains about the wait.\"}\n```",
	}
	svc := newTestService(llm, &fakeStore{})

	result, err := svc.CategorizeOne(context.Background(), "Terrible wait", models.DefaultCategories)
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, result.Category)
}

func TestCategorizeOneRemoteFailure(t *testing.T) {
	llm := &mockChatCompleter{err: errors.New("connection refused")}
	store := &fakeStore{}
	svc := newTestService(llm, store)

	result, err := svc.CategorizeOne(context.Background(), "hello", models.DefaultCategories)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ModelUnreachable, merr.Reason)
	assert.Zero(t, result)

	svc.Wait()
	assert.Empty(t, store.stored())
}

func TestCategorizeOneSchemaViolations(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"not json", "The text is positive."},
		{"missing category", `{"confidence": 0.9, "explanation": "ok"}`},
		{"missing confidence", `{"category": "Positive", "explanation": "ok"}`},
		{"missing explanation", `{"category": "Positive", "confidence": 0.9}`},
		{"empty explanation", `{"category": "Positive", "confidence": 0.9, "explanation": "  "}`},
		{"unknown category", `{"category": "Mixed", "confidence": 0.9, "explanation": "ok"}`},
		{"confidence above one", `{"category": "Positive", "confidence": 1.5, "explanation": "ok"}`},
		{"negative confidence", `{"category": "Positive", "confidence": -0.1, "explanation": "ok"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &mockChatCompleter{reply: tc.reply}
			store := &fakeStore{}
			svc := newTestService(llm, store)

			result, err := svc.CategorizeOne(context.Background(), "some text", models.DefaultCategories)

			var merr *ModelError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, ModelMalformedReply, merr.Reason)
			assert.Zero(t, result)

			svc.Wait()
			assert.Empty(t, store.stored())
		})
	}
}

func TestCategorizeOneNoChoices(t *testing.T) {
	llm := &mockChatCompleter{noChoice: true}
	svc := newTestService(llm, &fakeStore{})

	_, err := svc.CategorizeOne(context.Background(), "some text", models.DefaultCategories)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ModelEmptyReply, merr.Reason)
}

func TestCategorizeOnePersistenceFailureDoesNotAffectResult(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"category": "Neutral", "confidence": 0.6, "explanation": "Neither positive nor negative."}`,
	}
	store := &fakeStore{err: errors.New("table missing")}
	svc := newTestService(llm, store)

	result, err := svc.CategorizeOne(context.Background(), "It was okay", models.DefaultCategories)
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, result.Category)

	svc.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.singleCalls)
}

func TestCategorizeBatchSuccess(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"results": [
			{"inputText": "Great service", "category": "Positive", "confidence": 0.95, "explanation": "Praises the service."},
			{"inputText": "Terrible wait", "category": "Negative", "confidence": 0.9, "explanation": "Complains about waiting."},
			{"inputText": "It was okay", "category": "Neutral", "confidence": 0.7, "explanation": "Expresses a middling opinion."}
		]}`,
	}
	store := &fakeStore{}
	svc := newTestService(llm, store)

	results, err := svc.CategorizeBatch(context.Background(), "Great service\nTerrible wait\nIt was okay", models.DefaultCategories)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Great service", results[0].InputText)
	assert.Equal(t, "Terrible wait", results[1].InputText)
	assert.Equal(t, "It was okay", results[2].InputText)
	assert.Equal(t, models.SentimentPositive, results[0].Category)
	assert.Equal(t, models.SentimentNegative, results[1].Category)
	assert.Equal(t, models.SentimentNeutral, results[2].Category)

	assert.Equal(t, 1, llm.calls)

	svc.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.batchCalls)
	assert.Len(t, store.records, 3)
}

func TestCategorizeBatchTrimsLinesAndDropsEmpties(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"results": [
			{"category": "Positive", "confidence": 0.9, "explanation": "Positive phrasing."},
			{"category": "Neutral", "confidence": 0.5, "explanation": "Neutral phrasing."}
		]}`,
	}
	svc := newTestService(llm, &fakeStore{})

	results, err := svc.CategorizeBatch(context.Background(), "  Great service  \n\n\t\nIt was okay\n", models.DefaultCategories)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Great service", results[0].InputText)
	assert.Equal(t, "It was okay", results[1].InputText)
}

func TestCategorizeBatchAllEmptyLinesSkipsRemoteCall(t *testing.T) {
	llm := &mockChatCompleter{}
	svc := newTestService(llm, &fakeStore{})

	_, err := svc.CategorizeBatch(context.Background(), "\n\n\n", models.DefaultCategories)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, llm.calls)
}

func TestCategorizeBatchCountMismatch(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"results": [
			{"category": "Positive", "confidence": 0.9, "explanation": "ok"}
		]}`,
	}
	store := &fakeStore{}
	svc := newTestService(llm, store)

	_, err := svc.CategorizeBatch(context.Background(), "one\ntwo\nthree", models.DefaultCategories)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ModelMalformedReply, merr.Reason)

	svc.Wait()
	assert.Empty(t, store.stored())
}

func TestCategorizeBatchReorderedEchoesRejected(t *testing.T) {
	// Right count, but the echoed texts show the model swapped two rows.
	llm := &mockChatCompleter{
		reply: `{"results": [
			{"inputText": "Terrible wait", "category": "Negative", "confidence": 0.9, "explanation": "Complains about waiting."},
			{"inputText": "Great service", "category": "Positive", "confidence": 0.95, "explanation": "Praises the service."}
		]}`,
	}
	store := &fakeStore{}
	svc := newTestService(llm, store)

	_, err := svc.CategorizeBatch(context.Background(), "Great service\nTerrible wait", models.DefaultCategories)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ModelMalformedReply, merr.Reason)

	svc.Wait()
	assert.Empty(t, store.stored())
}

func TestCategorizeBatchEmptyResultSet(t *testing.T) {
	llm := &mockChatCompleter{reply: `{"results": []}`}
	svc := newTestService(llm, &fakeStore{})

	_, err := svc.CategorizeBatch(context.Background(), "one\ntwo", models.DefaultCategories)

	var merr *ModelError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ModelEmptyReply, merr.Reason)
}

type blockingStore struct {
	fakeStore
	release chan struct{}
}

func (b *blockingStore) AppendRecord(ctx context.Context, rec models.HistoryRecord) error {
	<-b.release
	return b.fakeStore.AppendRecord(ctx, rec)
}

func TestWaitBlocksUntilDetachedWritesFinish(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"category": "Positive", "confidence": 0.9, "explanation": "ok"}`,
	}
	store := &blockingStore{release: make(chan struct{})}
	svc := newTestService(llm, store)

	_, err := svc.CategorizeOne(context.Background(), "hello", models.DefaultCategories)
	require.NoError(t, err)

	waited := make(chan struct{})
	go func() {
		svc.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a history write was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the history write finished")
	}

	require.Len(t, store.stored(), 1)
}

func TestCategorizeBatchPersistenceFailureDoesNotAffectResults(t *testing.T) {
	llm := &mockChatCompleter{
		reply: `{"results": [
			{"category": "Positive", "confidence": 0.9, "explanation": "ok"}
		]}`,
	}
	store := &fakeStore{err: errors.New("transaction canceled")}
	svc := newTestService(llm, store)

	results, err := svc.CategorizeBatch(context.Background(), "Great service", models.DefaultCategories)
	require.NoError(t, err)
	require.Len(t, results, 1)

	svc.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.batchCalls)
}
