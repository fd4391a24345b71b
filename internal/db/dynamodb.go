// Package db persists categorization history in DynamoDB. All records
// share one partition so recent-first reads are plain descending queries
// on the time-ordered sort key.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"sentimatic/internal/models"
)

const (
	historyPartition = "HISTORY"

	// Fixed-width UTC timestamps so the sort key orders chronologically.
	timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

	// DynamoDB caps TransactWriteItems at 100 items per transaction.
	maxTransactItems = 100
)

// ConfigError means the store is not set up (missing or unknown table)
// rather than temporarily unavailable. The API layer surfaces the two
// cases differently so operators can tell them apart.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

type HistoryStore struct {
	client *dynamodb.Client
	table  string

	now   func() time.Time
	newID func() string
}

func NewHistoryStore(client *dynamodb.Client, table string) (*HistoryStore, error) {
	if table == "" {
		return nil, &ConfigError{Msg: "history table name is not configured, set HISTORY_TABLE_NAME"}
	}
	return &HistoryStore{
		client: client,
		table:  table,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// AppendRecord writes one history record. The store assigns the record ID
// and a server-side timestamp; records are never updated after this write.
func (s *HistoryStore) AppendRecord(ctx context.Context, rec models.HistoryRecord) error {
	item, err := s.stampAndMarshal(rec)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to write history record: %w", s.classify(err))
	}
	return nil
}

// AppendRecords writes a batch of history records in one transaction.
// Either every record lands or none do.
func (s *HistoryStore) AppendRecords(ctx context.Context, recs []models.HistoryRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if len(recs) > maxTransactItems {
		return fmt.Errorf("[DynamoDB] batch of %d records exceeds the %d item transaction limit", len(recs), maxTransactItems)
	}

	writes := make([]types.TransactWriteItem, 0, len(recs))
	for _, rec := range recs {
		item, err := s.stampAndMarshal(rec)
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.table),
				Item:      item,
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to transact-write %d history records: %w", len(recs), s.classify(err))
	}

	slog.Debug("[DynamoDB] stored history batch", slog.Int("count", len(recs)))
	return nil
}

// RecentRecords returns the most recent limit records, newest first.
func (s *HistoryStore) RecentRecords(ctx context.Context, limit int32) ([]models.HistoryRecord, error) {
	out, err := s.client.Query(ctx, s.descendingQuery(&limit))
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] history query failed: %w", s.classify(err))
	}

	return unmarshalRecords(out.Items)
}

// AllRecords returns every history record, newest first.
func (s *HistoryStore) AllRecords(ctx context.Context) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord

	paginator := dynamodb.NewQueryPaginator(s.client, s.descendingQuery(nil))
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] history query failed: %w", s.classify(err))
		}
		page, err := unmarshalRecords(out.Items)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
	}

	return records, nil
}

func (s *HistoryStore) descendingQuery(limit *int32) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: historyPartition},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit != nil {
		input.Limit = limit
	}
	return input
}

// classify maps a missing table onto ConfigError; anything else is left as
// an availability problem.
func (s *HistoryStore) classify(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &ConfigError{Msg: fmt.Sprintf("history table %q does not exist, check HISTORY_TABLE_NAME and table provisioning", s.table)}
	}
	return err
}

// historyItem is the stored document shape. pk/sk carry the key schema;
// the rest mirrors the public record fields.
type historyItem struct {
	PK          string  `dynamodbav:"pk"`
	SK          string  `dynamodbav:"sk"`
	ID          string  `dynamodbav:"id"`
	InputText   string  `dynamodbav:"input_text"`
	Sentiment   string  `dynamodbav:"sentiment"`
	Confidence  float64 `dynamodbav:"confidence"`
	Explanation string  `dynamodbav:"explanation"`
	Timestamp   string  `dynamodbav:"timestamp"`
}

func (s *HistoryStore) stampAndMarshal(rec models.HistoryRecord) (map[string]types.AttributeValue, error) {
	rec.ID = s.newID()
	rec.Timestamp = s.now().UTC()

	item, err := attributevalue.MarshalMap(recordToItem(rec))
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] failed to marshal history record: %w", err)
	}
	return item, nil
}

func recordToItem(rec models.HistoryRecord) historyItem {
	ts := rec.Timestamp.UTC().Format(timestampFormat)
	return historyItem{
		PK:          historyPartition,
		SK:          ts + "#" + rec.ID,
		ID:          rec.ID,
		InputText:   rec.InputText,
		Sentiment:   string(rec.Sentiment),
		Confidence:  rec.Confidence,
		Explanation: rec.Explanation,
		Timestamp:   ts,
	}
}

func itemToRecord(item historyItem) (models.HistoryRecord, error) {
	ts, err := time.Parse(timestampFormat, item.Timestamp)
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("[DynamoDB] record %s has a malformed timestamp %q: %w", item.ID, item.Timestamp, err)
	}
	return models.HistoryRecord{
		ID:          item.ID,
		InputText:   item.InputText,
		Sentiment:   models.Sentiment(item.Sentiment),
		Confidence:  item.Confidence,
		Explanation: item.Explanation,
		Timestamp:   ts,
	}, nil
}

func unmarshalRecords(items []map[string]types.AttributeValue) ([]models.HistoryRecord, error) {
	var page []historyItem
	if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
		return nil, fmt.Errorf("[DynamoDB] failed to unmarshal history page: %w", err)
	}

	records := make([]models.HistoryRecord, 0, len(page))
	for _, item := range page {
		rec, err := itemToRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
