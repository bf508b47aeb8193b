package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/responder"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// Fixed document keys in the config table.
const (
	keyPatterns  = "patterns"
	keyResponses = "responses"
	keyPackages  = "packages"
)

// ErrConfigNotFound indicates the config document has not been seeded.
var ErrConfigNotFound = errors.New("store: config document not found")

// ErrConfigConflict indicates a concurrent writer updated the config document
// since it was loaded.
var ErrConfigConflict = errors.New("store: config version conflict")

// patternsDoc wraps the pattern table with its document key.
type patternsDoc struct {
	ConfigKey string          `dynamodbav:"configKey"`
	Table     *patterns.Table `dynamodbav:"table"`
	Version   int64           `dynamodbav:"version"`
	UpdatedAt time.Time       `dynamodbav:"updatedAt"`
}

type responsesDoc struct {
	ConfigKey string           `dynamodbav:"configKey"`
	Table     *responder.Table `dynamodbav:"table"`
	Facts     responder.Facts  `dynamodbav:"facts"`
	UpdatedAt time.Time        `dynamodbav:"updatedAt"`
}

type packagesDoc struct {
	ConfigKey string              `dynamodbav:"configKey"`
	Packages  []responder.Package `dynamodbav:"packages"`
	UpdatedAt time.Time           `dynamodbav:"updatedAt"`
}

// ConfigStore reads and writes the shared configuration documents: the
// pattern table (read-write, versioned), reply templates and the package
// list (read-only at runtime, written by seeding).
type ConfigStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewConfigStore builds a config store over the given table.
func NewConfigStore(client dynamoAPI, tableName string, logger *logging.Logger) *ConfigStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfigStore{client: client, tableName: tableName, logger: logger}
}

// GetPatterns loads the pattern table. The returned table carries the
// version PutPatterns will check.
func (s *ConfigStore) GetPatterns(ctx context.Context) (*patterns.Table, error) {
	item, err := s.getItem(ctx, keyPatterns)
	if err != nil {
		return nil, err
	}

	var doc patternsDoc
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to decode pattern table: %w", err)
	}
	if doc.Table == nil {
		return nil, fmt.Errorf("store: pattern document has no table")
	}
	doc.Table.Version = doc.Version
	return doc.Table, nil
}

// PutPatterns writes the pattern table with the same optimistic discipline
// as sessions: the stored version must still match the table's version at
// load, and the version is bumped on success.
func (s *ConfigStore) PutPatterns(ctx context.Context, table *patterns.Table) error {
	if table == nil {
		return errors.New("store: pattern table cannot be nil")
	}

	ctx, span := tracer.Start(ctx, "store.put_patterns")
	defer span.End()

	loadedVersion := table.Version
	table.Version++

	item, err := attributevalue.MarshalMap(patternsDoc{
		ConfigKey: keyPatterns,
		Table:     table,
		Version:   table.Version,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		table.Version = loadedVersion
		return fmt.Errorf("store: failed to marshal pattern table: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if loadedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(configKey) OR version = :v")
	} else {
		input.ConditionExpression = aws.String("version = :v")
	}
	input.ExpressionAttributeValues = map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(loadedVersion, 10)},
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		table.Version = loadedVersion
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrConfigConflict
		}
		span.RecordError(err)
		return fmt.Errorf("store: failed to persist pattern table: %w", err)
	}
	return nil
}

// GetResponses loads the reply templates and business facts.
func (s *ConfigStore) GetResponses(ctx context.Context) (*responder.Table, responder.Facts, error) {
	item, err := s.getItem(ctx, keyResponses)
	if err != nil {
		return nil, responder.Facts{}, err
	}

	var doc responsesDoc
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, responder.Facts{}, fmt.Errorf("store: failed to decode responses: %w", err)
	}
	if doc.Table == nil {
		return nil, responder.Facts{}, fmt.Errorf("store: responses document has no table")
	}
	return doc.Table, doc.Facts, nil
}

// GetPackages loads the configured package list.
func (s *ConfigStore) GetPackages(ctx context.Context) ([]responder.Package, error) {
	item, err := s.getItem(ctx, keyPackages)
	if err != nil {
		return nil, err
	}

	var doc packagesDoc
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to decode packages: %w", err)
	}
	return doc.Packages, nil
}

// Seed writes the responses and packages documents unconditionally. Used by
// deployment tooling, not by the running engine.
func (s *ConfigStore) Seed(ctx context.Context, table *responder.Table, facts responder.Facts, pkgs []responder.Package) error {
	now := time.Now().UTC()

	respItem, err := attributevalue.MarshalMap(responsesDoc{
		ConfigKey: keyResponses,
		Table:     table,
		Facts:     facts,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("store: failed to marshal responses: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      respItem,
	}); err != nil {
		return fmt.Errorf("store: failed to seed responses: %w", err)
	}

	pkgItem, err := attributevalue.MarshalMap(packagesDoc{
		ConfigKey: keyPackages,
		Packages:  pkgs,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("store: failed to marshal packages: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      pkgItem,
	}); err != nil {
		return fmt.Errorf("store: failed to seed packages: %w", err)
	}
	return nil
}

func (s *ConfigStore) getItem(ctx context.Context, key string) (map[string]types.AttributeValue, error) {
	ctx, span := tracer.Start(ctx, "store.get_config",
		trace.WithAttributes(attribute.String("config.key", key)))
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"configKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: failed to fetch config %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, ErrConfigNotFound
	}
	return out.Item, nil
}
