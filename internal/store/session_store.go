// Package store persists session and configuration documents in DynamoDB.
// All writes are optimistic: a conditional expression pins the version read
// at load time, and a condition failure surfaces as a conflict the caller
// retries.
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
	"go.opentelemetry.io/otel"

	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

var tracer = otel.Tracer("smritistudio.internal.store")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// SessionStore persists chat sessions to DynamoDB, keyed by sessionId.
type SessionStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ session.Repository = (*SessionStore)(nil)

// NewSessionStore builds a store backed by the provided DynamoDB client.
func NewSessionStore(client dynamoAPI, tableName string, logger *logging.Logger) *SessionStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionStore{client: client, tableName: tableName, logger: logger}
}

// Get fetches a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, errors.New("store: sessionID required")
	}
	ctx, span := tracer.Start(ctx, "store.get_session")
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: failed to fetch session %s: %w", sessionID, err)
	}
	if out.Item == nil {
		return nil, session.ErrNotFound
	}

	var sess session.Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return nil, fmt.Errorf("store: failed to decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Put writes the session. A new document (version 0) must not already exist;
// an update must still carry the version it was loaded with. Either condition
// failing returns session.ErrConflict, and the document's version is bumped
// on success so a retry loop reloads before writing again.
func (s *SessionStore) Put(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("store: session cannot be nil")
	}
	ctx, span := tracer.Start(ctx, "store.put_session")
	defer span.End()

	loadedVersion := sess.Version
	sess.Version++
	sess.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		sess.Version = loadedVersion
		return fmt.Errorf("store: failed to marshal session: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if loadedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(sessionId)")
	} else {
		input.ConditionExpression = aws.String("version = :v")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(loadedVersion, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		sess.Version = loadedVersion
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return session.ErrConflict
		}
		span.RecordError(err)
		return fmt.Errorf("store: failed to persist session %s: %w", sess.SessionID, err)
	}
	return nil
}
