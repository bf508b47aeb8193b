package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue is the transport for learning-intake messages. SQS in production,
// an in-process channel for local runs and tests.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// intakePayload is one unrecognized message handed to the learning pipeline.
// The intent suggestion happens on the consumer side so a slow suggestion
// call never sits on the user-facing path.
type intakePayload struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func encodeIntake(payload intakePayload) (string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("engine: failed to encode intake payload: %w", err)
	}
	return string(body), nil
}

func decodeIntake(body string) (intakePayload, error) {
	var payload intakePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return intakePayload{}, fmt.Errorf("engine: failed to decode intake payload: %w", err)
	}
	return payload, nil
}
