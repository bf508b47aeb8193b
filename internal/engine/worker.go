package engine

import (
	"context"
	"errors"
	"time"

	"github.com/smritistudio/chat-engine/pkg/logging"
)

// receive batch tuning for the intake worker.
const (
	intakeBatchSize   = 10
	intakeWaitSeconds = 5
)

// IntakeWorker drains the learning queue: each unrecognized message gets a
// best-effort intent suggestion and is folded into the pending-pattern table
// with the usual optimistic-write discipline.
type IntakeWorker struct {
	queue  Queue
	config configSource
	ai     aiCompleter
	logger *logging.Logger
	now    func() time.Time
}

// NewIntakeWorker builds the worker.
func NewIntakeWorker(queue Queue, config configSource, ai aiCompleter, logger *logging.Logger) *IntakeWorker {
	if queue == nil {
		panic("engine: intake queue cannot be nil")
	}
	if config == nil {
		panic("engine: config source cannot be nil")
	}
	if ai == nil {
		panic("engine: ai completer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IntakeWorker{
		queue:  queue,
		config: config,
		ai:     ai,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *IntakeWorker) Run(ctx context.Context) error {
	w.logger.Info("learning intake worker started")
	for {
		messages, err := w.queue.Receive(ctx, intakeBatchSize, intakeWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("learning intake worker stopping")
				return nil
			}
			w.logger.Error("failed to receive intake messages", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			if err := w.handle(ctx, msg.Body); err != nil {
				w.logger.Error("failed to process intake message", "error", err)
				continue
			}
			if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
				w.logger.Warn("failed to delete intake message", "error", err)
			}
		}
	}
}

func (w *IntakeWorker) handle(ctx context.Context, body string) error {
	payload, err := decodeIntake(body)
	if err != nil {
		return err
	}
	if payload.Message == "" {
		return nil
	}

	// Suggestion failure degrades to the fallback intent inside the
	// dispatcher; learning never blocks on it.
	suggested := w.ai.SuggestIntent(ctx, payload.Message)

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		table, err := w.config.GetPatterns(ctx)
		if err != nil {
			return err
		}
		if table.RecordUnrecognized(payload.Message, suggested, w.now()) == 0 {
			return nil
		}
		if err := w.config.PutPatterns(ctx, table); err != nil {
			if isConfigConflict(err) {
				continue
			}
			return err
		}
		return nil
	}
	return errors.New("engine: intake write kept conflicting")
}
