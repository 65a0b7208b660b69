package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

// Store is the persistence surface the service drives. Both the SQLite
// repository and the local file store satisfy it.
type Store interface {
	Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
	BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error)
	Summarize(ctx context.Context, start, end *core.Date) (core.Summary, error)
}

// EventPublisher announces transaction changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id int64, op string) error
	Close() error
}

// TransactionService orchestrates store operations and change events.
// A nil publisher disables events without changing behavior.
type TransactionService struct {
	store     Store
	publisher EventPublisher
}

func NewTransactionService(store Store, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// Create persists a transaction and publishes a created event.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	t, err := s.store.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, t.ID, amqp.OpCreated)
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	return s.store.List(ctx, f)
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

// Update replaces every non-id field and publishes an updated event.
func (s *TransactionService) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	t, err := s.store.Update(ctx, id, in)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, id, amqp.OpUpdated)
	return t, nil
}

// Delete removes a transaction and publishes a deleted event.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, id, amqp.OpDeleted)
	return nil
}

// BulkCreate stores a batch all-or-nothing and publishes a single created
// event with id 0 standing for "batch".
func (s *TransactionService) BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error) {
	n, err := s.store.BulkCreate(ctx, inputs)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.publish(ctx, 0, amqp.OpCreated)
	}
	return n, nil
}

func (s *TransactionService) Summarize(ctx context.Context, start, end *core.Date) (core.Summary, error) {
	return s.store.Summarize(ctx, start, end)
}

// publish never fails the calling operation: the store commit already
// happened, so a lost event only delays downstream exports.
func (s *TransactionService) publish(ctx context.Context, id int64, op string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id, "op", op, "error", err)
	}
}

// Close releases the publisher connection if one is attached.
func (s *TransactionService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
