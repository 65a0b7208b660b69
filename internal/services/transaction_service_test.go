package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

type fakeStore struct {
	tx   core.Transaction
	bulk int
	err  error
}

func (f *fakeStore) Create(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	return f.tx, f.err
}

func (f *fakeStore) List(_ context.Context, _ core.Filter) ([]core.Transaction, error) {
	return []core.Transaction{f.tx}, f.err
}

func (f *fakeStore) Get(_ context.Context, _ int64) (core.Transaction, error) {
	return f.tx, f.err
}

func (f *fakeStore) Update(_ context.Context, _ int64, _ core.TransactionInput) (core.Transaction, error) {
	return f.tx, f.err
}

func (f *fakeStore) Delete(_ context.Context, _ int64) error {
	return f.err
}

func (f *fakeStore) BulkCreate(_ context.Context, _ []core.TransactionInput) (int, error) {
	return f.bulk, f.err
}

func (f *fakeStore) Summarize(_ context.Context, _, _ *core.Date) (core.Summary, error) {
	return core.Summary{Period: "No data"}, f.err
}

type publishedEvent struct {
	id int64
	op string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
	closed bool
}

func (f *fakePublisher) PublishTransactionEvent(_ context.Context, id int64, op string) error {
	f.events = append(f.events, publishedEvent{id: id, op: op})
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func validInput() core.TransactionInput {
	return core.TransactionInput{
		Date:        core.NewDate(2024, 1, 1),
		Category:    "Food",
		Description: "groceries",
		Amount:      decimal.RequireFromString("10"),
		Type:        core.TypeExpense,
	}
}

func TestEventsFollowWrites(t *testing.T) {
	store := &fakeStore{tx: core.Transaction{ID: 5}, bulk: 2}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Update(ctx, 5, validInput()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.BulkCreate(ctx, []core.TransactionInput{validInput(), validInput()}); err != nil {
		t.Fatalf("bulk create: %v", err)
	}

	want := []publishedEvent{
		{5, amqp.OpCreated},
		{5, amqp.OpUpdated},
		{5, amqp.OpDeleted},
		{0, amqp.OpCreated},
	}
	if len(pub.events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(pub.events), len(want), pub.events)
	}
	for i, ev := range want {
		if pub.events[i] != ev {
			t.Fatalf("event %d: got %+v, want %+v", i, pub.events[i], ev)
		}
	}
}

func TestNoEventOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: core.ErrNotFound}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)
	ctx := context.Background()

	if err := svc.Delete(ctx, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Update(ctx, 1, validInput()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("failed writes must not publish events: %+v", pub.events)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	store := &fakeStore{tx: core.Transaction{ID: 1}}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, pub)

	if _, err := svc.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("a lost event must not fail the write: %v", err)
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	store := &fakeStore{tx: core.Transaction{ID: 1}}
	svc := NewTransactionService(store, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCloseReleasesPublisher(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(&fakeStore{}, pub)
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}
}

func TestEmptyBulkPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(&fakeStore{bulk: 0}, pub)

	n, err := svc.BulkCreate(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("bulk: n=%d err=%v", n, err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("empty batch published an event")
	}
}
