package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/localstore"
)

func newTestLocal(t *testing.T) *localstore.Store {
	t.Helper()
	dir := t.TempDir()
	return localstore.New(filepath.Join(dir, "local.json"), filepath.Join(dir, "backups"))
}

func sampleInput() core.TransactionInput {
	return core.TransactionInput{
		Date:        core.NewDate(2024, 6, 1),
		Category:    "Food",
		Description: "groceries",
		Amount:      decimal.RequireFromString("42.50"),
		Type:        core.TypeExpense,
	}
}

func TestStartsLocalWhenRemoteUnreachable(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	// nothing listens on this address
	c := New(ctx, "http://127.0.0.1:1", local, Options{})
	if c.Online() {
		t.Fatalf("expected local mode against an unreachable server")
	}
	if c.Mode() != "local" {
		t.Fatalf("mode: %q", c.Mode())
	}

	created, err := c.Create(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected locally assigned id 1, got %d", created.ID)
	}

	// the record must be in the file store, not lost
	if _, err := local.Get(ctx, created.ID); err != nil {
		t.Fatalf("record not in local store: %v", err)
	}
}

func TestDowngradeIsOneWay(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/transactions/":
			json.NewEncoder(w).Encode([]core.Transaction{})
		case r.Method == http.MethodPost && r.URL.Path == "/transactions/":
			var in core.TransactionInput
			json.NewDecoder(r.Body).Decode(&in)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(in.WithID(7))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(ctx, srv.URL, local, Options{})
	if !c.Online() {
		t.Fatalf("expected remote mode at startup")
	}

	created, err := c.Create(ctx, sampleInput())
	if err != nil {
		t.Fatalf("remote create: %v", err)
	}
	if created.ID != 7 {
		t.Fatalf("expected remote id 7, got %d", created.ID)
	}

	failing.Store(true)
	if _, err := c.Create(ctx, sampleInput()); err != nil {
		t.Fatalf("fallback create should succeed locally: %v", err)
	}
	if c.Online() {
		t.Fatalf("expected downgrade after remote failure")
	}

	// the server recovers, but only CheckRemote may restore remote mode
	failing.Store(false)
	if _, err := c.List(ctx, core.Filter{}); err != nil {
		t.Fatalf("local list: %v", err)
	}
	if c.Online() {
		t.Fatalf("client must not silently return to remote mode")
	}

	if !c.CheckRemote(ctx) {
		t.Fatalf("explicit re-probe should succeed")
	}
	if !c.Online() {
		t.Fatalf("expected remote mode after CheckRemote")
	}
}

func TestRemoteNotFoundDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	// seed the local store with the id the remote is missing
	if _, err := local.Create(ctx, sampleInput()); err != nil {
		t.Fatalf("seed local: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/transactions/" {
			json.NewEncoder(w).Encode([]core.Transaction{})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction not found"})
	}))
	defer srv.Close()

	c := New(ctx, srv.URL, local, Options{})
	if _, err := c.Get(ctx, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected core.ErrNotFound from remote 404, got %v", err)
	}
	if !c.Online() {
		t.Fatalf("a 404 is a logical outcome and must not downgrade the client")
	}
}

func TestRemoteValidationErrorDoesNotFallBack(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/transactions/" {
			json.NewEncoder(w).Encode([]core.Transaction{})
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction type must be income or expense"})
	}))
	defer srv.Close()

	c := New(ctx, srv.URL, local, Options{})
	_, err := c.Create(ctx, sampleInput())
	if err == nil {
		t.Fatalf("expected validation error from remote")
	}
	if !c.Online() {
		t.Fatalf("a validation rejection must not downgrade the client")
	}

	// nothing may have leaked into the fallback store
	items, err := local.List(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("local list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected create leaked into local store")
	}
}

func TestSyncLocalToRemote(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	for i := 0; i < 3; i++ {
		if _, err := local.Create(ctx, sampleInput()); err != nil {
			t.Fatalf("seed local: %v", err)
		}
	}

	var received []core.TransactionInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/transactions/":
			json.NewEncoder(w).Encode([]core.Transaction{})
		case r.Method == http.MethodPost && r.URL.Path == "/transactions/bulk/":
			json.NewDecoder(r.Body).Decode(&received)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]int{"created": len(received)})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(ctx, srv.URL, local, Options{})
	n, err := c.SyncLocalToRemote(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 3 || len(received) != 3 {
		t.Fatalf("expected 3 records pushed, got n=%d received=%d", n, len(received))
	}

	// a successful sync empties the local store
	items, err := local.List(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("local list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("local store not truncated after sync: %d items", len(items))
	}
}

func TestSyncRequiresRemote(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	if _, err := local.Create(ctx, sampleInput()); err != nil {
		t.Fatalf("seed local: %v", err)
	}

	c := New(ctx, "http://127.0.0.1:1", local, Options{})
	if _, err := c.SyncLocalToRemote(ctx); err == nil {
		t.Fatalf("sync must fail when the remote is unreachable")
	}
	if len(local.All(ctx)) != 1 {
		t.Fatalf("failed sync must leave the local store intact")
	}
}

func TestFilterQuery(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	f := core.Filter{StartDate: &start, Category: "Food", Type: core.TypeExpense, Skip: 5, Limit: 20}

	q := filterQuery(f)
	if got := q.Get("start_date"); got != "2024-01-01" {
		t.Errorf("start_date: %q", got)
	}
	if q.Get("end_date") != "" {
		t.Errorf("end_date should be unset")
	}
	if q.Get("category") != "Food" || q.Get("type") != "expense" {
		t.Errorf("category/type: %q %q", q.Get("category"), q.Get("type"))
	}
	if q.Get("skip") != "5" || q.Get("limit") != "20" {
		t.Errorf("paging: skip=%q limit=%q", q.Get("skip"), q.Get("limit"))
	}
}
