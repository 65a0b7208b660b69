// Package client presents one uniform operation set over two stores: the
// remote transaction API when it is reachable, the local file store when it
// is not. A failed remote call downgrades the client to local mode for the
// rest of its lifetime; recovery only happens through an explicit
// CheckRemote call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/localstore"
)

const (
	defaultRemoteTimeout = 3 * time.Second
	defaultProbeTimeout  = time.Second
)

// Options tunes the client's remote behavior.
type Options struct {
	// RemoteTimeout bounds every remote call after construction.
	RemoteTimeout time.Duration
	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the dual-mode transaction client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	local        *localstore.Store
	remoteOK     atomic.Bool
}

// New builds a client and probes remote availability exactly once. The
// probe result decides the starting mode; it is never re-checked on the
// client's own initiative.
func New(ctx context.Context, baseURL string, local *localstore.Store, opts Options) *Client {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = opts.RemoteTimeout

	c := &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		probeTimeout: opts.ProbeTimeout,
		local:        local,
	}

	c.remoteOK.Store(c.probe(ctx))
	if !c.remoteOK.Load() {
		slog.WarnContext(ctx, "API server is not available, running in local mode",
			"base_url", baseURL)
	}
	return c
}

// probe issues a lightweight read with a short timeout.
func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/transactions/?limit=1", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Online reports whether the client is currently using the remote boundary.
func (c *Client) Online() bool {
	return c.remoteOK.Load()
}

// Mode names the store currently in use.
func (c *Client) Mode() string {
	if c.Online() {
		return "remote"
	}
	return "local"
}

// CheckRemote re-probes the remote boundary on the caller's request and
// restores remote mode when it answers. This is the only recovery path.
func (c *Client) CheckRemote(ctx context.Context) bool {
	ok := c.probe(ctx)
	c.remoteOK.Store(ok)
	return ok
}

// downgrade flips the client into local mode for the rest of its lifetime.
func (c *Client) downgrade(ctx context.Context, reason string) {
	if c.remoteOK.CompareAndSwap(true, false) {
		slog.WarnContext(ctx, "Remote call failed, switching to local mode", "reason", reason)
	}
}

// remoteResult classifies a remote attempt: done means the operation is
// decided (successfully or with a logical error) and must not fall back.
type remoteResult struct {
	done bool
	err  error
}

// call runs one remote request and decodes a 2xx body into out (when out is
// non-nil). Transport errors and unexpected statuses downgrade the client
// and report done=false so the caller retries locally. 404 and validation
// statuses are logical outcomes, not availability problems.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) remoteResult {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return remoteResult{done: true, err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return remoteResult{done: true, err: fmt.Errorf("build request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.downgrade(ctx, err.Error())
		return remoteResult{}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return remoteResult{done: true, err: fmt.Errorf("decode response: %w", err)}
			}
		} else {
			io.Copy(io.Discard, resp.Body)
		}
		return remoteResult{done: true}
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return remoteResult{done: true, err: core.ErrNotFound}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return remoteResult{done: true, err: fmt.Errorf("remote rejected request: %s", readError(resp.Body))}
	default:
		io.Copy(io.Discard, resp.Body)
		c.downgrade(ctx, fmt.Sprintf("unexpected status %d on %s %s", resp.StatusCode, method, path))
		return remoteResult{}
	}
}

func readError(body io.Reader) string {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&er); err == nil && er.Error != "" {
		return er.Error
	}
	return "request invalid"
}

// Create stores one transaction, remote first.
func (c *Client) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if c.Online() {
		var t core.Transaction
		if res := c.call(ctx, http.MethodPost, "/transactions/", nil, in, &t); res.done {
			return t, res.err
		}
	}
	return c.local.Create(ctx, in)
}

// List queries transactions with the usual filters, remote first.
func (c *Client) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	if c.Online() {
		var items []core.Transaction
		if res := c.call(ctx, http.MethodGet, "/transactions/", filterQuery(f), nil, &items); res.done {
			return items, res.err
		}
	}
	return c.local.List(ctx, f)
}

// Get fetches a single transaction. A remote 404 surfaces as
// core.ErrNotFound without falling back: a missing id is a logical
// absence, not an availability problem.
func (c *Client) Get(ctx context.Context, id int64) (core.Transaction, error) {
	if c.Online() {
		var t core.Transaction
		if res := c.call(ctx, http.MethodGet, "/transactions/"+strconv.FormatInt(id, 10), nil, nil, &t); res.done {
			return t, res.err
		}
	}
	return c.local.Get(ctx, id)
}

// Update replaces every non-id field of a transaction.
func (c *Client) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	if c.Online() {
		var t core.Transaction
		if res := c.call(ctx, http.MethodPut, "/transactions/"+strconv.FormatInt(id, 10), nil, in, &t); res.done {
			return t, res.err
		}
	}
	return c.local.Update(ctx, id, in)
}

// Delete removes a transaction by id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if c.Online() {
		if res := c.call(ctx, http.MethodDelete, "/transactions/"+strconv.FormatInt(id, 10), nil, nil, nil); res.done {
			return res.err
		}
	}
	return c.local.Delete(ctx, id)
}

// BulkCreate stores a batch all-or-nothing, remote first.
func (c *Client) BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error) {
	if c.Online() {
		var out struct {
			Created int `json:"created"`
		}
		if res := c.call(ctx, http.MethodPost, "/transactions/bulk/", nil, inputs, &out); res.done {
			return out.Created, res.err
		}
	}
	return c.local.BulkCreate(ctx, inputs)
}

// Summary reports totals for the optional date range. In local mode the
// summary is computed from the file store, matching the remote shape.
func (c *Client) Summary(ctx context.Context, start, end *core.Date) (core.Summary, error) {
	if c.Online() {
		q := url.Values{}
		if start != nil {
			q.Set("start_date", start.String())
		}
		if end != nil {
			q.Set("end_date", end.String())
		}
		var sum core.Summary
		if res := c.call(ctx, http.MethodGet, "/summary/", q, nil, &sum); res.done {
			return sum, res.err
		}
	}
	return c.local.Summarize(ctx, start, end)
}

// SyncLocalToRemote pushes every locally stored record to the remote
// boundary in one bulk call and truncates the local file on success. Sync
// is always caller-triggered; the client never reconciles on its own.
func (c *Client) SyncLocalToRemote(ctx context.Context) (int, error) {
	if !c.CheckRemote(ctx) {
		return 0, fmt.Errorf("remote boundary unavailable at %s", c.baseURL)
	}

	records := c.local.All(ctx)
	if len(records) == 0 {
		return 0, nil
	}

	inputs := make([]core.TransactionInput, len(records))
	for i, t := range records {
		inputs[i] = t.Input()
	}

	var out struct {
		Created int `json:"created"`
	}
	res := c.call(ctx, http.MethodPost, "/transactions/bulk/", nil, inputs, &out)
	if !res.done {
		return 0, fmt.Errorf("remote boundary lost during sync")
	}
	if res.err != nil {
		return 0, fmt.Errorf("sync rejected: %w", res.err)
	}

	if err := c.local.Truncate(ctx); err != nil {
		return out.Created, fmt.Errorf("synced %d records but could not truncate local store: %w", out.Created, err)
	}

	slog.InfoContext(ctx, "Synced local records to remote", "count", out.Created)
	return out.Created, nil
}

func filterQuery(f core.Filter) url.Values {
	q := url.Values{}
	if f.StartDate != nil {
		q.Set("start_date", f.StartDate.String())
	}
	if f.EndDate != nil {
		q.Set("end_date", f.EndDate.String())
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Type != "" {
		q.Set("type", f.Type.String())
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}
