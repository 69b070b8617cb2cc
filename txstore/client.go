// Package txstore is the client of the REST backend persisting pending multisig transactions.
//
// The backend owns the records. This package only maps them to multisig.PendingTransaction and
// back; the orchestrator never calls it, the CLI does after each lifecycle step.
package txstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/feedispatch/multisig-ops/multisig"
	"github.com/feedispatch/multisig-ops/pkg/logger"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the backend has no transaction with the requested id.
	ErrNotFound = errors.New("transaction not found")
	// ErrUnauthorized is returned when the backend rejects the token. Log in again.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-success answer of the backend.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is matches ErrUnauthorized for 401 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client calls the persistence backend. It is safe for concurrent use.
type Client struct {
	http *resty.Client
	lggr logger.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithToken sets the session token obtained by an earlier Login.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger logs every response at debug level.
func WithLogger(lggr logger.Logger) Option {
	return func(c *Client) {
		c.lggr = lggr.Named("txstore")
	}
}

// NewClient returns a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
		lggr: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.lggr.Debugw("api response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
		)

		return nil
	})

	return c, nil
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

// LoginRequest proves control of Address. Signature is the EIP-712 login signature over Address
// and LoginAt, see package auth.
type LoginRequest struct {
	Address   common.Address `json:"address"`
	LoginAt   string         `json:"login_at"`
	Signature string         `json:"signature"`
}

// Login exchanges a login signature for a session token. The token is kept by the Client and sent
// with every later request.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var data struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", nil, req, &data); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if data.Token == "" {
		return "", errors.New("login failed: backend returned no token")
	}
	c.SetToken(data.Token)

	return data.Token, nil
}

// NewTransaction is a signed proposal to store.
type NewTransaction struct {
	To        common.Address
	Value     string
	Data      []byte
	Nonce     uint64
	Signature []byte
}

// Create stores a new proposal and returns its id. The backend records the logged in account as
// its creator.
func (c *Client) Create(ctx context.Context, tx NewTransaction) (string, error) {
	var data struct {
		ID flexString `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/tx", nil, newWireCreate(tx), &data); err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	return string(data.ID), nil
}

// Query filters a listing. Pages start at 1.
type Query struct {
	Page     int
	PageSize int
	ID       string
	// Status filters on one status. Use multisig.StatusAll for every status.
	Status int
}

// Page is one page of a listing.
type Page struct {
	Rows  []multisig.PendingTransaction
	Total int
}

// List returns the transactions matching q.
func (c *Client) List(ctx context.Context, q Query) (*Page, error) {
	params := map[string]string{}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	if q.PageSize > 0 {
		params["pageSize"] = strconv.Itoa(q.PageSize)
	}
	if q.ID != "" {
		params["id"] = q.ID
	}
	if q.Status != multisig.StatusAll {
		params["status"] = strconv.Itoa(q.Status)
	}

	var data struct {
		Rows  []wireTx `json:"rows"`
		Total int      `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/txs", params, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	page := &Page{Total: data.Total, Rows: make([]multisig.PendingTransaction, 0, len(data.Rows))}
	for _, w := range data.Rows {
		tx, err := w.toPending()
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", w.ID, err)
		}
		page.Rows = append(page.Rows, tx)
	}

	return page, nil
}

// Get returns the transaction with id.
func (c *Client) Get(ctx context.Context, id string) (*multisig.PendingTransaction, error) {
	page, err := c.List(ctx, Query{Page: 1, PageSize: 1, ID: id, Status: multisig.StatusAll})
	if err != nil {
		return nil, err
	}
	for _, tx := range page.Rows {
		if tx.ID == id {
			return &tx, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Update records the new status of a transaction and the hash of the chain transaction that
// moved it there.
func (c *Client) Update(ctx context.Context, id string, status multisig.Status, txid string) error {
	body := struct {
		Status multisig.Status `json:"status"`
		TxID   string          `json:"txid"`
	}{status, txid}

	if err := c.do(ctx, http.MethodPut, "/tx/"+url.PathEscape(id), nil, body, nil); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	return nil
}

// Close cancels a transaction that has not reached a terminal status.
func (c *Client) Close(ctx context.Context, id string) error {
	return c.Update(ctx, id, multisig.StatusClosed, "")
}

// Delete removes a transaction.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tx/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}

	return nil
}

// envelope wraps every backend answer.
type envelope struct {
	Code    int       `json:"code"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error,omitempty"`
	Success *bool     `json:"success,omitempty"`
	Message string    `json:"message,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do sends one request and unwraps the envelope into out, which may be nil.
func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, out any) error {
	env := envelope{Data: out}

	req := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&env)
	if token := c.Token(); token != "" && path != "/login" {
		req.SetAuthToken(token)
	}
	if params != nil {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("no response received from server: %w", err)
	}

	if resp.IsError() || (env.Success != nil && !*env.Success) || env.Error != nil {
		return newAPIError(resp.StatusCode(), env.Code, env.Error, env.Message)
	}

	return nil
}

func newAPIError(status, code int, e *apiError, message string) *APIError {
	out := &APIError{StatusCode: status, Code: code, Message: message}
	if e != nil {
		if e.Code != 0 {
			out.Code = e.Code
		}
		if e.Message != "" {
			out.Message = e.Message
		}
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("request failed with status code %d", status)
	}

	return out
}
