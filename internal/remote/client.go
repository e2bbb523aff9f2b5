// Package remote talks to the JSON todo API (jsonplaceholder-style /todos).
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/valyala/fasthttp"

	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/metrics"
	"github.com/idilsaglam/tada/internal/model"
)

const (
	DefaultBaseURL = "https://jsonplaceholder.typicode.com"
	DefaultTimeout = 10 * time.Second
)

// Client performs single-attempt CRUD calls. Updates use PATCH, so only the
// fields set in a model.Patch change on the server.
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *log.Logger
}

type Option func(*Client)

// WithHTTPClient swaps the transport (tests dial an in-memory listener).
func WithHTTPClient(c *fasthttp.Client) Option { return func(cl *Client) { cl.http = c } }

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(cl *Client) { cl.metrics = m } }

func WithLogger(l *log.Logger) Option { return func(cl *Client) { cl.logger = l } }

func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	if c.http == nil {
		c.http = &fasthttp.Client{
			Name:         "tada",
			ReadTimeout:  c.timeout,
			WriteTimeout: c.timeout,
		}
	}
	return c
}

func (c *Client) todosURL() string { return c.base + "/todos" }

func (c *Client) todoURL(id int) string { return c.todosURL() + "/" + strconv.Itoa(id) }

func (c *Client) List(ctx context.Context) ([]model.Todo, error) {
	var out []model.Todo
	if err := c.do(ctx, "list", fasthttp.MethodGet, c.todosURL(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Todo{}
	}
	return out, nil
}

// Get fails with a NetworkError matching model.ErrNotFound on 404.
func (c *Client) Get(ctx context.Context, id int) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, "get", fasthttp.MethodGet, c.todoURL(id), nil, &out)
	return out, err
}

// Create posts whatever fields are set; the server assigns the id.
func (c *Client) Create(ctx context.Context, fields model.Patch) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, "create", fasthttp.MethodPost, c.todosURL(), fields, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int, fields model.Patch) (model.Todo, error) {
	var out model.Todo
	err := c.do(ctx, "update", fasthttp.MethodPatch, c.todoURL(id), fields, &out)
	return out, err
}

// Delete is idempotent: a 404 counts as already deleted.
func (c *Client) Delete(ctx context.Context, id int) error {
	err := c.do(ctx, "delete", fasthttp.MethodDelete, c.todoURL(id), nil, nil)
	if errors.Is(err, model.ErrNotFound) {
		c.logger.Debug("delete of missing todo treated as success", "id", id)
		return nil
	}
	return err
}

type result struct {
	status int
	body   []byte
	err    error
}

func (c *Client) do(ctx context.Context, op, method, url string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return &model.NetworkError{Op: op, Err: err}
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: json marshal: %w", op, err)
		}
		payload = b
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// The goroutine owns req/resp so an abandoned call never touches
	// released buffers.
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(method)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.SetContentType("application/json; charset=UTF-8")
			req.SetBodyRaw(payload)
		}
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...)}
	}()

	var res result
	select {
	case <-ctx.Done():
		c.metrics.Remote(op, 0, time.Since(start))
		c.logger.Debug("remote call abandoned", "op", op, "err", ctx.Err())
		return &model.NetworkError{Op: op, Err: ctx.Err()}
	case res = <-done:
	}
	c.metrics.Remote(op, res.status, time.Since(start))

	if res.err != nil {
		c.logger.Warn("remote transport failure", "op", op, "url", url, "err", res.err)
		return &model.NetworkError{Op: op, Err: res.err}
	}
	if res.status < 200 || res.status > 299 {
		c.logger.Warn("remote non-success status", "op", op, "url", url, "status", res.status)
		return &model.NetworkError{Op: op, Status: res.status}
	}
	c.logger.Debug("remote ok", "op", op, "status", res.status, "took", time.Since(start))

	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return &model.NetworkError{Op: op, Status: res.status, Err: fmt.Errorf("json unmarshal: %w", err)}
	}
	return nil
}
