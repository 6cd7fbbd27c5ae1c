// Package httpgateway is the reference Network Gateway implementation: a
// net/http client talking JSON to internal/remoteserver (or any compatible
// remote), grounded on the teacher's internal/replication.S3RemoteClient
// (structured logging around every remote call, wrapped errors) and
// internal/logging.HTTPOutput (context-scoped http.Client with a timeout).
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/query"
)

const defaultTimeout = 30 * time.Second

// Client implements gateway.Gateway over HTTP.
type Client struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New builds an httpgateway.Client pointed at baseURL (e.g.
// "http://localhost:9090"), authenticating requests with appKey.
func New(baseURL, appKey string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appKey:     appKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c *Client) timeout(opts gateway.Options) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return defaultTimeout
}

func (c *Client) do(ctx context.Context, opts gateway.Options, method, path string, body any) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout(opts))
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Key", c.appKey)
	for k, v := range opts.Properties {
		req.Header.Set("X-Property-"+k, v)
	}

	c.logger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("gateway request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, gateway.ErrTimeout
		}
		return nil, &gateway.TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

func classifyStatus(method, path string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return gateway.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return gateway.ErrInsufficientCredentials
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return gateway.ErrTimeout
	default:
		return &gateway.TransportError{Op: method + " " + path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Get(ctx context.Context, collection, id string, opts gateway.Options) (*entity.Entity, error) {
	path := fmt.Sprintf("/%s/%s", collection, url.PathEscape(id))
	resp, err := c.do(ctx, opts, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("GET", path, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	var e entity.Entity
	if err := decodeJSON(resp, &e); err != nil {
		return nil, &gateway.TransportError{Op: "decode GET " + path, Err: err}
	}
	return &e, nil
}

func (c *Client) Find(ctx context.Context, collection string, q query.Query, opts gateway.Options) ([]*entity.Entity, error) {
	path := "/" + collection
	if q.HasIDs() {
		path += "?ids=" + strings.Join(q.Ids, ",")
	}
	resp, err := c.do(ctx, opts, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("GET", path, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	var entities []*entity.Entity
	if err := decodeJSON(resp, &entities); err != nil {
		return nil, &gateway.TransportError{Op: "decode GET " + path, Err: err}
	}
	return entities, nil
}

func (c *Client) Put(ctx context.Context, collection string, e *entity.Entity, opts gateway.Options) (*entity.Entity, error) {
	method := http.MethodPut
	path := fmt.Sprintf("/%s/%s", collection, url.PathEscape(e.ID))
	if e.ID == "" {
		method = http.MethodPost
		path = "/" + collection
	}

	resp, err := c.do(ctx, opts, method, path, e)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(method, path, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	var stored entity.Entity
	if err := decodeJSON(resp, &stored); err != nil {
		return nil, &gateway.TransportError{Op: "decode " + method + " " + path, Err: err}
	}
	return &stored, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string, opts gateway.Options) (int, error) {
	path := fmt.Sprintf("/%s/%s", collection, url.PathEscape(id))
	resp, err := c.do(ctx, opts, http.MethodDelete, path, nil)
	if err != nil {
		return 0, err
	}
	if err := classifyStatus("DELETE", path, resp); err != nil {
		resp.Body.Close()
		return 0, err
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return 0, &gateway.TransportError{Op: "decode DELETE " + path, Err: err}
	}
	return result.Count, nil
}

func (c *Client) DeltaGet(ctx context.Context, collection string, since time.Time, opts gateway.Options) ([]*entity.Entity, error) {
	path := "/" + collection
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	}
	resp, err := c.do(ctx, opts, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("GET", path, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	var entities []*entity.Entity
	if err := decodeJSON(resp, &entities); err != nil {
		return nil, &gateway.TransportError{Op: "decode delta GET " + path, Err: err}
	}
	return entities, nil
}

func (c *Client) Group(ctx context.Context, collection string, agg any, opts gateway.Options) (any, error) {
	path := "/" + collection + "/_group"
	resp, err := c.do(ctx, opts, http.MethodPost, path, agg)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus("POST", path, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	var result any
	if err := decodeJSON(resp, &result); err != nil {
		return nil, &gateway.TransportError{Op: "decode " + path, Err: err}
	}
	return result, nil
}

func (c *Client) Count(ctx context.Context, collection string, q query.Query, opts gateway.Options) (int, error) {
	path := "/" + collection + "/_count"
	if q.HasIDs() {
		path += "?ids=" + strings.Join(q.Ids, ",")
	}
	resp, err := c.do(ctx, opts, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	if err := classifyStatus("GET", path, resp); err != nil {
		resp.Body.Close()
		return 0, err
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return 0, &gateway.TransportError{Op: "decode " + path, Err: err}
	}
	return result.Count, nil
}

// ParseIDs splits a comma-separated query parameter into an id slice, the
// same split internal/remoteserver's parseQuery applies to the ids= filter
// this client sends.
func ParseIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// ParseCount parses the "count" form field some remotes report as a string.
func ParseCount(raw string) (int, error) {
	return strconv.Atoi(raw)
}
