package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"quiz-portal/internal/domain"
)

// Client talks to the remote quiz API. A zero token means anonymous calls;
// use WithToken to obtain a client bound to a bearer credential.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns an anonymous client for baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient lets callers (mostly tests) provide the transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// StatusError is a non-2xx API response. It unwraps to one of the domain
// sentinels so callers can use errors.Is.
type StatusError struct {
	Status  int
	Message string
	Fields  map[string][]string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("quiz api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("quiz api: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// FieldMessages flattens field errors in a stable order.
func (e *StatusError) FieldMessages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, e.Fields[k]...)
	}
	return out
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)

	statusErr := &StatusError{
		Status:  resp.StatusCode,
		Message: payload.Message,
		Fields:  payload.Errors,
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		statusErr.kind = domain.ErrUnauthorized
	case http.StatusUnprocessableEntity:
		statusErr.kind = domain.ErrValidation
	case http.StatusNotFound:
		statusErr.kind = domain.ErrNotFound
	default:
		statusErr.kind = domain.ErrUpstream
	}
	return statusErr
}
