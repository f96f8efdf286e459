package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/token"
)

const refreshPath = "/auth/refresh-token"

// Client talks to the TestFlow REST API. It attaches the browser session's
// bearer token (taken from the token.Store in the request context), unwraps
// the optional {"data": ...} response envelope and transparently refreshes
// the token pair once when a request comes back 401.
//
// Concurrent 401s sharing one refresh token are collapsed into a single
// upstream refresh call through a singleflight group.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	tracker    telemetry.Tracker

	refresh singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithTracker wires a telemetry tracker into the client.
func WithTracker(t telemetry.Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates an upstream API client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		tracker:    telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.send(ctx, method, path, query, "application/json", payload, out, false)
}

// upload posts a single file as multipart form data.
func (c *Client) upload(ctx context.Context, path, field, filename string, content []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, nil, mw.FormDataContentType(), buf.Bytes(), out, false)
}

// send performs one request/response cycle. retried marks a request that has
// already been replayed after a refresh: such a request 401ing again fails
// straight through instead of triggering a second refresh.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, payload []byte, out any, retried bool) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	store, hasStore := token.FromContext(ctx)
	if hasStore {
		if access := store.Tokens(ctx).AccessToken; access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracker.UpstreamRequest(resourceFromPath(path), 0)
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read upstream response: %w", err)
	}

	c.tracker.UpstreamRequest(resourceFromPath(path), resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeBody(respBody, out)
	}

	if resp.StatusCode == http.StatusUnauthorized && !retried && hasStore {
		if refreshToken := store.Tokens(ctx).RefreshToken; refreshToken != "" {
			if _, err := c.refreshTokens(ctx, store, refreshToken); err != nil {
				// Refresh failure is the one error allowed to replace the
				// original response: the caller must treat the session as gone.
				return err
			}
			return c.send(ctx, method, path, query, contentType, payload, out, true)
		}
	}

	return decodeError(resp.StatusCode, respBody)
}

// tokenResponse is the refresh endpoint's wire shape.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshTokens obtains a fresh token pair, deduplicating concurrent calls
// that hold the same refresh token. The upstream call bypasses send so the
// refresh request itself is never intercepted. Every caller persists the
// resulting pair into its own store; on failure the store is cleared.
func (c *Client) refreshTokens(ctx context.Context, store token.Store, refreshToken string) (token.Pair, error) {
	v, err, _ := c.refresh.Do(refreshToken, func() (any, error) {
		c.logger.Debug("refreshing upstream token pair")

		payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
		if err != nil {
			return nil, fmt.Errorf("failed to encode refresh request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to build refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("refresh request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read refresh response: %w", err)
		}

		c.tracker.UpstreamRequest("auth", resp.StatusCode)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, decodeError(resp.StatusCode, respBody)
		}

		var result tokenResponse
		if err := decodeBody(respBody, &result); err != nil {
			return nil, fmt.Errorf("malformed refresh response: %w", err)
		}
		if result.AccessToken == "" {
			return nil, fmt.Errorf("refresh response holds no access token")
		}

		return token.Pair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		}, nil
	})
	if err != nil {
		c.tracker.AuthEvent("refresh_failed")
		if clearErr := store.Clear(ctx); clearErr != nil {
			c.logger.Warn("failed to clear token pair after refresh failure", zap.Error(clearErr))
		}
		return token.Pair{}, fmt.Errorf("token refresh failed: %w", err)
	}

	pair := v.(token.Pair)
	if setErr := store.Set(ctx, pair); setErr != nil {
		// Persistence is best effort; the replayed request still carries the
		// fresh pair through the in-request store state.
		c.logger.Warn("failed to persist refreshed token pair", zap.Error(setErr))
	}
	c.tracker.AuthEvent("refresh")
	return pair, nil
}

// decodeBody unmarshals an upstream response, transparently unwrapping a
// {"data": ...} envelope when present. A bare payload decodes as-is.
func decodeBody(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("empty response body")
	}

	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
			body = envelope.Data
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

// decodeError turns a non-2xx response into an APIError, preferring the
// server's message/error field over a generic text.
func decodeError(status int, body []byte) error {
	var wire struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &wire); err == nil {
		if wire.Message != "" {
			message = wire.Message
		} else if wire.Error != "" {
			message = wire.Error
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: message}
}

func resourceFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}
