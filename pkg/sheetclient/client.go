// Package sheetclient talks to a spreadsheet-backed web app endpoint using the
// action/payload request format and the {data, error} response envelope.
package sheetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/attendance-sheet/pkg/errors"
	"github.com/noah-isme/attendance-sheet/pkg/middleware/requestid"
)

// Action names understood by the remote endpoint.
type Action string

const (
	ActionSetup       Action = "setup"
	ActionGetEntries  Action = "getEntries"
	ActionAddEntry    Action = "addEntry"
	ActionUpdateEntry Action = "updateEntry"
	ActionDeleteEntry Action = "deleteEntry"
)

// Call outcomes reported to the Observer.
const (
	OutcomeSuccess       = "success"
	OutcomeRemoteError   = "remote_error"
	OutcomeTransport     = "transport_error"
	OutcomeUnconfigured  = "unconfigured"
	OutcomeInvalidResult = "invalid_response"
)

const maxResponseBytes = 8 << 20

// Observer receives timing information for each remote call.
type Observer interface {
	ObserveRemoteCall(action, outcome string, duration time.Duration)
}

// Options tune a Client.
type Options struct {
	HTTPClient *http.Client
	// Timeout bounds a single call. Zero means no limit beyond ctx.
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
}

// Client issues action-tagged calls against one endpoint. A Client is
// immutable; use WithEndpoint to target another URL.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

// Request is the wire format of a call.
type Request struct {
	Action  Action      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Envelope is the wire format of every response.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// New constructs a client bound to endpoint. An empty endpoint is allowed;
// every call then fails with a configuration error.
func New(endpoint string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     httpClient,
		timeout:  opts.Timeout,
		logger:   logger,
		observer: opts.Observer,
	}
}

// Endpoint returns the bound endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// WithEndpoint returns a copy of the client bound to endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	clone := *c
	clone.endpoint = strings.TrimSpace(endpoint)
	return &clone
}

// Call posts {action, payload} to the endpoint and returns the envelope data.
func (c *Client) Call(ctx context.Context, action Action, payload interface{}) (json.RawMessage, error) {
	start := time.Now()
	data, outcome, err := c.do(ctx, action, payload)
	duration := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveRemoteCall(string(action), outcome, duration)
	}

	fields := []zap.Field{
		zap.String("action", string(action)),
		zap.String("endpoint", RedactURL(c.endpoint)),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	}
	if err != nil {
		c.logger.Warn("remote call failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	c.logger.Debug("remote call succeeded", fields...)
	return data, nil
}

func (c *Client) do(ctx context.Context, action Action, payload interface{}) (json.RawMessage, string, error) {
	if c.endpoint == "" {
		return nil, OutcomeUnconfigured, appErrors.ErrConfiguration
	}

	body, err := json.Marshal(Request{Action: action, Payload: payload})
	if err != nil {
		return nil, OutcomeTransport, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, OutcomeTransport, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "invalid endpoint URL")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, OutcomeTransport, appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, transportMessage(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, OutcomeTransport, appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, transportMessage(err))
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		msg := ""
		if decodeErr == nil {
			msg = errorMessage(env.Error)
		}
		cause := fmt.Errorf("remote responded %s", resp.Status)
		return nil, OutcomeRemoteError, appErrors.Wrap(cause, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, orFallback(msg))
	}
	if decodeErr != nil {
		return nil, OutcomeInvalidResult, appErrors.Wrap(decodeErr, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "Invalid response from the remote service.")
	}
	if hasError(env.Error) {
		return nil, OutcomeRemoteError, appErrors.Clone(appErrors.ErrRemote, orFallback(errorMessage(env.Error)))
	}
	return env.Data, OutcomeSuccess, nil
}

// hasError reports whether the envelope carries a non-null error field.
func hasError(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// errorMessage extracts the envelope error as text. Non-string errors are
// rendered as their raw JSON.
func errorMessage(raw json.RawMessage) string {
	if !hasError(raw) {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}

func orFallback(msg string) string {
	if msg == "" {
		return appErrors.ErrRemote.Message
	}
	return msg
}

func transportMessage(err error) string {
	if err == nil {
		return appErrors.ErrRemote.Message
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// RedactURL hides path and query of u for logging.
func RedactURL(u string) string {
	if u == "" {
		return ""
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
