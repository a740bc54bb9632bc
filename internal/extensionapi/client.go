// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package extensionapi is a client for the host's Extensions API and
// Telemetry API.
package extensionapi // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	extensionNameHeader       = "Lambda-Extension-Name"
	extensionIdentifierHeader = "Lambda-Extension-Identifier"
	extensionErrorTypeHeader  = "Lambda-Extension-Function-Error-Type"
	acceptFeatureHeader       = "Lambda-Extension-Accept-Feature"

	registerPath  = "/2020-01-01/extension/register"
	nextEventPath = "/2020-01-01/extension/event/next"
	initErrorPath = "/2020-01-01/extension/init/error"
	exitErrorPath = "/2020-01-01/extension/exit/error"
	telemetryPath = "/2022-07-01/telemetry"

	telemetrySchemaVersion = "2022-12-13"
)

var errNotRegistered = errors.New("extension is not registered")

// Client talks to the host's runtime API. It is safe for concurrent use
// once Register has returned.
type Client struct {
	baseURL       string
	extensionName string
	httpClient    *http.Client
	logger        *zap.Logger

	extensionID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. NextEvent blocks until the host
// has an event, so the client must not carry a request timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMeterProvider instruments the HTTP transport.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithMeterProvider(mp)),
		}
	}
}

// NewClient returns a client for the runtime API at runtimeAPI (host:port).
func NewClient(runtimeAPI, extensionName string, opts ...Option) *Client {
	c := &Client{
		baseURL:       "http://" + runtimeAPI,
		extensionName: extensionName,
		httpClient:    &http.Client{},
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtensionID returns the identifier assigned at registration.
func (c *Client) ExtensionID() string {
	return c.extensionID
}

// Register announces the extension and subscribes it to INVOKE and SHUTDOWN
// events.
func (c *Client) Register(ctx context.Context) (*RegisterResponse, error) {
	body := map[string][]EventType{"events": {Invoke, Shutdown}}
	req, err := c.newRequest(ctx, http.MethodPost, registerPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(extensionNameHeader, c.extensionName)
	req.Header.Set(acceptFeatureHeader, "accountId")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()
	if err = checkStatus(resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	var out RegisterResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("register: decoding response: %w", err)
	}
	out.ExtensionID = resp.Header.Get(extensionIdentifierHeader)
	if out.ExtensionID == "" {
		return nil, fmt.Errorf("register: missing %s header", extensionIdentifierHeader)
	}
	c.extensionID = out.ExtensionID
	c.logger.Debug("Registered extension",
		zap.String("extension_id", out.ExtensionID),
		zap.String("function_name", out.FunctionName))
	return &out, nil
}

// NextEvent blocks until the host delivers the next lifecycle event or ctx
// is done.
func (c *Client) NextEvent(ctx context.Context) (*NextEventResponse, error) {
	if c.extensionID == "" {
		return nil, errNotRegistered
	}
	req, err := c.newRequest(ctx, http.MethodGet, nextEventPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("next event: %w", err)
	}
	defer resp.Body.Close()
	if err = checkStatus(resp); err != nil {
		return nil, fmt.Errorf("next event: %w", err)
	}

	var out NextEventResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("next event: decoding response: %w", err)
	}
	return &out, nil
}

// Subscribe asks the host to push Telemetry API batches to uri.
func (c *Client) Subscribe(ctx context.Context, uri string, types []string, buffering Buffering) error {
	if c.extensionID == "" {
		return errNotRegistered
	}
	body := SubscribeRequest{
		SchemaVersion: telemetrySchemaVersion,
		Types:         types,
		Buffering:     buffering,
		Destination:   Destination{Protocol: "HTTP", URI: uri},
	}
	req, err := c.newRequest(ctx, http.MethodPut, telemetryPath, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer resp.Body.Close()
	if err = checkStatus(resp); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// InitError reports a failure during initialization. The host terminates
// the execution environment afterwards.
func (c *Client) InitError(ctx context.Context, errorType string, cause error) error {
	return c.reportError(ctx, initErrorPath, errorType, cause)
}

// ExitError reports a failure before the extension exits.
func (c *Client) ExitError(ctx context.Context, errorType string, cause error) error {
	return c.reportError(ctx, exitErrorPath, errorType, cause)
}

func (c *Client) reportError(ctx context.Context, path, errorType string, cause error) error {
	if c.extensionID == "" {
		return errNotRegistered
	}
	body := map[string]any{
		"errorMessage": cause.Error(),
		"errorType":    errorType,
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	req.Header.Set(extensionErrorTypeHeader, errorType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report error: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.extensionID != "" {
		req.Header.Set(extensionIdentifierHeader, c.extensionID)
	}
	return req, nil
}

// StatusError is returned when the host answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
}
