// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package extensionapi // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"

import (
	"time"
)

// EventType is the type of lifecycle event the host delivers.
type EventType string

const (
	Invoke   EventType = "INVOKE"
	Shutdown EventType = "SHUTDOWN"
)

// RegisterResponse describes the function the extension was registered for.
type RegisterResponse struct {
	// ExtensionID is taken from the Lambda-Extension-Identifier header.
	ExtensionID string `json:"-"`

	FunctionName    string `json:"functionName"`
	FunctionVersion string `json:"functionVersion"`
	Handler         string `json:"handler"`
	AccountID       string `json:"accountId,omitempty"`
}

// Tracing is the tracing header of an invocation.
type Tracing struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NextEventResponse is a single lifecycle event.
type NextEventResponse struct {
	EventType          EventType `json:"eventType"`
	DeadlineMs         int64     `json:"deadlineMs"`
	RequestID          string    `json:"requestId,omitempty"`
	InvokedFunctionArn string    `json:"invokedFunctionArn,omitempty"`
	Tracing            Tracing   `json:"tracing,omitempty"`
	ShutdownReason     string    `json:"shutdownReason,omitempty"`
}

// Deadline returns the event deadline, or the zero time if none was sent.
func (e *NextEventResponse) Deadline() time.Time {
	if e.DeadlineMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.DeadlineMs)
}

// SubscribeRequest is the body of a Telemetry API subscription.
type SubscribeRequest struct {
	SchemaVersion string      `json:"schemaVersion"`
	Types         []string    `json:"types"`
	Buffering     Buffering   `json:"buffering"`
	Destination   Destination `json:"destination"`
}

// Buffering controls how the host batches records before pushing them.
type Buffering struct {
	TimeoutMs int `json:"timeoutMs"`
	MaxBytes  int `json:"maxBytes"`
	MaxItems  int `json:"maxItems"`
}

// Destination is where the host pushes telemetry batches.
type Destination struct {
	Protocol string `json:"protocol"`
	URI      string `json:"URI"`
}

// DefaultBuffering is the buffering the extension subscribes with.
var DefaultBuffering = Buffering{TimeoutMs: 25, MaxBytes: 262144, MaxItems: 1000}

// DefaultSubscriptionTypes are the Telemetry API streams subscribed to.
var DefaultSubscriptionTypes = []string{"platform", "function", "extension"}
