// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package extensionapitest provides an in-process fake of the host's
// runtime API.
package extensionapitest // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi/extensionapitest"

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"
)

// ExtensionID is the identifier the fake host assigns on registration.
const ExtensionID = "test-extension-id"

// Host is a fake runtime API. NextEvent requests block until an event is
// pushed, the request is cancelled, or the test ends.
type Host struct {
	server *httptest.Server
	events chan extensionapi.NextEventResponse
	quit   chan struct{}

	mu             sync.Mutex
	registerStatus int
	registered     []string
	subscriptions  []extensionapi.SubscribeRequest
	reportedErrors []string
	nextCalls      int
	Function       extensionapi.RegisterResponse
}

// NewHost starts a fake host that is closed with the test.
func NewHost(t testing.TB) *Host {
	h := &Host{
		events:         make(chan extensionapi.NextEventResponse, 16),
		quit:           make(chan struct{}),
		registerStatus: http.StatusOK,
		Function: extensionapi.RegisterResponse{
			FunctionName:    "test-function",
			FunctionVersion: "$LATEST",
			Handler:         "index.handler",
			AccountID:       "123456789012",
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/2020-01-01/extension/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/2020-01-01/extension/event/next", h.next).Methods(http.MethodGet)
	r.HandleFunc("/2022-07-01/telemetry", h.subscribe).Methods(http.MethodPut)
	r.HandleFunc("/2020-01-01/extension/{kind:init|exit}/error", h.reportError).Methods(http.MethodPost)

	h.server = httptest.NewServer(r)
	t.Cleanup(func() {
		close(h.quit)
		h.server.Close()
	})
	return h
}

// RuntimeAPI returns the host:port the fake listens on.
func (h *Host) RuntimeAPI() string {
	return strings.TrimPrefix(h.server.URL, "http://")
}

// FailRegistration makes every following registration answer status.
func (h *Host) FailRegistration(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerStatus = status
}

// Push queues an event for the next NextEvent call.
func (h *Host) Push(ev extensionapi.NextEventResponse) {
	h.events <- ev
}

// Registered returns the extension names that registered.
func (h *Host) Registered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.registered...)
}

// Subscriptions returns the Telemetry API subscriptions received.
func (h *Host) Subscriptions() []extensionapi.SubscribeRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]extensionapi.SubscribeRequest(nil), h.subscriptions...)
}

// ReportedErrors returns the error types reported via init or exit error.
func (h *Host) ReportedErrors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reportedErrors...)
}

// NextCalls returns how many NextEvent requests were received.
func (h *Host) NextCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextCalls
}

func (h *Host) register(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := h.registerStatus
	fn := h.Function
	if status == http.StatusOK {
		h.registered = append(h.registered, r.Header.Get("Lambda-Extension-Name"))
	}
	h.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "registration rejected", status)
		return
	}
	w.Header().Set("Lambda-Extension-Identifier", ExtensionID)
	writeJSON(w, fn)
}

func (h *Host) next(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	h.mu.Lock()
	h.nextCalls++
	h.mu.Unlock()

	select {
	case ev := <-h.events:
		writeJSON(w, ev)
	case <-r.Context().Done():
	case <-h.quit:
		http.Error(w, "host stopped", http.StatusServiceUnavailable)
	}
}

func (h *Host) subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	var req extensionapi.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.subscriptions = append(h.subscriptions, req)
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (h *Host) reportError(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	h.mu.Lock()
	h.reportedErrors = append(h.reportedErrors, mux.Vars(r)["kind"]+":"+r.Header.Get("Lambda-Extension-Function-Error-Type"))
	h.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Host) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Lambda-Extension-Identifier") != ExtensionID {
		http.Error(w, "unknown extension", http.StatusForbidden)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
