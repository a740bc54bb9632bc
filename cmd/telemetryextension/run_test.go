// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/config"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi/extensionapitest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/testutil"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/version"
)

const waitFor = 5 * time.Second

const functionBatch = `[
  {"time":"2022-10-12T00:03:50.010Z","type":"function","record":"Hello from function"}
]`

// syncBuffer is a bytes.Buffer that can be written and read concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, host *extensionapitest.Host) *config.Config {
	return &config.Config{
		LogLevel:        "error",
		ExtensionName:   "test-extension",
		RuntimeAPI:      host.RuntimeAPI(),
		OTLPTimeout:     100 * time.Millisecond,
		ListenerHost:    "127.0.0.1",
		ListenerPort:    testutil.GetAvailablePort(t),
		EnqueueTimeout:  25 * time.Millisecond,
		QueueSize:       16,
		MaxBatchSize:    8,
		ExportTimeout:   500 * time.Millisecond,
		ShutdownTimeout: 500 * time.Millisecond,
	}
}

func runAsync(t *testing.T, cfg *config.Config, stdout io.Writer) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, stdout) }()
	return func() error {
		t.Helper()
		select {
		case err := <-done:
			return err
		case <-time.After(waitFor):
			t.Fatal("run did not return")
			return nil
		}
	}
}

func shutdownEvent() extensionapi.NextEventResponse {
	return extensionapi.NextEventResponse{
		EventType:      extensionapi.Shutdown,
		ShutdownReason: "SPINDOWN",
		DeadlineMs:     time.Now().Add(2 * time.Second).UnixMilli(),
	}
}

func TestRunStopsOnHostShutdown(t *testing.T) {
	host := extensionapitest.NewHost(t)
	cfg := testConfig(t, host)
	host.Push(shutdownEvent())

	require.NoError(t, runAsync(t, cfg, &syncBuffer{})())

	assert.Equal(t, []string{"test-extension"}, host.Registered())
	subs := host.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(cfg.ListenerPort), subs[0].Destination.URI)
	assert.Equal(t, extensionapi.DefaultSubscriptionTypes, subs[0].Types)
	assert.Empty(t, host.ReportedErrors())
}

func TestRunFailsOverToConsole(t *testing.T) {
	host := extensionapitest.NewHost(t)
	cfg := testConfig(t, host)
	cfg.OTLPEnabled = true
	cfg.OTLPEndpoint = testutil.GetAvailableLocalAddress(t)
	cfg.OTLPInsecure = true

	out := &syncBuffer{}
	wait := runAsync(t, cfg, out)

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.ListenerPort) + "/"
	require.Eventually(t, func() bool {
		resp, err := http.Post(url, "application/json", strings.NewReader(functionBatch))
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Hello from function")
	}, waitFor, 20*time.Millisecond)

	host.Push(shutdownEvent())
	require.NoError(t, wait())
}

func TestRunReportsRegistrationFailure(t *testing.T) {
	host := extensionapitest.NewHost(t)
	host.FailRegistration(http.StatusInternalServerError)
	cfg := testConfig(t, host)

	err := runAsync(t, cfg, &syncBuffer{})()
	require.ErrorIs(t, err, componenterror.ErrRegistration)
	assert.Empty(t, host.ReportedErrors())
}

func TestCommandRequiresRuntimeAPI(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	cmd := newCommand(io.Discard)
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.ErrorContains(t, cmd.Execute(), "AWS_LAMBDA_RUNTIME_API")
}

func TestCommandVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := newCommand(io.Discard)
	cmd.SetArgs([]string{"--version"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version.Version)
}
