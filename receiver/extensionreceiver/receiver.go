// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package extensionreceiver implements the receiver that speaks the host's
// extension lifecycle protocol and turns a host shutdown notice into an
// application event.
package extensionreceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/extensionreceiver"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/event"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receiverhelper"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

const scopeName = "extensionreceiver"

// HostClient is the part of the host's Extensions API the receiver uses.
// Both calls must return when ctx is done.
type HostClient interface {
	Register(ctx context.Context) (*extensionapi.RegisterResponse, error)
	NextEvent(ctx context.Context) (*extensionapi.NextEventResponse, error)
}

// RegisteredHook runs once after a successful registration, before polling
// starts. An error is treated like a registration failure.
type RegisteredHook func(ctx context.Context, reg *extensionapi.RegisterResponse) error

// Option configures the receiver.
type Option func(*Receiver)

// WithResourceSetter makes the receiver publish the function's Resource on
// registration.
func WithResourceSetter(rs ResourceSetter) Option {
	return func(r *Receiver) {
		r.resources = rs
	}
}

// WithRegisteredHook sets a hook that runs after registration.
func WithRegisteredHook(hook RegisteredHook) Option {
	return func(r *Receiver) {
		r.onRegistered = hook
	}
}

// WithGetenv replaces the lookup used for execution environment variables.
func WithGetenv(getenv func(string) string) Option {
	return func(r *Receiver) {
		r.getenv = getenv
	}
}

// Receiver registers with the host and polls it for lifecycle events.
type Receiver struct {
	logger       *zap.Logger
	client       HostClient
	events       chan<- event.ApplicationEvent
	resources    ResourceSetter
	onRegistered RegisteredHook
	getenv       func(string) string

	invocations metric.Int64Counter
	state       *atomic.Int32
	runner      *receiverhelper.Runner
}

var _ receiver.Receiver = (*Receiver)(nil)

// New returns a receiver that reports lifecycle events on events.
func New(set component.TelemetrySettings, client HostClient, events chan<- event.ApplicationEvent, opts ...Option) (*Receiver, error) {
	if client == nil {
		return nil, errors.New("nil host client")
	}
	if events == nil {
		return nil, componenterror.ErrNilNextConsumer
	}
	invocations, err := set.Meter(obsreport.ScopeName).Int64Counter(obsreport.Invocations,
		metric.WithDescription("Number of invoke events received from the host."),
		metric.WithUnit("{invocation}"))
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		logger:      set.LoggerOrNop().Named(scopeName),
		client:      client,
		events:      events,
		getenv:      os.Getenv,
		invocations: invocations,
		state:       atomic.NewInt32(int32(Registering)),
		runner:      receiverhelper.NewRunner(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the current protocol state.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

func (r *Receiver) setState(s State) {
	prev := State(r.state.Swap(int32(s)))
	if prev != s {
		r.logger.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Start registers with the host and polls it until the host announces
// shutdown or ctx is cancelled. Invocations are forwarded on next as log
// records when next is not nil.
func (r *Receiver) Start(ctx context.Context, next chan<- telemetry.Envelope) error {
	return r.runner.Run(ctx, func(ctx context.Context) error {
		err := r.run(ctx, next)
		r.setState(Stopped)
		return err
	})
}

// Stop cancels polling and waits for Start to return.
func (r *Receiver) Stop(ctx context.Context) error {
	return r.runner.Stop(ctx)
}

func (r *Receiver) run(ctx context.Context, next chan<- telemetry.Envelope) error {
	reg, err := r.client.Register(ctx)
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("Cancelled during registration")
			return nil
		}
		r.logger.Error("Failed to register with the host", zap.Error(err))
		return fmt.Errorf("%w: %w", componenterror.ErrRegistration, err)
	}
	r.logger.Info("Registered with the host",
		zap.String("extension_id", reg.ExtensionID),
		zap.String("function_name", reg.FunctionName),
		zap.String("function_version", reg.FunctionVersion))

	r.publishResource(reg)
	if r.onRegistered != nil {
		if err = r.onRegistered(ctx, reg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Post-registration setup failed", zap.Error(err))
			return fmt.Errorf("%w: %w", componenterror.ErrRegistration, err)
		}
	}

	r.setState(Polling)
	for {
		ev, err := r.nextEvent(ctx)
		if ctx.Err() != nil {
			r.logger.Info("Polling cancelled")
			return nil
		}
		if err != nil {
			r.logger.Error("Failed to poll the host", zap.Error(err))
			return fmt.Errorf("polling host: %w", err)
		}

		switch ev.EventType {
		case extensionapi.Invoke:
			r.handleInvoke(ctx, ev, next)
		case extensionapi.Shutdown:
			r.setState(ShuttingDown)
			r.handleShutdown(ctx, ev)
			return nil
		default:
			r.logger.Warn("Ignoring unknown event type", zap.String("event_type", string(ev.EventType)))
		}
	}
}

type nextResult struct {
	ev  *extensionapi.NextEventResponse
	err error
}

// nextEvent races the host call against ctx so cancellation never waits for
// the host.
func (r *Receiver) nextEvent(ctx context.Context) (*extensionapi.NextEventResponse, error) {
	ch := make(chan nextResult, 1)
	go func() {
		ev, err := r.client.NextEvent(ctx)
		ch <- nextResult{ev: ev, err: err}
	}()
	select {
	case res := <-ch:
		return res.ev, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Receiver) publishResource(reg *extensionapi.RegisterResponse) {
	if r.resources == nil {
		return
	}
	err := r.resources.SetResource(newResource(reg, r.getenv))
	switch {
	case err == nil:
	case errors.Is(err, componenterror.ErrResourceAlreadySet):
		r.logger.Debug("Resource was already set", zap.Error(err))
	default:
		r.logger.Warn("Failed to set resource", zap.Error(err))
	}
}

func (r *Receiver) handleInvoke(ctx context.Context, ev *extensionapi.NextEventResponse, next chan<- telemetry.Envelope) {
	r.invocations.Add(ctx, 1)
	r.logger.Info("Received invoke event",
		zap.String("request_id", ev.RequestID),
		zap.String("function_arn", ev.InvokedFunctionArn),
		zap.Time("deadline", ev.Deadline()))

	if next == nil {
		return
	}
	if err := telemetry.TrySend(next, telemetry.NewLogs(invokeLogs(ev))); err != nil {
		r.logger.Debug("Dropped invoke record", zap.String("request_id", ev.RequestID), zap.Error(err))
	}
}

func (r *Receiver) handleShutdown(ctx context.Context, ev *extensionapi.NextEventResponse) {
	reason := event.ParseShutdownReason(ev.ShutdownReason)
	r.logger.Info("Received shutdown event",
		zap.Stringer("reason", reason),
		zap.Time("deadline", ev.Deadline()))

	select {
	case r.events <- event.Shutdown{Reason: reason, Deadline: ev.Deadline()}:
		r.logger.Debug("Shutdown event sent to the controller")
	case <-ctx.Done():
		r.logger.Warn("Cancelled before the shutdown event could be delivered")
	}
}

func invokeLogs(ev *extensionapi.NextEventResponse) plog.Logs {
	ld := plog.NewLogs()
	sl := ld.ResourceLogs().AppendEmpty().ScopeLogs().AppendEmpty()
	sl.Scope().SetName(obsreport.ScopeName + "/" + scopeName)
	lr := sl.LogRecords().AppendEmpty()
	now := pcommon.NewTimestampFromTime(time.Now())
	lr.SetTimestamp(now)
	lr.SetObservedTimestamp(now)
	lr.SetSeverityNumber(plog.SeverityNumberInfo)
	lr.SetSeverityText("INFO")
	lr.Body().SetStr("INVOKE")
	attrs := lr.Attributes()
	attrs.PutStr(string(semconv.FaaSInvocationIDKey), ev.RequestID)
	if ev.InvokedFunctionArn != "" {
		attrs.PutStr(string(semconv.AWSLambdaInvokedARNKey), ev.InvokedFunctionArn)
	}
	if ev.Tracing.Value != "" {
		attrs.PutStr("aws.xray.trace_header", ev.Tracing.Value)
	}
	return ld
}
