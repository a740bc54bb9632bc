// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package otlpexporter exports envelopes to an OTLP/gRPC backend.
package otlpexporter // import "github.com/open-telemetry/opentelemetry-lambda/extension/exporter/otlpexporter"

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Exporter sends logs, metrics and spans over a single gRPC connection.
type Exporter struct {
	cfg    Config
	logger *zap.Logger

	clientConn     *grpc.ClientConn
	logExporter    plogotlp.GRPCClient
	metricExporter pmetricotlp.GRPCClient
	traceExporter  ptraceotlp.GRPCClient
	metadata       metadata.MD

	stopped *atomic.Bool
}

var _ exporter.Exporter = (*Exporter)(nil)

// New creates the exporter. The connection is established lazily on the
// first export.
func New(set component.TelemetrySettings, cfg Config) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if !cfg.Insecure {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	var statsOpts []otelgrpc.Option
	if set.MeterProvider != nil {
		statsOpts = append(statsOpts, otelgrpc.WithMeterProvider(set.MeterProvider))
	}
	clientConn, err := grpc.NewClient(cfg.Endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsOpts...)))
	if err != nil {
		return nil, fmt.Errorf("creating gRPC client for %s: %w", cfg.Endpoint, err)
	}

	return &Exporter{
		cfg:            cfg,
		logger:         set.LoggerOrNop().Named("otlpexporter"),
		clientConn:     clientConn,
		logExporter:    plogotlp.NewGRPCClient(clientConn),
		metricExporter: pmetricotlp.NewGRPCClient(clientConn),
		traceExporter:  ptraceotlp.NewGRPCClient(clientConn),
		metadata:       metadata.New(cfg.Headers),
		stopped:        atomic.NewBool(false),
	}, nil
}

// Export sends each envelope with its own retry budget. Envelopes that
// could not be delivered are reported through an *exporter.ExportError.
func (e *Exporter) Export(ctx context.Context, batch []telemetry.Envelope) error {
	if e.stopped.Load() {
		return exporter.ErrShutdown
	}

	var (
		failed []int
		errs   error
	)
	for i, env := range batch {
		if err := e.exportWithRetry(ctx, env); err != nil {
			failed = append(failed, i)
			errs = multierr.Append(errs, err)
		}
	}
	if len(failed) > 0 {
		return exporter.NewExportError(failed, errs)
	}
	return nil
}

// Flush is a no-op; nothing is buffered between calls.
func (e *Exporter) Flush(context.Context) error {
	return nil
}

// Shutdown closes the connection. Calls after the first return nil.
func (e *Exporter) Shutdown(context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	return e.clientConn.Close()
}

func (e *Exporter) exportWithRetry(ctx context.Context, env telemetry.Envelope) error {
	attempt := func() error {
		err := processError(e.export(ctx, env))
		if d := throttleDelay(err); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
		return err
	}

	if !e.cfg.Retry.Enabled {
		err := attempt()
		if perm, ok := err.(*backoff.PermanentError); ok {
			return perm.Err
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.Retry.InitialInterval
	bo.MaxInterval = e.cfg.Retry.MaxInterval
	bo.MaxElapsedTime = e.cfg.Retry.MaxElapsedTime
	return backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		e.logger.Debug("Exporting failed. Will retry the request after interval.",
			zap.Stringer("kind", env.Kind()),
			zap.Duration("interval", next),
			zap.Error(err))
	})
}

func (e *Exporter) export(ctx context.Context, env telemetry.Envelope) error {
	ctx, cancel := context.WithTimeout(e.enhanceContext(ctx), e.cfg.Timeout)
	defer cancel()

	var err error
	switch env.Kind() {
	case telemetry.KindLogs:
		ld, _ := env.Logs()
		_, err = e.logExporter.Export(ctx, plogotlp.NewExportRequestFromLogs(ld))
	case telemetry.KindMetrics:
		md, _ := env.Metrics()
		_, err = e.metricExporter.Export(ctx, pmetricotlp.NewExportRequestFromMetrics(md))
	case telemetry.KindTraces:
		td, _ := env.Traces()
		_, err = e.traceExporter.Export(ctx, ptraceotlp.NewExportRequestFromTraces(td))
	default:
		return status.Error(codes.InvalidArgument, "envelope carries no telemetry")
	}
	return err
}

func (e *Exporter) enhanceContext(ctx context.Context) context.Context {
	if e.metadata.Len() > 0 {
		return metadata.NewOutgoingContext(ctx, e.metadata)
	}
	return ctx
}

// processError marks errors that must not be retried as permanent.
func processError(err error) error {
	if err == nil {
		// Request is successful, we are done.
		return nil
	}

	st := status.Convert(err)
	if st.Code() == codes.OK {
		// Not really an error, still success.
		return nil
	}

	if !shouldRetry(st.Code()) {
		return backoff.Permanent(err)
	}
	return err
}

func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Canceled,
		codes.DeadlineExceeded,
		codes.PermissionDenied,
		codes.Unauthenticated,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.OutOfRange,
		codes.Unavailable,
		codes.DataLoss:
		// These are retryable errors.
		return true
	}
	// Don't retry on fatal or unknown codes.
	return false
}

// throttleDelay returns the delay the server asked for, if any.
func throttleDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	for _, detail := range st.Details() {
		if t, ok := detail.(*errdetails.RetryInfo); ok {
			if d := t.GetRetryDelay(); d != nil {
				return d.AsDuration()
			}
			return 0
		}
	}
	return 0
}
