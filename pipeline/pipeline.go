// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline moves envelopes from an input channel through a
// processor chain into an exporter, rerouting what the exporter could not
// deliver onto an optional failover channel.
package pipeline // import "github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Pipeline is built by Build. It is started once and runs until its
// cancellation token fires.
type Pipeline struct {
	name     string
	settings Settings
	logger   *zap.Logger
	obsrep   *obsreport.Pipeline

	receiver   receiver.Receiver
	processors processor.Chain
	exporter   exporter.Exporter
	failover   chan<- telemetry.Envelope
	token      *lifecycle.Token

	input chan telemetry.Envelope
	state *lifecycle.State
}

func zapPipeline(name string) zap.Field {
	return zap.String(obsreport.PipelineKey, name)
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Token returns the token that stops the pipeline.
func (p *Pipeline) Token() *lifecycle.Token {
	return p.token
}

// Start runs the pipeline until its token is cancelled, then drains the
// queued envelopes and shuts the exporter down. Everything after the
// cancellation, including an export already in flight, is bounded by the
// shutdown timeout or the token's deadline, whichever is earlier. Receiver
// errors are reported to host.
func (p *Pipeline) Start(host component.Host) error {
	if !p.state.Start() {
		return componenterror.ErrAlreadyStarted
	}
	defer p.state.Stop()

	ctx, cancel := p.shutdownContext()
	defer cancel()

	receiverDone := p.startReceiver(host)
	p.logger.Info("Pipeline is started.")

	p.run(ctx)

	p.stopReceiver(ctx, receiverDone)
	p.drain(ctx)
	if err := p.shutdownExporter(ctx); err != nil {
		p.logger.Warn("Exporter shutdown failed", zap.Error(err))
	}
	p.logger.Info("Pipeline is shutdown.")
	return nil
}

// shutdownContext returns a context that is unbounded until the token is
// cancelled and then expires once the shutdown budget is spent.
func (p *Pipeline) shutdownContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-p.token.Done():
		}
		deadline := time.Now().Add(p.settings.ShutdownTimeout)
		if d, ok := p.token.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			cancel(context.DeadlineExceeded)
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func (p *Pipeline) startReceiver(host component.Host) <-chan struct{} {
	done := make(chan struct{})
	if p.receiver == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		err := p.receiver.Start(p.token.Context(), p.input)
		if err == nil || errors.Is(err, componenterror.ErrAlreadyStopped) {
			return
		}
		p.logger.Error("Receiver failed", zap.Error(err))
		host.ReportFatalError(fmt.Errorf("pipeline %q: %w", p.name, err))
	}()
	return done
}

func (p *Pipeline) stopReceiver(ctx context.Context, done <-chan struct{}) {
	if p.receiver == nil {
		return
	}
	if err := p.receiver.Stop(ctx); err != nil {
		p.logger.Warn("Receiver did not stop in time", zap.Error(err))
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (p *Pipeline) run(ctx context.Context) {
	batch := make([]telemetry.Envelope, 0, p.settings.MaxBatchSize)
	for !p.token.IsCancelled() {
		select {
		case <-p.token.Done():
			return
		case env := <-p.input:
			batch = p.fill(append(batch[:0], env))
			p.consume(ctx, batch)
		}
	}
}

// drain consumes what is already queued until the queue is empty or ctx
// expires. Whatever is left is counted as dropped.
func (p *Pipeline) drain(ctx context.Context) {
	batch := make([]telemetry.Envelope, 0, p.settings.MaxBatchSize)
	for ctx.Err() == nil {
		batch = p.fill(batch[:0])
		if len(batch) == 0 {
			return
		}
		p.consume(ctx, batch)
	}
	if left := len(p.input); left > 0 {
		p.obsrep.Dropped(context.Background(), left)
		p.logger.Warn("Dropping envelopes left in the queue at shutdown", zap.Int("envelopes", left))
	}
}

// fill appends queued envelopes to batch without blocking.
func (p *Pipeline) fill(batch []telemetry.Envelope) []telemetry.Envelope {
	for len(batch) < p.settings.MaxBatchSize {
		select {
		case env := <-p.input:
			batch = append(batch, env)
		default:
			return batch
		}
	}
	return batch
}

func (p *Pipeline) consume(ctx context.Context, originals []telemetry.Envelope) {
	processed := make([]telemetry.Envelope, 0, len(originals))
	source := make([]int, 0, len(originals))
	for i, env := range originals {
		out, err := p.processors.Process(ctx, env)
		if err != nil {
			if !errors.Is(err, processor.ErrSkipProcessingData) {
				p.obsrep.ProcessorFailed(ctx, 1)
				p.logger.Warn("Dropping envelope after processor failure",
					zap.Stringer("kind", env.Kind()), zap.Error(err))
			}
			continue
		}
		processed = append(processed, out)
		source = append(source, i)
	}
	if len(processed) == 0 {
		return
	}

	err := p.export(ctx, processed)
	failed := exporter.FailedIndices(err, len(processed))
	if exported := len(processed) - len(failed); exported > 0 {
		p.obsrep.Exported(ctx, exported)
	}
	if len(failed) == 0 {
		return
	}
	p.obsrep.ExportFailed(ctx, len(failed))
	p.logger.Warn("Export failed", zap.Int("envelopes", len(failed)), zap.Error(err))
	for _, i := range failed {
		p.reroute(ctx, originals[source[i]])
	}
}

// export bounds the Export call by the export timeout even if the exporter
// ignores its context.
func (p *Pipeline) export(parent context.Context, batch []telemetry.Envelope) error {
	ctx, cancel := context.WithTimeout(parent, p.settings.ExportTimeout)
	defer cancel()
	return callWithContext(ctx, func(ctx context.Context) error {
		return p.exporter.Export(ctx, batch)
	})
}

func (p *Pipeline) reroute(ctx context.Context, env telemetry.Envelope) {
	if p.failover == nil {
		p.obsrep.Dropped(ctx, 1)
		p.logger.Debug("Dropping envelope, no failover configured", zap.Stringer("kind", env.Kind()))
		return
	}
	if err := telemetry.TrySend(p.failover, env); err != nil {
		p.obsrep.Dropped(ctx, 1)
		p.logger.Warn("Dropping envelope, failover enqueue failed",
			zap.Stringer("kind", env.Kind()), zap.Error(err))
		return
	}
	p.obsrep.FailedOver(ctx, 1)
}

func (p *Pipeline) shutdownExporter(ctx context.Context) error {
	err := callWithContext(ctx, p.exporter.Shutdown)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", componenterror.ErrShutdownTimeout, err)
	}
	return err
}

// callWithContext returns when fn does or when ctx is done, whichever is
// first. A panic in fn is returned as an error.
func callWithContext(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
