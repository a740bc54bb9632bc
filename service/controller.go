// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package service owns the process lifecycle: it runs the pipelines, turns
// application events into cancellation and waits for every pipeline to
// finish before the process exits.
package service // import "github.com/open-telemetry/opentelemetry-lambda/extension/service"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/event"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"
	"github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"
)

const (
	asyncErrorBuffer = 8

	// deadlineReserve is kept back from the host's shutdown deadline for
	// the work that follows the pipelines, such as flushing own metrics.
	deadlineReserve = 250 * time.Millisecond
)

// Settings configures a Controller.
type Settings struct {
	Telemetry component.TelemetrySettings
}

// Controller is the top level lifecycle owner. It implements
// component.Host for the pipelines it starts.
type Controller struct {
	logger    *zap.Logger
	shutdowns metric.Int64Counter

	resource      ResourceCell
	events        <-chan event.ApplicationEvent
	token         *lifecycle.Token
	failoverToken *lifecycle.Token
	state         *lifecycle.State

	// asyncErrorChannel is used to signal a fatal error from any component.
	asyncErrorChannel chan error
}

var _ component.Host = (*Controller)(nil)

// NewController returns a Controller that reads application events from
// events.
func NewController(set Settings, events <-chan event.ApplicationEvent) (*Controller, error) {
	if events == nil {
		return nil, fmt.Errorf("application events: %w", componenterror.ErrNilNextConsumer)
	}
	shutdowns, err := set.Telemetry.Meter(obsreport.ScopeName).Int64Counter(obsreport.Shutdowns,
		metric.WithDescription("Number of shutdown events received from the host."),
		metric.WithUnit("{shutdown}"))
	if err != nil {
		return nil, fmt.Errorf("create shutdown counter: %w", err)
	}
	return &Controller{
		logger:            set.Telemetry.LoggerOrNop().Named("controller"),
		shutdowns:         shutdowns,
		events:            events,
		token:             lifecycle.NewToken(),
		failoverToken:     lifecycle.NewToken(),
		state:             lifecycle.NewState(),
		asyncErrorChannel: make(chan error, asyncErrorBuffer),
	}, nil
}

// Token returns the cancellation token of the pipelines that are stopped
// first on shutdown.
func (c *Controller) Token() *lifecycle.Token {
	return c.token
}

// FailoverToken returns the cancellation token for pipelines that receive
// failover from other pipelines. It is cancelled, with the same deadline,
// only after every other pipeline has returned, so envelopes rerouted
// while those drain still have a consumer.
func (c *Controller) FailoverToken() *lifecycle.Token {
	return c.failoverToken
}

// SetResource stores the process Resource. Only the first call succeeds.
func (c *Controller) SetResource(res pcommon.Resource) error {
	return c.resource.Set(res)
}

// Resource returns a copy of the process Resource.
func (c *Controller) Resource() (pcommon.Resource, error) {
	return c.resource.Get()
}

// ReportFatalError makes Start cancel every pipeline and return err. It
// never blocks; errors beyond the buffered ones are only logged.
func (c *Controller) ReportFatalError(err error) {
	select {
	case c.asyncErrorChannel <- err:
	default:
		c.logger.Error("Dropping fatal error, shutdown already in progress", zap.Error(err))
	}
}

// Start runs every pipeline and the event loop. It returns once the event
// loop has ended and every pipeline returned. Pipelines on FailoverToken
// are cancelled after all the others have returned. The result combines
// the event loop error with every pipeline failure.
func (c *Controller) Start(pipelines []*pipeline.Pipeline) error {
	if !c.state.Start() {
		return componenterror.ErrAlreadyStarted
	}
	defer c.state.Stop()

	outcomes := make([]error, len(pipelines))
	var sources, targets sync.WaitGroup
	for i, p := range pipelines {
		wg := &sources
		if p.Token() == c.failoverToken {
			wg = &targets
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.runPipeline(p)
		}()
	}
	c.logger.Info("Everything is ready. Begin running and processing data.", zap.Int("pipelines", len(pipelines)))

	err := c.runAndWaitForShutdownEvent()
	c.token.Cancel()
	sources.Wait()
	deadline, _ := c.token.Deadline()
	c.failoverToken.CancelWithDeadline(deadline)
	targets.Wait()
	c.logger.Info("Shutdown complete.")

	// A pipeline failure is also what ended the event loop; report it once.
	for _, outcome := range outcomes {
		if err != nil && errors.Is(outcome, err) {
			err = nil
		}
	}
	return multierr.Combine(append([]error{err}, outcomes...)...)
}

func (c *Controller) runPipeline(p *pipeline.Pipeline) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %q panicked: %v", p.Name(), r)
		}
		if err != nil {
			c.ReportFatalError(err)
		}
	}()
	return p.Start(c)
}

func (c *Controller) runAndWaitForShutdownEvent() error {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.logger.Warn("Application event channel closed without a shutdown event")
				c.token.Cancel()
				return nil
			}
			shutdown, isShutdown := ev.(event.Shutdown)
			if !isShutdown {
				c.logger.Info("Ignoring application event", zap.String("event", fmt.Sprintf("%T", ev)))
				continue
			}
			c.handleShutdown(shutdown)
			return nil
		case err := <-c.asyncErrorChannel:
			c.logger.Error("Fatal error, shutting down", zap.Error(err))
			c.token.Cancel()
			return err
		case <-c.token.Done():
			c.logger.Info("Cancelled, shutting down")
			return nil
		}
	}
}

func (c *Controller) handleShutdown(ev event.Shutdown) {
	fields := []zap.Field{zap.Stringer("reason", ev.Reason)}
	if !ev.Deadline.IsZero() {
		fields = append(fields, zap.Time("deadline", ev.Deadline))
	}
	c.logger.Info("Received shutdown event", fields...)
	event.RecordShutdown(context.Background(), c.shutdowns, ev.Reason)

	var deadline time.Time
	if !ev.Deadline.IsZero() {
		deadline = ev.Deadline.Add(-deadlineReserve)
	}
	c.token.CancelWithDeadline(deadline)
}
