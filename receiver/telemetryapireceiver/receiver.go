// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetryapireceiver implements a receiver for batches the host's
// Telemetry API pushes over HTTP.
package telemetryapireceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/telemetryapireceiver"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receiverhelper"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

const (
	receiverName = "telemetryapi"

	readHeaderTimeout = 5 * time.Second
	serverStopTimeout = time.Second
)

// Receiver listens for Telemetry API batches and enqueues them with a
// bounded deadline. Batches that cannot be enqueued in time are dropped so
// the host is always acknowledged promptly.
type Receiver struct {
	cfg           Config
	logger        *zap.Logger
	meterProvider metric.MeterProvider
	obsrep        *obsreport.Receiver
	conv          converter

	dropped *atomic.Int64
	addr    *atomic.String
	runner  *receiverhelper.Runner
}

var _ receiver.Receiver = (*Receiver)(nil)

// New creates a Telemetry API receiver.
func New(set component.TelemetrySettings, cfg Config) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBytes == 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	obsrep, err := obsreport.NewReceiver(receiverName, set)
	if err != nil {
		return nil, err
	}
	logger := set.LoggerOrNop().Named("telemetryapireceiver")
	return &Receiver{
		cfg:           cfg,
		logger:        logger,
		meterProvider: set.MeterProvider,
		obsrep:        obsrep,
		conv:          converter{logger: logger},
		dropped:       atomic.NewInt64(0),
		addr:          atomic.NewString(""),
		runner:        receiverhelper.NewRunner(),
	}, nil
}

// Dropped returns how many envelopes were dropped because the pipeline was
// saturated.
func (r *Receiver) Dropped() int64 {
	return r.dropped.Load()
}

// Addr returns the address the listener is bound to, or "" before Start.
func (r *Receiver) Addr() string {
	return r.addr.Load()
}

// Start serves the listener until ctx is done or Stop is called.
func (r *Receiver) Start(ctx context.Context, next chan<- telemetry.Envelope) error {
	if next == nil {
		return componenterror.ErrNilNextConsumer
	}
	return r.runner.Run(ctx, func(ctx context.Context) error {
		ln, err := net.Listen("tcp", r.cfg.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to bind to address %s: %w", r.cfg.Endpoint, err)
		}
		r.addr.Store(ln.Addr().String())

		srv := &http.Server{
			Handler:           r.Handler(ctx, next),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.Serve(ln)
		}()
		r.logger.Info("Telemetry API listener started", zap.String("endpoint", ln.Addr().String()))

		select {
		case err = <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		// Handlers observe ctx, so in-flight enqueues return promptly.
		stopCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		defer cancel()
		if err = srv.Shutdown(stopCtx); err != nil {
			r.logger.Warn("Listener did not stop cleanly", zap.Error(err))
			_ = srv.Close()
		}
		<-serveErr
		r.logger.Info("Telemetry API listener stopped", zap.Int64("dropped", r.Dropped()))
		return nil
	})
}

// Stop shuts the listener down and waits for in-flight requests.
func (r *Receiver) Stop(ctx context.Context) error {
	return r.runner.Stop(ctx)
}

// Handler returns the HTTP handler that enqueues onto next. Enqueue attempts
// are abandoned once ctx is done.
func (r *Receiver) Handler(ctx context.Context, next chan<- telemetry.Envelope) http.Handler {
	router := mux.NewRouter()
	router.Handle("/", &batchHandler{r: r, ctx: ctx, next: next}).Methods(http.MethodPost)
	opts := []otelhttp.Option{}
	if r.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(r.meterProvider))
	}
	return otelhttp.NewHandler(router, receiverName, opts...)
}

type batchHandler struct {
	r    *Receiver
	ctx  context.Context
	next chan<- telemetry.Envelope
}

func (h *batchHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r := h.r
	var events []apiEvent
	body := http.MaxBytesReader(w, req.Body, r.cfg.MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&events); err != nil {
		r.obsrep.Refused(req.Context(), 1)
		r.logger.Warn("Rejected malformed batch", zap.Error(err))
		http.Error(w, "malformed batch", http.StatusBadRequest)
		return
	}

	for _, env := range r.conv.convert(events) {
		err := telemetry.SendWithTimeout(h.ctx, h.next, env, r.cfg.EnqueueTimeout)
		if err != nil {
			r.dropped.Inc()
			r.obsrep.Dropped(req.Context(), 1)
			r.logger.Warn("Dropped batch, pipeline is saturated",
				zap.Stringer("kind", env.Kind()),
				zap.Int("items", env.ItemCount()),
				zap.Error(err))
			continue
		}
		r.obsrep.Accepted(req.Context(), 1)
	}
	w.WriteHeader(http.StatusOK)
}
