// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/config"
	"github.com/open-telemetry/opentelemetry-lambda/extension/event"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter/jsonexporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter/otlpexporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/sharedcomponent"
	"github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"
	"github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor/filterprocessor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor/resourceprocessor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/extensionreceiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/telemetryapireceiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/service"
)

const (
	// Pipeline names.
	telemetryPipeline = "telemetry"
	consolePipeline   = "console"

	eventBuffer        = 4
	errorReportTimeout = 200 * time.Millisecond
	meterFlushTimeout  = 200 * time.Millisecond
)

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mp, shutdownMeter, err := newMeterProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), meterFlushTimeout)
		defer cancel()
		if err := shutdownMeter(flushCtx); err != nil {
			logger.Warn("Failed to flush own metrics", zap.Error(err))
		}
	}()

	set := component.TelemetrySettings{Logger: logger, MeterProvider: mp}
	events := make(chan event.ApplicationEvent, eventBuffer)
	controller, err := service.NewController(service.Settings{Telemetry: set}, events)
	if err != nil {
		return err
	}
	client := extensionapi.NewClient(cfg.RuntimeAPI, cfg.ExtensionName,
		extensionapi.WithLogger(logger),
		extensionapi.WithMeterProvider(mp))

	pipelines, err := buildPipelines(cfg, set, controller, client, events, stdout)
	if err != nil {
		return err
	}

	stopSignals := forwardSignals(controller.Token(), events, logger)
	defer stopSignals()

	if err = controller.Start(pipelines); err != nil {
		logger.Error("Extension failed", zap.Error(err))
		reportError(client, err, logger)
	}
	return err
}

// buildPipelines wires the telemetry pipeline, which exports what the host
// pushes to the listener, and the console pipeline, which writes host
// lifecycle records and everything the telemetry pipeline failed to export
// to stdout. The console pipeline runs on the failover token so it drains
// after the telemetry pipeline.
func buildPipelines(
	cfg *config.Config,
	set component.TelemetrySettings,
	controller *service.Controller,
	client *extensionapi.Client,
	events chan<- event.ApplicationEvent,
	stdout io.Writer,
) ([]*pipeline.Pipeline, error) {
	pset := pipeline.Settings{
		Telemetry:       set,
		QueueSize:       cfg.QueueSize,
		MaxBatchSize:    cfg.MaxBatchSize,
		ExportTimeout:   cfg.ExportTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	console := sharedcomponent.NewExporter(jsonexporter.New(set, stdout))

	resourceProc, err := resourceprocessor.New(set, controller)
	if err != nil {
		return nil, err
	}

	hostRecv, err := extensionreceiver.New(set, client, events,
		extensionreceiver.WithResourceSetter(controller),
		extensionreceiver.WithRegisteredHook(subscribe(client, cfg.ListenerURI())))
	if err != nil {
		return nil, err
	}
	consoleP, consoleInput, err := pipeline.Build(
		pipeline.WithReceiver(
			pipeline.WithCancellation(
				pipeline.WithExporter(
					pipeline.WithProcessors(pipeline.NewBuilder(consolePipeline, pset), resourceProc),
					console.Acquire()),
				controller.FailoverToken()),
			hostRecv))
	if err != nil {
		return nil, fmt.Errorf("build %s pipeline: %w", consolePipeline, err)
	}

	listener, err := telemetryapireceiver.New(set, telemetryapireceiver.Config{
		Endpoint:       cfg.ListenerEndpoint(),
		EnqueueTimeout: cfg.EnqueueTimeout,
	})
	if err != nil {
		return nil, err
	}
	filterProc, err := filterprocessor.New(
		filterprocessor.Config{MinSeverity: cfg.Severity(), Exclude: cfg.LogExclude},
		filterprocessor.WithLogger(set.LoggerOrNop()))
	if err != nil {
		return nil, err
	}
	b := pipeline.WithReceiver(
		pipeline.WithCancellation(
			pipeline.WithProcessors(pipeline.NewBuilder(telemetryPipeline, pset), filterProc, resourceProc),
			controller.Token()),
		listener)

	var telemetryP *pipeline.Pipeline
	if cfg.OTLPEnabled {
		retry := otlpexporter.DefaultRetrySettings()
		retry.Enabled = cfg.OTLPRetryEnabled
		otlp, err := otlpexporter.New(set, otlpexporter.Config{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
			Headers:  cfg.OTLPHeaders,
			Timeout:  cfg.OTLPTimeout,
			Retry:    retry,
		})
		if err != nil {
			return nil, err
		}
		telemetryP, _, err = pipeline.Build(pipeline.WithFailover(pipeline.WithExporter(b, otlp), consoleInput))
		if err != nil {
			return nil, fmt.Errorf("build %s pipeline: %w", telemetryPipeline, err)
		}
	} else {
		telemetryP, _, err = pipeline.Build(pipeline.WithExporter(b, console.Acquire()))
		if err != nil {
			return nil, fmt.Errorf("build %s pipeline: %w", telemetryPipeline, err)
		}
	}
	return []*pipeline.Pipeline{telemetryP, consoleP}, nil
}

func subscribe(client *extensionapi.Client, uri string) extensionreceiver.RegisteredHook {
	return func(ctx context.Context, _ *extensionapi.RegisterResponse) error {
		return client.Subscribe(ctx, uri, extensionapi.DefaultSubscriptionTypes, extensionapi.DefaultBuffering)
	}
}

// forwardSignals turns SIGINT and SIGTERM into a shutdown event. The
// returned function stops listening and waits for the forwarder to exit;
// call it after the token is cancelled.
func forwardSignals(token *lifecycle.Token, events chan<- event.ApplicationEvent, logger *zap.Logger) func() {
	signalsChannel := make(chan os.Signal, 1)
	signal.Notify(signalsChannel, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case s := <-signalsChannel:
			logger.Info("Received signal from OS", zap.String("signal", s.String()))
			select {
			case events <- event.Shutdown{Reason: event.Other(s.String())}:
			case <-token.Done():
			}
		case <-token.Done():
		}
	}()
	return func() {
		signal.Stop(signalsChannel)
		<-done
	}
}

// reportError tells the host why the extension is exiting. Registration
// failures after a successful register call are init errors.
func reportError(client *extensionapi.Client, cause error, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), errorReportTimeout)
	defer cancel()

	var err error
	if errors.Is(cause, componenterror.ErrRegistration) {
		err = client.InitError(ctx, "Extension.InitFailed", cause)
	} else {
		err = client.ExitError(ctx, "Extension.Crash", cause)
	}
	if err != nil {
		logger.Debug("Could not report error to host", zap.Error(err))
	}
}
