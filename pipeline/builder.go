// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline // import "github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"

import (
	"errors"
	"fmt"

	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Unset marks a Builder slot that has not been provided yet.
type Unset struct{}

// Set marks a Builder slot that has been provided.
type Set struct{}

// Builder accumulates the components of a Pipeline. Its type parameters
// record which of the receiver, processors, exporter, failover and
// cancellation slots are filled, in that order. Every With function only
// accepts a Builder whose slot is still Unset, and Build only accepts one
// whose processors, exporter and cancellation slots are Set, so an
// incomplete Pipeline built through the With functions does not compile.
//
// All instantiations share one underlying type, so an explicit conversion
// such as Builder[Unset, Set, Set, Unset, Set](NewBuilder(...)) bypasses the
// slot markers. Build therefore also checks the components at run time and
// rejects a missing exporter or cancellation token.
type Builder[R, P, E, F, T any] struct {
	parts parts
}

type parts struct {
	name       string
	settings   Settings
	receiver   receiver.Receiver
	processors processor.Chain
	exporter   exporter.Exporter
	failover   chan<- telemetry.Envelope
	token      *lifecycle.Token
}

// NewBuilder starts a Builder for the pipeline called name.
func NewBuilder(name string, set Settings) Builder[Unset, Unset, Unset, Unset, Unset] {
	return Builder[Unset, Unset, Unset, Unset, Unset]{parts: parts{name: name, settings: set}}
}

// WithReceiver sets the optional receiver that feeds the pipeline input.
func WithReceiver[P, E, F, T any](b Builder[Unset, P, E, F, T], r receiver.Receiver) Builder[Set, P, E, F, T] {
	b.parts.receiver = r
	return Builder[Set, P, E, F, T](b)
}

// WithProcessors sets the processor chain. An empty chain is allowed.
func WithProcessors[R, E, F, T any](b Builder[R, Unset, E, F, T], processors ...processor.Processor) Builder[R, Set, E, F, T] {
	b.parts.processors = append(processor.Chain{}, processors...)
	return Builder[R, Set, E, F, T](b)
}

// WithExporter sets the exporter.
func WithExporter[R, P, F, T any](b Builder[R, P, Unset, F, T], e exporter.Exporter) Builder[R, P, Set, F, T] {
	b.parts.exporter = e
	return Builder[R, P, Set, F, T](b)
}

// WithFailover sets the channel that receives the original envelopes the
// exporter failed to deliver.
func WithFailover[R, P, E, T any](b Builder[R, P, E, Unset, T], failover chan<- telemetry.Envelope) Builder[R, P, E, Set, T] {
	b.parts.failover = failover
	return Builder[R, P, E, Set, T](b)
}

// WithCancellation sets the token whose cancellation stops the pipeline.
func WithCancellation[R, P, E, F any](b Builder[R, P, E, F, Unset], token *lifecycle.Token) Builder[R, P, E, F, Set] {
	b.parts.token = token
	return Builder[R, P, E, F, Set](b)
}

// Build assembles the Pipeline and returns it together with the sending
// half of its input channel. Build only fails for nil components, which a
// conversion between Builder types can produce, or for invalid settings.
func Build[R, F any](b Builder[R, Set, Set, F, Set]) (*Pipeline, chan<- telemetry.Envelope, error) {
	p := b.parts
	if p.exporter == nil {
		return nil, nil, errors.New("nil exporter")
	}
	if p.token == nil {
		return nil, nil, errors.New("nil cancellation token")
	}
	for i, proc := range p.processors {
		if proc == nil {
			return nil, nil, fmt.Errorf("nil processor at index %d", i)
		}
	}
	set := p.settings.withDefaults()
	if err := set.Validate(); err != nil {
		return nil, nil, err
	}
	obsrep, err := obsreport.NewPipeline(p.name, set.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("create pipeline counters: %w", err)
	}

	input := make(chan telemetry.Envelope, set.QueueSize)
	return &Pipeline{
		name:       p.name,
		settings:   set,
		logger:     set.Telemetry.LoggerOrNop().Named("pipeline").With(zapPipeline(p.name)),
		obsrep:     obsrep,
		receiver:   p.receiver,
		processors: p.processors,
		exporter:   p.exporter,
		failover:   p.failover,
		token:      p.token,
		input:      input,
		state:      lifecycle.NewState(),
	}, input, nil
}
