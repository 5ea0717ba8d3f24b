// Package feed supplies graph snapshots to a running visualizer.
//
// A Feed runs until its context ends or the source is exhausted, pushing
// each full snapshot into a Sink. Failures are reported through the sink
// and never clear the last good graph.
package feed

import (
	"context"
	"errors"

	"github.com/ritzau/forcegraph/pkg/model"
)

// Sink receives snapshots and failures from a feed
type Sink interface {
	Submit(s model.Snapshot)
	Fail(err error)
}

// Feed is a data source for a visualizer
type Feed interface {
	Run(ctx context.Context, sink Sink) error
}

// Func adapts a function to a Feed
type Func func(ctx context.Context, sink Sink) error

// Run calls f
func (f Func) Run(ctx context.Context, sink Sink) error {
	return f(ctx, sink)
}

// Static is a feed that submits one snapshot and returns
type Static model.Snapshot

// Run submits the snapshot
func (s Static) Run(ctx context.Context, sink Sink) error {
	sink.Submit(model.Snapshot(s))
	return nil
}

// ErrTraceFailed wraps errors reported by the tracer backend
var ErrTraceFailed = errors.New("trace failed")
