// Package hookdispatch implements engine.Dispatcher by fanning a lifecycle
// event out to a set of configured notifiers. It is modeled on the
// teacher's pkg/hooks.HookHandler / invokeHookSync pattern, adapted from
// that package's channel-and-goroutine wiring to the engine's synchronous
// Pre/Post call-and-return interface.
package hookdispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Notifier delivers a single lifecycle event to one backend (subprocess,
// HTTP endpoint, message broker, ...). It mirrors the teacher's HookHandler
// interface: Setup prepares any long-lived client, Invoke delivers one
// event and optionally returns a verdict.
type Notifier interface {
	Setup() error
	Invoke(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (Result, error)
}

// Result is a notifier's verdict on a single invocation. Only blocking
// notifiers examine Reject/MetadataChange; non-blocking notifiers return
// the zero Result and are evaluated for their error alone.
type Result struct {
	Reject         bool
	Reason         string
	MetadataChange engine.MetaData
}

// Entry binds a Notifier to the events it should receive and whether a
// failure (or a Reject verdict) blocks the transition. Blocking entries are
// only meaningful for pre-* events; a blocking entry subscribed to a
// post-* event simply has its error logged like any other notifier,
// since Post never returns an error to its caller.
type Entry struct {
	Name     string
	Notifier Notifier
	Events   map[engine.EventKind]bool
	Blocking bool
}

func (e Entry) handles(kind engine.EventKind) bool {
	if len(e.Events) == 0 {
		return true
	}
	return e.Events[kind]
}

// Dispatcher fans events out to its configured entries, evaluating them
// concurrently. It implements engine.Dispatcher.
type Dispatcher struct {
	entries []Entry
	log     *slog.Logger
	metrics MetricsRecorder
}

// MetricsRecorder receives per-invocation counts, modeled on the teacher's
// MetricsHookInvocationsTotal / MetricsHookErrorsTotal counter vectors.
type MetricsRecorder interface {
	RecordInvocation(notifier string, kind engine.EventKind)
	RecordError(notifier string, kind engine.EventKind)
}

type nopMetrics struct{}

func (nopMetrics) RecordInvocation(string, engine.EventKind) {}
func (nopMetrics) RecordError(string, engine.EventKind)      {}

// New builds a Dispatcher from a set of entries. log and metrics may be
// nil; the default slog logger and a no-op recorder are substituted.
func New(entries []Entry, log *slog.Logger, metrics MetricsRecorder) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	for _, e := range entries {
		if err := e.Notifier.Setup(); err != nil {
			return nil, err
		}
	}
	return &Dispatcher{entries: entries, log: log, metrics: metrics}, nil
}

// Pre dispatches a blocking pre-* event. Every entry subscribed to kind is
// invoked concurrently; a Reject verdict or error from any blocking entry
// vetoes the transition. Non-blocking entries are still invoked (and their
// errors logged) but cannot veto. The first blocking rejection encountered
// wins the Reason; MetadataChange is taken from the first blocking entry
// that supplies one.
func (d *Dispatcher) Pre(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) (engine.HookResult, error) {
	type outcome struct {
		entry  Entry
		result Result
		err    error
	}

	var wg sync.WaitGroup
	outcomes := make([]outcome, 0, len(d.entries))
	var mu sync.Mutex

	for _, e := range d.entries {
		if !e.handles(kind) {
			continue
		}
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.metrics.RecordInvocation(e.Name, kind)
			res, err := e.Notifier.Invoke(ctx, kind, snap)
			if err != nil {
				d.metrics.RecordError(e.Name, kind)
				d.log.Warn("hook invocation failed", "notifier", e.Name, "event", kind, "error", err)
			}
			mu.Lock()
			outcomes = append(outcomes, outcome{e, res, err})
			mu.Unlock()
		}()
	}
	wg.Wait()

	result := engine.HookResult{Allowed: true}
	for _, o := range outcomes {
		if !o.entry.Blocking {
			continue
		}
		if o.err != nil {
			return engine.HookResult{Allowed: false, Reason: "hook " + o.entry.Name + " failed: " + o.err.Error()}, nil
		}
		if o.result.Reject {
			return engine.HookResult{Allowed: false, Reason: o.result.Reason}, nil
		}
		if o.result.MetadataChange != nil && result.MetadataChange == nil {
			result.MetadataChange = o.result.MetadataChange
		}
	}
	return result, nil
}

// Post dispatches a post-* event to every subscribed entry concurrently.
// Failures are logged and counted, never propagated: post events describe
// something that already happened and cannot be vetoed (spec §4.4).
func (d *Dispatcher) Post(ctx context.Context, kind engine.EventKind, snap engine.Snapshot) {
	var wg sync.WaitGroup
	for _, e := range d.entries {
		if !e.handles(kind) {
			continue
		}
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.metrics.RecordInvocation(e.Name, kind)
			if _, err := e.Notifier.Invoke(ctx, kind, snap); err != nil {
				d.metrics.RecordError(e.Name, kind)
				d.log.Warn("hook invocation failed", "notifier", e.Name, "event", kind, "error", err)
			}
		}()
	}
	wg.Wait()
}

var _ engine.Dispatcher = (*Dispatcher)(nil)
