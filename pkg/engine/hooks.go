package engine

import "context"

// EventKind is one of the six lifecycle event labels (spec §4.4).
type EventKind string

const (
	EventPreCreate     EventKind = "pre-create"
	EventPostCreate    EventKind = "post-create"
	EventPostReceive   EventKind = "post-receive"
	EventPreTerminate  EventKind = "pre-terminate"
	EventPostTerminate EventKind = "post-terminate"
	EventPostFinish    EventKind = "post-finish"
)

// RequestInfo carries the pieces of the originating HTTP request that are
// relevant to a hook payload (spec §4.4: "a copy of the record plus the
// originating request's method, uri, remote address, and selected
// headers"). The protocol adapter populates this; the engine only threads
// it through.
type RequestInfo struct {
	Method     string
	URI        string
	RemoteAddr string
	Header     map[string][]string
}

// Snapshot is the UploadSnapshot passed to every hook invocation: a copy of
// the record plus the originating request's details.
type Snapshot struct {
	Upload  Record
	Request RequestInfo
}

// HookResult is returned by a pre-event dispatch. For pre-create it may also
// carry changes to apply to the record before it is persisted.
type HookResult struct {
	Allowed        bool
	Reason         string
	MetadataChange MetaData // non-nil replaces the record's metadata before creation
}

// Dispatcher is the narrow interface the engine uses to fire lifecycle
// events. The concrete fan-out across notifiers (blocking vs non-blocking,
// concurrent evaluation) lives in pkg/hookdispatch and is invisible to the
// engine, matching §9's "the engine knows none of the backends by name".
type Dispatcher interface {
	// Pre dispatches a blocking pre-* event and returns whether it was
	// allowed to proceed. A false result with a nil error means a blocking
	// notifier vetoed the transition; the reason explains why.
	Pre(ctx context.Context, kind EventKind, snap Snapshot) (HookResult, error)
	// Post dispatches a post-* event. Failures are never propagated to the
	// caller; implementations log and count them internally.
	Post(ctx context.Context, kind EventKind, snap Snapshot)
}

// NopDispatcher allows every transition unconditionally and discards post
// events. Useful for engines constructed without any configured hooks.
type NopDispatcher struct{}

func (NopDispatcher) Pre(ctx context.Context, kind EventKind, snap Snapshot) (HookResult, error) {
	return HookResult{Allowed: true}, nil
}

func (NopDispatcher) Post(ctx context.Context, kind EventKind, snap Snapshot) {}
