// Trace record definitions and sink interfaces.
//
// A Trace is a single tagged record describing one thing the executive just
// did: a definition (task/event/alloc), a mark (start/stop/idle/...), or an
// error. It is handed to a TraceSink for formatting/transport, which is
// explicitly out of scope for the core (spec.md §1) — this package only
// defines the contract, the same way the teacher's logger.go defines
// CollectableLogger as an interface-shaped wrapper without prescribing
// where the bytes ultimately land.
package rtosexec

// Tag identifies the kind of record carried by a Trace.
type Tag int

const (
	// Definitions
	DefTask Tag = iota
	DefEvent
	DefAlloc
	// Marks
	MarkInit
	MarkHalt
	MarkStart
	MarkStop
	MarkEvent
	MarkIdle
	MarkWake
	// Errors
	ErrorMaxEvent
	ErrorUndefinedEvent
	ErrorMaxAlloc
	ErrorMaxPool
	ErrorNullPool
	ErrorMaxTask
	ErrorNullTask
	ErrorInvalidTask
	ErrorDuplicateEvent
	ErrorMissed
	// Debug
	DebugMessage
)

var tagNames = map[Tag]string{
	DefTask:             "def_task",
	DefEvent:            "def_event",
	DefAlloc:            "def_alloc",
	MarkInit:            "init",
	MarkHalt:            "halt",
	MarkStart:           "start",
	MarkStop:            "stop",
	MarkEvent:           "event",
	MarkIdle:            "idle",
	MarkWake:            "wake",
	ErrorMaxEvent:       "max_event",
	ErrorUndefinedEvent: "undefined_event",
	ErrorMaxAlloc:       "max_alloc",
	ErrorMaxPool:        "max_pool",
	ErrorNullPool:       "null_pool",
	ErrorMaxTask:        "max_task",
	ErrorNullTask:       "null_task",
	ErrorInvalidTask:    "invalid_task",
	ErrorDuplicateEvent: "duplicate_event",
	ErrorMissed:         "missed",
	DebugMessage:        "message",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsError reports whether the tag belongs to the error family; every error
// trace is also routed to the ErrorSink regardless of whether tracing is
// enabled.
func (t Tag) IsError() bool {
	return t >= ErrorMaxEvent && t <= ErrorMissed
}

// Trace is a flat record carrying whichever fields are relevant to Tag; this
// plays the role of the original's tagged union, traded for a few unused
// fields in exchange for a type any Go sink can pattern-match on with a
// plain switch over Tag.
type Trace struct {
	Tag Tag

	// Definitions
	Handle   string
	Instance uint8
	Event    EventMask
	Bytes    int

	// Marks / timing
	Time int64
	Heap int

	// Debug
	Message string
}

// TraceSink receives every trace record when tracing is enabled (and every
// error trace unconditionally). Implementations are expected to be fast and
// non-blocking since OnTrace may be invoked from a context standing in for
// an ISR-disabled critical section.
type TraceSink interface {
	OnTrace(t *Trace)
}

// ErrorSink receives every error trace regardless of the tracing flag and
// decides whether the executive should resume (true) or halt (false).
type ErrorSink interface {
	OnError(t *Trace) bool
}

// TraceSinkFunc adapts a plain function to TraceSink.
type TraceSinkFunc func(t *Trace)

func (f TraceSinkFunc) OnTrace(t *Trace) { f(t) }

// ErrorSinkFunc adapts a plain function to ErrorSink.
type ErrorSinkFunc func(t *Trace) bool

func (f ErrorSinkFunc) OnError(t *Trace) bool { return f(t) }

// AlwaysResumeErrorSink is the permissive default: log and keep going.
var AlwaysResumeErrorSink = ErrorSinkFunc(func(t *Trace) bool {
	eventLog.Warnf("error trace: %s", t.Tag)
	return true
})
