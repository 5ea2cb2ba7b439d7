// Event registry: bit-packed event identifiers and the pending-event
// register.
//
// Event identifiers are represented uniformly as uint64 regardless of the
// configured width (8/16/32/64): MaxEvents governs how many of the low bits
// may be defined and validated against, which gives the same "at most W
// events, 1<<i per definition" behavior as a narrower word would, without
// requiring a distinct Go type per width. This is a deliberate
// simplification of the spec's compile-time word-width choice (see
// DESIGN.md, Open Question: event word width).
package rtosexec

import (
	"errors"
	"fmt"
	"sync"
)

// EventMask is the bitmask type shared by the event register, the triggers
// register and a task's subscription mask.
type EventMask = uint64

var (
	ErrMaxEvent       = errors.New("maximum number of events exceeded")
	ErrUndefinedEvent = errors.New("undefined event dispatched")
)

var eventLog = NewCompLogger("event")

// EventRegistry assigns bit masks to named events and maintains the
// pending-event register. All mutation goes through mu, standing in for the
// "atomic section / interrupts disabled" discipline the original hardware
// target uses — the nearest host-side equivalent of a critical section.
type EventRegistry struct {
	mu            sync.Mutex
	maxEvents     int
	trace         bool
	definedCount  int
	pending       EventMask
	definedEvents EventMask
	sink          TraceSink
	errSink       ErrorSink
	// onUnresumedError is invoked when errSink.OnError returns false,
	// mirroring Executive.reportError's halt-on-false (scheduler.go); the
	// registry has no Halt of its own, so the Executive wires its Halt
	// method in here at construction.
	onUnresumedError func()
}

func newEventRegistry(maxEvents int, trace bool, sink TraceSink, errSink ErrorSink, onUnresumedError func()) *EventRegistry {
	return &EventRegistry{
		maxEvents:        maxEvents,
		trace:            trace,
		sink:             sink,
		errSink:          errSink,
		onUnresumedError: onUnresumedError,
	}
}

// Init returns 1<<n where n is the count of events defined so far, then
// increments the count. Fails with ErrMaxEvent once maxEvents is reached.
func (r *EventRegistry) Init(handle string) (EventMask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.definedCount >= r.maxEvents {
		err := fmt.Errorf("%s: %w", handle, ErrMaxEvent)
		r.reportError(Trace{Tag: ErrorMaxEvent, Handle: handle})
		return 0, err
	}

	event := EventMask(1) << uint(r.definedCount)
	r.definedCount++
	r.definedEvents |= event

	eventLog.Infof("event %q = 0x%x", handle, event)
	r.reportTrace(Trace{Tag: DefEvent, Handle: handle, Event: event})

	return event, nil
}

// Dispatch atomically ORs mask into the pending-event register. Fails with
// ErrUndefinedEvent if any bit of mask falls outside the defined set.
func (r *EventRegistry) Dispatch(now int64, mask EventMask) error {
	r.mu.Lock()
	if mask&^r.definedEvents != 0 {
		r.mu.Unlock()
		err := fmt.Errorf("dispatch 0x%x: %w", mask, ErrUndefinedEvent)
		r.reportError(Trace{Tag: ErrorUndefinedEvent, Event: mask})
		return err
	}
	r.pending |= mask
	r.mu.Unlock()

	r.reportTrace(Trace{Tag: MarkEvent, Time: now, Event: mask})
	return nil
}

// pendingSnapshot returns the current pending register without clearing it.
func (r *EventRegistry) pendingSnapshot() EventMask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// consume atomically copies the subset of pending bits in save into the
// returned triggers value and clears them from the pending register. This
// is the "triggers := (events & save); events &= ~save" step run under the
// same critical section.
func (r *EventRegistry) consume(save EventMask) EventMask {
	r.mu.Lock()
	defer r.mu.Unlock()
	triggers := r.pending & save
	r.pending &^= save
	return triggers
}

// reportTrace delivers definition/mark traces only when tracing is
// enabled; error traces are always delivered (spec.md §6).
func (r *EventRegistry) reportTrace(t Trace) {
	if r.sink != nil && (r.trace || t.Tag.IsError()) {
		r.sink.OnTrace(&t)
	}
}

// reportError delivers an error trace and, if the error sink declines to
// resume, halts the executive via onUnresumedError.
func (r *EventRegistry) reportError(t Trace) {
	r.reportTrace(t)
	if r.errSink != nil && !r.errSink.OnError(&t) {
		if r.onUnresumedError != nil {
			r.onUnresumedError()
		}
	}
}
