// The scheduler: three ordered task lists, dispatch policy, miss detection,
// per-task runtime accounting, and the main loop that ties the event
// registry, pool allocator and clock together.
//
// All of the scheduler's mutable state (registers, task pool, list heads)
// lives in one Executive value instead of package-level globals (see
// SPEC_FULL.md's note on this one deliberate departure from the teacher's
// literal package-level vars) — it is still meant to be installed as a
// process-wide singleton by the public facade, exactly as the teacher's
// runner.go assigns its package-level `scheduler` once from Run.
package rtosexec

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var schedulerLog = NewCompLogger("scheduler")

type ExecutiveState int

const (
	StateCreated ExecutiveState = iota
	StateRunning
	StateHalted
)

var (
	ErrMaxTask     = errors.New("maximum number of tasks exceeded")
	ErrNullTask    = errors.New("nil task")
	ErrInvalidTask = errors.New("invalid task configuration")
)

// GPIOWriter is the narrow hardware-abstraction contract the pin trace sink
// and DebugLED need; the real implementation (toggling an actual pin) is
// explicitly out of scope for the core (spec.md §1).
type GPIOWriter interface {
	WritePin(pin uint8, high bool)
}

// Executive owns every piece of scheduler state: the three task lists, the
// event registry, the pool allocator, the clock, and the trace/error sinks.
type Executive struct {
	cfg  *Config
	heap *StaticHeap

	taskPool *Pool[Task]
	events   *EventRegistry
	clock    *Clock

	sink    TraceSink
	errSink ErrorSink
	gpio    GPIOWriter

	checkAlloc, checkPool, checkEvent, checkTask bool

	mu            sync.Mutex
	state         ExecutiveState
	takenEvents   EventMask
	instanceCount uint8

	periodicHead         *Task
	delayedHead          *Task
	eventHead, eventTail *Task
	currentTask          *Task
}

// NewExecutive validates cfg, reserves the static heap and task pool, and
// returns a ready-to-Init executive.
func NewExecutive(cfg *Config, sink TraceSink, errSink ErrorSink, gpio GPIOWriter) (*Executive, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if errSink == nil {
		errSink = AlwaysResumeErrorSink
	}

	heapBytes, err := cfg.VirtualHeapBytes()
	if err != nil {
		return nil, err
	}
	heap := NewStaticHeap(heapBytes)

	taskPool, err := NewPool[Task](heap, "task_pool", cfg.MaxTasks)
	if err != nil {
		return nil, err
	}

	checkAlloc, checkPool, checkEvent, checkTask := cfg.checksEnabled()

	e := &Executive{
		cfg:        cfg,
		heap:       heap,
		taskPool:   taskPool,
		clock:      NewClock(),
		sink:       sink,
		errSink:    errSink,
		gpio:       gpio,
		checkAlloc: checkAlloc,
		checkPool:  checkPool,
		checkEvent: checkEvent,
		checkTask:  checkTask,
		state:      StateCreated,
	}
	e.events = newEventRegistry(cfg.MaxEvents, cfg.Trace, sink, errSink, e.Halt)
	return e, nil
}

// Init starts the clock and emits the init trace.
func (e *Executive) Init() {
	e.clock.Start()
	e.reportTrace(Trace{Tag: MarkInit, Time: e.clock.Now(), Heap: e.heap.Size()})
	schedulerLog.Infof("initialized: heap=%dB max_events=%d max_tasks=%d", e.heap.Size(), e.cfg.MaxEvents, e.cfg.MaxTasks)
}

// Halt emits the halt trace, stops the clock, and causes a running Dispatch
// call to return.
func (e *Executive) Halt() {
	e.mu.Lock()
	alreadyHalted := e.state == StateHalted
	e.state = StateHalted
	e.mu.Unlock()
	if alreadyHalted {
		return
	}

	e.reportTrace(Trace{Tag: MarkHalt, Time: e.clock.Now()})
	schedulerLog.Info("halted")
	e.clock.Stop()
}

// Now returns the current millisecond clock reading.
func (e *Executive) Now() int64 { return e.clock.Now() }

// EventInit defines a new event and returns its bitmask.
func (e *Executive) EventInit(handle string) (EventMask, error) {
	return e.events.Init(handle)
}

// EventDispatch atomically ORs mask into the pending-event register and
// wakes any idling Dispatch loop.
func (e *Executive) EventDispatch(mask EventMask) error {
	err := e.events.Dispatch(e.clock.Now(), mask)
	e.clock.wake()
	return err
}

// DebugPrint formats a message (truncated to MessageBuffer) and emits a
// debug trace.
func (e *Executive) DebugPrint(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > e.cfg.MessageBuffer {
		msg = msg[:e.cfg.MessageBuffer]
	}
	e.reportTrace(Trace{Tag: DebugMessage, Message: msg})
}

// DebugLED toggles the board's built-in LED through the GPIO HAL, if one was
// provided; it is a no-op otherwise. Ground in the original's debug_led.
func (e *Executive) DebugLED(on bool) {
	if e.gpio != nil {
		e.gpio.WritePin(0, on)
	}
}

// TraceConfigurePin marks task for the pin-trace sink: its Instance becomes
// pin with the high bit set, so Start/Stop marks toggle that GPIO pin.
func (e *Executive) TraceConfigurePin(t *Task, pin uint8) {
	t.Instance = pin | 0x80
}

const maxInstance = 1<<7 - 1 // high bit reserved for the pin-trace flag

// TaskInit allocates a task from the pool and returns it configured with
// defaults (nil state, no events, zero period/delay). The caller configures
// the remaining fields before calling TaskDispatch.
func (e *Executive) TaskInit(handle string, fn Fn) (*Task, error) {
	if e.checkTask && fn == nil {
		e.reportError(Trace{Tag: ErrorInvalidTask})
		return nil, fmt.Errorf("task %q: nil fn: %w", handle, ErrInvalidTask)
	}

	chunk, err := e.taskPool.Alloc()
	if err != nil {
		e.reportError(Trace{Tag: ErrorMaxTask})
		return nil, fmt.Errorf("task %q: %w", handle, ErrMaxTask)
	}

	e.mu.Lock()
	instance := e.instanceCount
	e.instanceCount++
	overflow := e.checkTask && instance > maxInstance
	e.mu.Unlock()

	t := &chunk.Value
	t.chunk = chunk
	t.Handle = handle
	t.Fn = fn
	t.Instance = instance
	t.first = true

	e.reportTrace(Trace{Tag: DefTask, Handle: handle, Instance: instance})

	if overflow {
		e.reportError(Trace{Tag: ErrorMaxTask, Instance: instance})
		return t, fmt.Errorf("task %q: %w", handle, ErrMaxTask)
	}
	return t, nil
}

// TaskDispatch validates a freshly configured task and routes it to the
// periodic, delayed, or event list.
func (e *Executive) TaskDispatch(t *Task) error {
	if t == nil {
		e.reportError(Trace{Tag: ErrorNullTask})
		return ErrNullTask
	}

	if e.checkTask {
		if t.Events != 0 && (t.PeriodMs != 0 || t.DelayMs != 0) {
			e.reportError(Trace{Tag: ErrorInvalidTask, Instance: t.Instance})
			return fmt.Errorf("task %q: %w", t.Handle, ErrInvalidTask)
		}
		e.mu.Lock()
		dup := t.Events & e.takenEvents
		e.takenEvents |= t.Events
		e.mu.Unlock()
		if dup != 0 {
			// Report then continue, per the original's "a resuming on_error
			// lets dispatch proceed" semantics (spec.md §7): a resumed
			// handler still enqueues the task, the same as the original
			// dispatch() does after a resumed check.
			if !e.reportError(Trace{Tag: ErrorDuplicateEvent, Event: dup}) {
				return fmt.Errorf("task %q: %w", t.Handle, ErrDuplicateEvent)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueLocked(t)
	return nil
}

var ErrDuplicateEvent = errors.New("duplicate event subscription")

// enqueueLocked routes t to the appropriate list. Caller holds e.mu.
func (e *Executive) enqueueLocked(t *Task) {
	now := e.clock.Now()
	switch {
	case t.PeriodMs > 0:
		e.periodicHead = insertOrdered(e.periodicHead, t, now)
	case t.DelayMs > 0 || t.Events == 0:
		e.delayedHead = insertOrdered(e.delayedHead, t, now)
	default:
		e.eventTail = insertTail(e.eventTail, t)
		if e.eventHead == nil {
			e.eventHead = e.eventTail
		}
	}
}

// Dispatch runs the main scheduling loop. It returns once Halt has been
// called; the spec's "never returns normally" contract is honored by cmd/*
// entry points, which call Dispatch and do not expect it to return except
// at shutdown.
func (e *Executive) Dispatch() {
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	for {
		e.mu.Lock()
		halted := e.state == StateHalted
		e.mu.Unlock()
		if halted {
			return
		}

		if e.step() {
			continue
		}
	}
}

// step runs one iteration of the priority state machine described in
// spec.md §4.E. It returns true if a task was run (so the caller should
// re-evaluate immediately) and false if the loop idled.
func (e *Executive) step() bool {
	loopStart := e.Now()
	const noHorizon = int64(1<<62) // stand-in for the original's 0xFFFF sentinel, scaled up since our clock doesn't wrap at 16 bits
	idleHorizon := noHorizon

	e.mu.Lock()
	task := e.periodicHead
	e.mu.Unlock()
	if task != nil {
		remaining := time_remaining(task, loopStart, loopStart)
		if remaining <= 0 {
			e.mu.Lock()
			e.periodicHead = nextOf(task)
			e.mu.Unlock()
			e.run(task)
			return true
		}
		if remaining < idleHorizon {
			idleHorizon = remaining
		}
	}

	e.mu.Lock()
	task = e.delayedHead
	e.mu.Unlock()
	if task != nil {
		remaining := time_remaining(task, loopStart, loopStart)
		if remaining <= 0 {
			if fits(task, idleHorizon) {
				e.mu.Lock()
				e.delayedHead = nextOf(task)
				e.mu.Unlock()
				e.run(task)
				return true
			}
			// Doesn't fit before the next periodic deadline: leave it at the
			// head and try again next loop (spec.md §4.E step 2), falling
			// through to the event check and idle instead of spinning here.
		} else if remaining < idleHorizon {
			idleHorizon = remaining
		}
	}

	if e.events.pendingSnapshot() != 0 {
		e.mu.Lock()
		task = e.eventHead
		e.mu.Unlock()
		pending := e.events.pendingSnapshot()
		for task != nil {
			if task.Events&pending != 0 {
				if fits(task, idleHorizon) {
					e.run(task)
					return true
				}
				break
			}
			task = nextOf(task)
		}
	}

	e.idle(loopStart, idleHorizon)
	return false
}

// idle computes the remaining horizon from loopStart and sleeps until it
// elapses, an event bit is set or the executive halts, emitting Idle/Wake
// marks around the wait.
func (e *Executive) idle(from int64, max int64) {
	horizon := max - (e.Now() - from)
	if horizon <= 0 {
		return
	}

	e.reportTrace(Trace{Tag: MarkIdle, Time: e.Now()})
	const maxIdleWaitMs = int64(1000)
	for horizon > 0 && e.events.pendingSnapshot() == 0 {
		e.mu.Lock()
		halted := e.state == StateHalted
		e.mu.Unlock()
		if halted {
			break
		}
		// Every clock tick wakes idleOnce, so wait again until the horizon is
		// used up; each wait is capped so noHorizon cannot overflow a Duration.
		e.clock.idleOnce(time.Duration(min(horizon, maxIdleWaitMs)) * time.Millisecond)
		horizon = max - (e.Now() - from)
	}
	e.reportTrace(Trace{Tag: MarkWake, Time: e.Now()})
}

// run executes one task to completion, handling trigger snapshotting, miss
// detection, runtime accounting, event-list cleanup and re-enqueueing.
func (e *Executive) run(t *Task) {
	save := t.Events
	triggers := e.events.consume(save)
	t.Triggers = triggers

	scheduledAt := time_next(t, e.Now())

	if save == 0 && e.Now() > scheduledAt {
		e.reportError(Trace{Tag: ErrorMissed, Instance: t.Instance})
	}

	e.mu.Lock()
	e.currentTask = t
	e.mu.Unlock()

	t.DelayMs = 0
	t.last = scheduledAt

	e.reportTrace(Trace{Tag: MarkStart, Time: e.Now(), Instance: t.Instance})
	var result bool
	if t.Fn != nil {
		result = t.Fn(t)
	}
	e.reportTrace(Trace{Tag: MarkStop, Time: e.Now(), Instance: t.Instance})

	if e.checkTask && t.Events != 0 && (t.PeriodMs != 0 || t.DelayMs != 0) {
		e.reportError(Trace{Tag: ErrorInvalidTask, Instance: t.Instance})
	}

	if runtime := e.Now() - scheduledAt; runtime > t.maximum {
		t.maximum = runtime
	}
	t.first = false

	if save != 0 && (t.Events == 0 || !result) {
		e.unlinkFromEventList(t)
		if e.checkTask {
			e.mu.Lock()
			e.takenEvents &^= save
			e.mu.Unlock()
		}
	}

	if e.checkTask {
		e.mu.Lock()
		dup := t.Events &^ save & e.takenEvents
		e.takenEvents |= t.Events
		e.mu.Unlock()
		if dup != 0 {
			e.reportError(Trace{Tag: ErrorDuplicateEvent, Event: dup})
			// Per spec.md §9's Open Question resolution: reject at the run
			// epilogue and leave the task on its original subscription
			// rather than accepting the new (duplicate) one.
			t.Events = save
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentTask = nil

	switch {
	case !result:
		e.taskPool.Dealloc(t.chunk)
	case t.Events != 0 && save != 0:
		// Still subscribed to events and already linked into the event
		// list; nothing to do.
	case t.PeriodMs > 0:
		e.periodicHead = insertOrdered(e.periodicHead, t, e.clock.Now())
	case t.DelayMs > 0:
		e.delayedHead = insertOrdered(e.delayedHead, t, e.clock.Now())
	case t.Events != 0:
		e.eventTail = insertTail(e.eventTail, t)
		if e.eventHead == nil {
			e.eventHead = e.eventTail
		}
	default:
		e.taskPool.Dealloc(t.chunk)
	}
}

// unlinkFromEventList removes t from the event list via a find-predecessor-
// then-splice walk with explicit termination, avoiding the original's
// documented benign bug of continuing iteration from an already-unlinked
// node (spec.md §9).
func (e *Executive) unlinkFromEventList(t *Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.eventHead == t {
		e.eventHead = nextOf(t)
		if e.eventHead == nil {
			e.eventTail = nil
		}
		return
	}

	prev := e.eventHead
	for prev != nil {
		succ := nextOf(prev)
		if succ == t {
			cons(prev, nextOf(t))
			if e.eventTail == t {
				e.eventTail = prev
			}
			return
		}
		prev = succ
	}
}

func (e *Executive) reportTrace(t Trace) {
	if e.sink != nil && (e.cfg.Trace || t.Tag.IsError()) {
		e.sink.OnTrace(&t)
	}
}

func (e *Executive) reportError(t Trace) bool {
	e.reportTrace(t)
	if e.errSink != nil {
		if !e.errSink.OnError(&t) {
			e.Halt()
			return false
		}
	}
	return true
}
