// Task record and pool-backed list helpers.
//
// Tasks are allocated from a Pool[Task] (pool.go); the chunk that backs a
// task doubles as that task's node in whichever of the three scheduler
// lists currently holds it (scheduler.go). cons/nextOf below are the
// task-level counterparts of the pool's chunk-level Cons/NextOf: they hide
// the chunk back-reference so the scheduler can work purely in terms of
// *Task.
package rtosexec

// Fn is a task function: it is passed the task it belongs to and returns
// whether the scheduler should keep it scheduled (true) or free it back to
// the pool (false).
type Fn func(self *Task) bool

// Task is the unit of cooperative execution.
type Task struct {
	// Debug handle, not used for identity.
	Handle string
	// instance doubles as a pin-trace destination when its high bit (0x80)
	// is set (see TraceConfigurePin).
	Instance uint8

	Fn    Fn
	State any

	// Events this task subscribes to; 0 for non-event tasks.
	Events EventMask
	// Triggers is the per-run snapshot of fired-event bits visible to Fn
	// during its run; it is only meaningful while the task is executing.
	Triggers EventMask

	PeriodMs int16
	DelayMs  int16

	first   bool
	last    int64
	maximum int64

	chunk *Chunk[Task]
}

// time_next computes the next scheduling time for t given the current time
// (needed only for event tasks, which are always "due as of their event").
func time_next(t *Task, now int64) int64 {
	if t.Events != 0 {
		return now
	}
	if t.first {
		return int64(t.DelayMs)
	}
	return t.last + int64(t.PeriodMs) + int64(t.DelayMs)
}

// time_remaining is time_next(t) - at.
func time_remaining(t *Task, now int64, at int64) int64 {
	return time_next(t, now) - at
}

// fits reports whether t's worst observed runtime would not overrun the
// given horizon. A fresh task (maximum == 0) always fits; this is a
// deliberate leniency — miss detection catches violations instead.
func fits(t *Task, horizon int64) bool {
	return t.maximum < horizon
}

// cons splices b (possibly nil) in as a's successor in whichever intrusive
// list a's chunk currently belongs to, and returns a.
func cons(a, b *Task) *Task {
	var bc *Chunk[Task]
	if b != nil {
		bc = b.chunk
	}
	Cons(a.chunk, bc) // nil chunk a already validated by caller-side invariants
	return a
}

// nextOf returns the task following t in its current list, or nil.
func nextOf(t *Task) *Task {
	if t == nil {
		return nil
	}
	n := NextOf(t.chunk)
	if n == nil {
		return nil
	}
	return &n.Value
}

// insertOrdered inserts task into the list headed by head at the first
// position where the successor's time_next is strictly greater than
// task's, preserving FIFO order among equal deadlines. Returns the new head.
func insertOrdered(head *Task, task *Task, now int64) *Task {
	taskNext := time_next(task, now)

	if head == nil || time_next(head, now) > taskNext {
		cons(task, head)
		return task
	}

	current := head
	for {
		succ := nextOf(current)
		if succ == nil || time_next(succ, now) > taskNext {
			cons(current, task)
			cons(task, succ)
			break
		}
		current = succ
	}
	return head
}

// insertTail appends task after the node at tail (which may be nil for an
// empty list) and returns the new tail. The caller is responsible for
// updating the list's head pointer on first insertion.
func insertTail(tail *Task, task *Task) *Task {
	cons(task, nil)
	if tail != nil {
		cons(tail, task)
	}
	return task
}
