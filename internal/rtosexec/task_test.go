// Tests for task.go

package rtosexec

import "testing"

func newTestTask(t *testing.T, p *Pool[Task], handle string) *Task {
	t.Helper()
	c, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc %s: unexpected error: %v", handle, err)
	}
	task := &c.Value
	task.chunk = c
	task.Handle = handle
	task.first = true
	return task
}

func TestTimeNextFreshDelayed(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	task := newTestTask(t, p, "a")
	task.DelayMs = 10

	if got := time_next(task, 0); got != 10 {
		t.Fatalf("time_next fresh delayed: want 10, got %d", got)
	}
}

func TestTimeNextPeriodic(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	task := newTestTask(t, p, "a")
	task.first = false
	task.last = 100
	task.PeriodMs = 50

	if got := time_next(task, 1000); got != 150 {
		t.Fatalf("time_next periodic: want 150, got %d", got)
	}
}

func TestTimeNextEvent(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	task := newTestTask(t, p, "a")
	task.Events = 1

	if got := time_next(task, 42); got != 42 {
		t.Fatalf("time_next event: want now (42), got %d", got)
	}
}

func TestFits(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	task := newTestTask(t, p, "a")

	if !fits(task, 5) {
		t.Fatal("fresh task (maximum==0) must always fit")
	}
	task.maximum = 10
	if fits(task, 5) {
		t.Fatal("task with maximum 10 must not fit a horizon of 5")
	}
	if !fits(task, 11) {
		t.Fatal("task with maximum 10 must fit a horizon of 11")
	}
}

func TestConsNextOfTask(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	a := newTestTask(t, p, "a")
	b := newTestTask(t, p, "b")

	cons(a, b)
	if nextOf(a) != b {
		t.Fatal("cons/next_of: want b after a")
	}
	if nextOf(b) != nil {
		t.Fatal("cons/next_of: want nil after b")
	}
	if nextOf(nil) != nil {
		t.Fatal("next_of(nil) must be nil")
	}
}

func TestInsertOrderedPreservesOrderAndFIFO(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 8)

	mk := func(handle string, delay int16) *Task {
		tk := newTestTask(t, p, handle)
		tk.DelayMs = delay
		return tk
	}

	var head *Task
	b := mk("b", 20)
	a := mk("a", 10)
	c := mk("c", 10) // ties with a; must land after it (FIFO)
	d := mk("d", 30)

	head = insertOrdered(head, b, 0)
	head = insertOrdered(head, a, 0)
	head = insertOrdered(head, c, 0)
	head = insertOrdered(head, d, 0)

	var order []string
	for n := head; n != nil; n = nextOf(n) {
		order = append(order, n.Handle)
	}
	want := []string{"a", "c", "b", "d"}
	if len(order) != len(want) {
		t.Fatalf("insert_ordered: want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("insert_ordered: want %v, got %v", want, order)
		}
	}
}

func TestInsertTail(t *testing.T) {
	heap := NewStaticHeap(1 << 20)
	p, _ := NewPool[Task](heap, "tasks", 4)
	a := newTestTask(t, p, "a")
	b := newTestTask(t, p, "b")

	var head, tail *Task
	tail = insertTail(tail, a)
	head = a
	tail = insertTail(tail, b)

	if nextOf(head) != b {
		t.Fatal("insert_tail: want b after a")
	}
	if tail != b {
		t.Fatal("insert_tail: want tail == b")
	}
}
