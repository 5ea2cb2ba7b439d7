// Tests for event.go

package rtosexec

import "testing"

func TestEventRegistryInit(t *testing.T) {
	r := newEventRegistry(2, true, nil, nil, nil)

	e0, err := r.Init("a")
	if err != nil {
		t.Fatalf("init a: unexpected error: %v", err)
	}
	if e0 != 1 {
		t.Fatalf("init a: want mask 1, got %d", e0)
	}

	e1, err := r.Init("b")
	if err != nil {
		t.Fatalf("init b: unexpected error: %v", err)
	}
	if e1 != 2 {
		t.Fatalf("init b: want mask 2, got %d", e1)
	}

	if _, err := r.Init("c"); err == nil {
		t.Fatal("init c: want ErrMaxEvent, got nil")
	}
}

func TestEventRegistryDispatchUndefined(t *testing.T) {
	r := newEventRegistry(4, true, nil, nil, nil)
	e0, _ := r.Init("a")

	if err := r.Dispatch(0, e0); err != nil {
		t.Fatalf("dispatch defined: unexpected error: %v", err)
	}
	if err := r.Dispatch(0, 1<<3); err == nil {
		t.Fatal("dispatch undefined: want ErrUndefinedEvent, got nil")
	}
}

func TestEventRegistryConsume(t *testing.T) {
	r := newEventRegistry(4, true, nil, nil, nil)
	e0, _ := r.Init("a")
	e1, _ := r.Init("b")

	if err := r.Dispatch(0, e0|e1); err != nil {
		t.Fatalf("dispatch: unexpected error: %v", err)
	}
	if got := r.pendingSnapshot(); got != e0|e1 {
		t.Fatalf("pending snapshot: want %d, got %d", e0|e1, got)
	}

	triggers := r.consume(e0)
	if triggers != e0 {
		t.Fatalf("consume: want triggers %d, got %d", e0, triggers)
	}
	if got := r.pendingSnapshot(); got != e1 {
		t.Fatalf("pending after consume: want %d, got %d", e1, got)
	}

	// consuming the same bits again yields nothing: the first consume
	// already cleared them from the pending register.
	if got := r.consume(e0); got != 0 {
		t.Fatalf("re-consume cleared bits: want 0, got %d", got)
	}
}

func TestEventRegistryTraceGating(t *testing.T) {
	var got []Tag
	sink := TraceSinkFunc(func(tr *Trace) { got = append(got, tr.Tag) })

	r := newEventRegistry(1, false, sink, nil, nil)
	if _, err := r.Init("a"); err != nil {
		t.Fatalf("init a: unexpected error: %v", err)
	}
	if err := r.Dispatch(0, 1); err != nil {
		t.Fatalf("dispatch: unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("trace=false: want no def/mark traces, got %v", got)
	}

	if _, err := r.Init("b"); err == nil {
		t.Fatal("init b: want ErrMaxEvent, got nil")
	}
	if len(got) != 1 || got[0] != ErrorMaxEvent {
		t.Fatalf("trace=false: error traces must still be delivered, got %v", got)
	}
}

func TestEventRegistryReportErrorHaltsOnUnresumed(t *testing.T) {
	halted := false
	errSink := ErrorSinkFunc(func(tr *Trace) bool { return false })

	r := newEventRegistry(1, true, nil, errSink, func() { halted = true })
	if _, err := r.Init("a"); err != nil {
		t.Fatalf("init a: unexpected error: %v", err)
	}
	if _, err := r.Init("b"); err == nil {
		t.Fatal("init b: want ErrMaxEvent, got nil")
	}
	if !halted {
		t.Fatal("errSink returned false: want onUnresumedError invoked, halted=false")
	}
}

func TestEventRegistryReportErrorResumes(t *testing.T) {
	halted := false
	errSink := ErrorSinkFunc(func(tr *Trace) bool { return true })

	r := newEventRegistry(1, true, nil, errSink, func() { halted = true })
	if _, err := r.Init("a"); err != nil {
		t.Fatalf("init a: unexpected error: %v", err)
	}
	if _, err := r.Init("b"); err == nil {
		t.Fatal("init b: want ErrMaxEvent, got nil")
	}
	if halted {
		t.Fatal("errSink returned true: want onUnresumedError not invoked")
	}
}
