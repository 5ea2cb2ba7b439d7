// Package sinks collects built-in, optional TraceSink implementations. They
// are deliberately kept out of internal/rtosexec: the core only defines the
// TraceSink/ErrorSink contracts (spec.md §1, §6), these are collaborators
// wired in by a cmd/* entry point that has an actual GPIO or serial
// transport to hand them.
package sinks

import "github.com/ejrbuss/avr-rtos/internal/rtosexec"

// PinWriter is the narrow GPIO contract Pin needs; satisfied by
// rtosexec.GPIOWriter-shaped hardware backends.
type PinWriter interface {
	WritePin(pin uint8, high bool)
}

// Pin toggles a GPIO pin high for the duration of a task's run, for tasks
// configured via Executive.TraceConfigurePin. It ignores every trace whose
// Instance doesn't carry the pin-trace flag (the high bit, 0x80).
type Pin struct {
	writer PinWriter
}

// NewPin returns a Pin sink that drives pins through writer.
func NewPin(writer PinWriter) *Pin {
	return &Pin{writer: writer}
}

const pinTraceFlag = 0x80

// OnTrace drives the pin high on MarkStart and low on MarkStop for any task
// whose Instance has the pin-trace flag set; every other trace is ignored.
func (p *Pin) OnTrace(t *rtosexec.Trace) {
	if t.Instance&pinTraceFlag == 0 {
		return
	}
	pin := t.Instance &^ pinTraceFlag

	switch t.Tag {
	case rtosexec.MarkStart:
		p.writer.WritePin(pin, true)
	case rtosexec.MarkStop:
		p.writer.WritePin(pin, false)
	}
}
