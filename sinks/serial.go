package sinks

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/ejrbuss/avr-rtos/internal/rtosexec"
)

// Serial streams trace records to an io.Writer (a real UART in the original,
// any byte sink here) in a small binary protocol: one header byte giving
// sizeof(EventMask) so a host-side decoder knows how wide the event fields
// are, followed by one record per trace: a tag byte, then the fields for
// that tag (multi-byte fields little-endian):
//
//	DefTask                       uint8 instance, NUL-terminated handle
//	DefEvent                      uint64 event mask, NUL-terminated handle
//	DefAlloc                      NUL-terminated handle, uint64 bytes
//	MarkStart, MarkStop           uint8 instance, int64 time_ms
//	MarkEvent                     uint64 event mask, int64 time_ms
//	MarkInit/Halt/Idle/Wake       int64 time_ms
//	DebugMessage                  NUL-terminated message
//	error tags                    uint8 instance, uint64 event mask
//
// mirroring the original's Trace.cpp switch-per-tag serialization.
type Serial struct {
	mu   sync.Mutex
	w    io.Writer
	once sync.Once
}

// NewSerial returns a Serial sink writing to w. The header byte is emitted
// lazily, on the first trace, so construction can't fail.
func NewSerial(w io.Writer) *Serial {
	return &Serial{w: w}
}

func (s *Serial) writeHeader() {
	var maskSize [1]byte
	maskSize[0] = 8 // sizeof(EventMask); always 8 regardless of MaxEvents (see event.go)
	s.w.Write(maskSize[:])
}

// OnTrace serializes t and writes it to the underlying writer. Write errors
// are not surfaced: a lost trace byte is not reason to halt the executive,
// matching the original's fire-and-forget UART writes.
func (s *Serial) OnTrace(t *rtosexec.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.once.Do(s.writeHeader)

	buf := make([]byte, 0, 24)
	buf = append(buf, byte(t.Tag))

	switch t.Tag {
	case rtosexec.DefTask:
		buf = append(buf, t.Instance)
		buf = appendCString(buf, t.Handle)
	case rtosexec.DefEvent:
		buf = binary.LittleEndian.AppendUint64(buf, t.Event)
		buf = appendCString(buf, t.Handle)
	case rtosexec.DefAlloc:
		buf = appendCString(buf, t.Handle)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Bytes))
	case rtosexec.MarkStart, rtosexec.MarkStop:
		buf = append(buf, t.Instance)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Time))
	case rtosexec.MarkEvent:
		buf = binary.LittleEndian.AppendUint64(buf, t.Event)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Time))
	case rtosexec.MarkInit, rtosexec.MarkHalt, rtosexec.MarkIdle, rtosexec.MarkWake:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Time))
	case rtosexec.DebugMessage:
		buf = appendCString(buf, t.Message)
	default:
		// Error tags: instance/event, whichever is relevant, best-effort.
		buf = append(buf, t.Instance)
		buf = binary.LittleEndian.AppendUint64(buf, t.Event)
	}

	s.w.Write(buf)
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}
