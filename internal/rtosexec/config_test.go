// Tests for config.go

package rtosexec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/huandu/go-clone"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig: unexpected validation error: %v", err)
	}
}

func TestConfigValidateRejectsBadMaxEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 12
	if err := cfg.Validate(); err == nil {
		t.Fatal("want error for max_events=12, got nil")
	}
}

func TestConfigCloneIsIndependent(t *testing.T) {
	orig := DefaultConfig()
	cloned := clone.Clone(orig).(*Config)

	cloned.MaxEvents = 8
	cloned.VirtualHeap = "1k"

	if cmp.Equal(orig, cloned) {
		t.Fatal("mutating the clone must not be visible via cmp.Equal against the original")
	}
	if orig.MaxEvents != MAX_EVENTS_DEFAULT {
		t.Fatalf("mutating the clone changed the original: max_events=%d", orig.MaxEvents)
	}
}

func TestLoadConfigFromBuffer(t *testing.T) {
	buf := []byte(`
rtos_config:
  virtual_heap: "1k"
  max_events: 16
  max_tasks: 10
  message_buffer: 128
  trace: false
  check_all: true
`)
	cfg, err := LoadConfig("", buf)
	if err != nil {
		t.Fatalf("LoadConfig: unexpected error: %v", err)
	}

	want := &Config{
		VirtualHeap:   "1k",
		MaxEvents:     16,
		MaxTasks:      10,
		MessageBuffer: 128,
		Trace:         false,
		CheckAll:      true,
		LoggerConfig:  DefaultLoggerConfig(),
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("LoadConfig mismatch (-want +got):\n%s", diff)
	}
}
