// Package rtos is the public face of the executive for its users: a thin
// re-export over internal/rtosexec plus the process wiring (flags, signal
// handling, config loading) that installs a single package-wide Executive,
// mirroring the teacher's vmi.go facade over vmi_internal.
package rtos

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ejrbuss/avr-rtos/internal/rtosexec"
)

const CONFIG_FLAG_NAME = rtosexec.CONFIG_FLAG_NAME

type (
	Task       = rtosexec.Task
	Fn         = rtosexec.Fn
	EventMask  = rtosexec.EventMask
	Trace      = rtosexec.Trace
	Tag        = rtosexec.Tag
	TraceSink  = rtosexec.TraceSink
	ErrorSink  = rtosexec.ErrorSink
	Config     = rtosexec.Config
	GPIOWriter = rtosexec.GPIOWriter
)

// Re-exported tags, for callers implementing their own TraceSink/ErrorSink
// without importing internal/rtosexec directly.
const (
	DefTask             = rtosexec.DefTask
	DefEvent            = rtosexec.DefEvent
	DefAlloc            = rtosexec.DefAlloc
	MarkInit            = rtosexec.MarkInit
	MarkHalt            = rtosexec.MarkHalt
	MarkStart           = rtosexec.MarkStart
	MarkStop            = rtosexec.MarkStop
	MarkEvent           = rtosexec.MarkEvent
	MarkIdle            = rtosexec.MarkIdle
	MarkWake            = rtosexec.MarkWake
	ErrorMaxEvent       = rtosexec.ErrorMaxEvent
	ErrorUndefinedEvent = rtosexec.ErrorUndefinedEvent
	ErrorMaxAlloc       = rtosexec.ErrorMaxAlloc
	ErrorMaxPool        = rtosexec.ErrorMaxPool
	ErrorNullPool       = rtosexec.ErrorNullPool
	ErrorMaxTask        = rtosexec.ErrorMaxTask
	ErrorNullTask       = rtosexec.ErrorNullTask
	ErrorInvalidTask    = rtosexec.ErrorInvalidTask
	ErrorDuplicateEvent = rtosexec.ErrorDuplicateEvent
	ErrorMissed         = rtosexec.ErrorMissed
	DebugMessage        = rtosexec.DebugMessage
)

var runnerLog = rtosexec.NewCompLogger("runner")

var exec *rtosexec.Executive

var configFileArg = flag.String(
	CONFIG_FLAG_NAME,
	"rtos-config.yaml",
	"Config file to load",
)

// LoadConfigFlag parses the command line (if not already parsed) and loads
// the config file named by -config, falling back to DefaultConfig if the
// file does not exist.
func LoadConfigFlag() *Config {
	if !flag.Parsed() {
		flag.Parse()
	}
	cfg, err := rtosexec.LoadConfig(*configFileArg, nil)
	if err != nil {
		if os.IsNotExist(err) {
			runnerLog.Infof("%s: no config file, using defaults", *configFileArg)
			return rtosexec.DefaultConfig()
		}
		runnerLog.Fatalf("loading config: %v", err)
	}
	return cfg
}

// Install constructs the package-wide Executive, applies its logger config,
// initializes it and arms a SIGINT/SIGTERM handler that calls Halt. Callers
// define and dispatch their tasks after Install returns and before calling
// Dispatch.
func Install(cfg *Config, sink TraceSink, errSink ErrorSink, gpio GPIOWriter) error {
	if cfg == nil {
		cfg = rtosexec.DefaultConfig()
	}
	if err := rtosexec.SetLogger(cfg.LoggerConfig); err != nil {
		return fmt.Errorf("logger config: %w", err)
	}

	e, err := rtosexec.NewExecutive(cfg, sink, errSink, gpio)
	if err != nil {
		return err
	}
	exec = e
	exec.Init()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		runnerLog.Warnf("%s received, halting", sig)
		exec.Halt()
	}()

	return nil
}

// TaskInit allocates and returns a new task named handle, running fn.
func TaskInit(handle string, fn Fn) (*Task, error) { return exec.TaskInit(handle, fn) }

// TaskDispatch validates and schedules t onto its periodic, delayed or
// event list, per however its PeriodMs/DelayMs/Events fields were set
// after TaskInit.
func TaskDispatch(t *Task) error { return exec.TaskDispatch(t) }

// EventInit defines a new event and returns its bit mask.
func EventInit(handle string) (EventMask, error) { return exec.EventInit(handle) }

// EventDispatch marks mask pending, waking the dispatch loop if it is
// idling.
func EventDispatch(mask EventMask) error { return exec.EventDispatch(mask) }

// Dispatch enters the main scheduling loop. It returns only after Halt is
// called (by a signal, by an unresumed error, or explicitly).
func Dispatch() { exec.Dispatch() }

// Halt stops the dispatch loop and the underlying clock.
func Halt() { exec.Halt() }

// Now returns the current millisecond clock reading.
func Now() int64 { return exec.Now() }

// DebugPrint emits a debug trace carrying a formatted message.
func DebugPrint(format string, args ...any) { exec.DebugPrint(format, args...) }

// DebugLED toggles the board's built-in LED via the GPIOWriter passed to
// Install, if any.
func DebugLED(on bool) { exec.DebugLED(on) }

// TraceConfigurePin arranges for a Pin trace sink to drive pin high/low
// around t's run.
func TraceConfigurePin(t *Task, pin uint8) { exec.TraceConfigurePin(t, pin) }

// GetRootLogger exposes the host-side diagnostic logger, for callers that
// want to log through the same sink (e.g. from a cmd/* main), mirroring
// the teacher's vmi.GetRootLogger.
func GetRootLogger() *logrus.Logger { return rtosexec.RootLogger }
