// blink is the hosted equivalent of the original's scenario 1 (spec.md
// §8): a single periodic task toggling an LED forever, grounded directly
// on original_source/src/blink.cpp.
package main

import (
	"os"

	rtos "github.com/ejrbuss/avr-rtos"
	"github.com/ejrbuss/avr-rtos/sinks"
)

// stdoutLED stands in for pinMode/digitalWrite on LED_BUILTIN: there is no
// real GPIO on the host, so it just prints the pin state.
type stdoutLED struct{}

func (stdoutLED) WritePin(pin uint8, high bool) {
	state := "LOW"
	if high {
		state = "HIGH"
	}
	rtos.GetRootLogger().Infof("pin %d -> %s", pin, state)
}

func main() {
	cfg := rtos.LoadConfigFlag()

	gpio := stdoutLED{}
	sink := sinks.NewSerial(os.Stdout)

	// error(trace) { return true; } in the original: always resume, which is
	// exactly what a nil ErrorSink resolves to (see NewExecutive).
	if err := rtos.Install(cfg, sink, nil, gpio); err != nil {
		rtos.GetRootLogger().Fatalf("install: %v", err)
	}

	led, err := rtos.TaskInit("task_led", taskLedFn)
	if err != nil {
		rtos.GetRootLogger().Fatalf("task_led: %v", err)
	}
	led.PeriodMs = 500

	if err := rtos.TaskDispatch(led); err != nil {
		rtos.GetRootLogger().Fatalf("task_led dispatch: %v", err)
	}

	rtos.Dispatch()
}

var ledOn bool

func taskLedFn(self *rtos.Task) bool {
	ledOn = !ledOn
	rtos.DebugLED(ledOn)
	return true
}
