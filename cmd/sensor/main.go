// sensor is a richer demo than blink: a periodic task that samples a
// (simulated) reading and raises an event when it crosses a threshold, an
// event task that reacts to it, and a one-shot delayed task that runs a
// calibration pass once at startup. It also emits a host resource line via
// go-osstat/memory and go-osstat/cpu, exercising a dependency the core
// scheduler has no use for but a hosted demo does (see SPEC_FULL.md's
// domain-stack wiring table).
package main

import (
	"math/rand"
	"os"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/mackerelio/go-osstat/memory"

	rtos "github.com/ejrbuss/avr-rtos"
	"github.com/ejrbuss/avr-rtos/sinks"
)

var lastCPU *cpu.Stats

type noopLED struct{}

func (noopLED) WritePin(pin uint8, high bool) {}

var thresholdEvent rtos.EventMask

func main() {
	cfg := rtos.LoadConfigFlag()
	log := rtos.GetRootLogger()

	sink := sinks.NewSerial(os.Stdout)
	if err := rtos.Install(cfg, sink, nil, noopLED{}); err != nil {
		log.Fatalf("install: %v", err)
	}

	var err error
	thresholdEvent, err = rtos.EventInit("sensor_threshold")
	if err != nil {
		log.Fatalf("event_init: %v", err)
	}

	sampleTask, err := rtos.TaskInit("task_sample", taskSampleFn)
	if err != nil {
		log.Fatalf("task_sample: %v", err)
	}
	sampleTask.PeriodMs = 100
	if err := rtos.TaskDispatch(sampleTask); err != nil {
		log.Fatalf("task_sample dispatch: %v", err)
	}

	alertTask, err := rtos.TaskInit("task_alert", taskAlertFn)
	if err != nil {
		log.Fatalf("task_alert: %v", err)
	}
	alertTask.Events = thresholdEvent
	if err := rtos.TaskDispatch(alertTask); err != nil {
		log.Fatalf("task_alert dispatch: %v", err)
	}

	calibrateTask, err := rtos.TaskInit("task_calibrate", taskCalibrateFn)
	if err != nil {
		log.Fatalf("task_calibrate: %v", err)
	}
	calibrateTask.DelayMs = 1000
	if err := rtos.TaskDispatch(calibrateTask); err != nil {
		log.Fatalf("task_calibrate dispatch: %v", err)
	}

	hostStatsTask, err := rtos.TaskInit("task_host_stats", taskHostStatsFn)
	if err != nil {
		log.Fatalf("task_host_stats: %v", err)
	}
	hostStatsTask.PeriodMs = 5000
	if err := rtos.TaskDispatch(hostStatsTask); err != nil {
		log.Fatalf("task_host_stats dispatch: %v", err)
	}

	rtos.Dispatch()
}

const sampleThreshold = 90

// taskSampleFn simulates a noisy sensor reading and raises thresholdEvent
// whenever it crosses sampleThreshold.
func taskSampleFn(self *rtos.Task) bool {
	reading := rand.Intn(100)
	rtos.DebugPrint("sample=%d", reading)
	if reading >= sampleThreshold {
		if err := rtos.EventDispatch(thresholdEvent); err != nil {
			rtos.GetRootLogger().Warnf("event_dispatch: %v", err)
		}
	}
	return true
}

// taskAlertFn reacts to sensor_threshold and stays subscribed forever.
func taskAlertFn(self *rtos.Task) bool {
	rtos.DebugPrint("threshold exceeded at t=%d", rtos.Now())
	return true
}

// taskCalibrateFn runs once, 1s after startup, then frees itself.
func taskCalibrateFn(self *rtos.Task) bool {
	rtos.DebugPrint("calibration pass complete")
	return false
}

// taskHostStatsFn reports host CPU/memory stats every 5s; it has nothing to
// do with the scheduler's own bookkeeping, it is here purely as a demo
// consumer of go-osstat. A task function must run to completion quickly
// (spec.md §1), so the idle% is taken as a delta against the previous call
// instead of sleeping to sample twice in place.
func taskHostStatsFn(self *rtos.Task) bool {
	log := rtos.GetRootLogger()

	if mem, err := memory.Get(); err == nil {
		log.Infof("host memory: used=%dMB total=%dMB", mem.Used/1024/1024, mem.Total/1024/1024)
	} else {
		log.Warnf("memory.Get: %v", err)
	}

	stats, err := cpu.Get()
	if err != nil {
		log.Warnf("cpu.Get: %v", err)
		return true
	}
	if lastCPU != nil {
		total := float64(stats.Total - lastCPU.Total)
		if total > 0 {
			idle := float64(stats.Idle-lastCPU.Idle) / total * 100
			log.Infof("host cpu: idle=%.1f%%", idle)
		}
	}
	lastCPU = stats
	return true
}
