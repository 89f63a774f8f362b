// Package gencntr assembles the data-process scheduler (spec §4.5), the
// media-format/threshold event handler (§4.6), and the placeholder
// module's deferred-binding logic (§4.7) — the parts of the container
// that wire internal/extio, internal/module, internal/posal, internal/
// amdb and internal/gmgmt together into the worker's actual wake-up
// loop.
package gencntr

import (
	"errors"
	"sync"

	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/posal"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// Trigger classifies why the worker woke up (spec §4.5 step 1).
type Trigger int

const (
	InvalidTrigger Trigger = iota
	DataTrigger
	SignalTrigger
)

// Build selects the watchdog's overrun behaviour: SimBuild panics,
// DeviceBuild returns ErrWatchdogTripped from RunOnce/RunOnceWithMask.
// Neither build drains pending commands.
type Build int

const (
	DeviceBuild Build = iota
	SimBuild
)

const (
	maxOuterIterations = 100
	maxInnerIterations = 1000
)

// ErrWatchdogTripped is returned by RunOnce/RunOnceWithMask on a
// DeviceBuild when the outer or inner loop's iteration cap is exceeded (spec §4.5 step 8 / §5 "Watchdog").
var ErrWatchdogTripped = errors.New("gencntr: scheduler watchdog tripped")

// ExtOutput is the common surface the scheduler needs from both output
// port flavours (internal/extio's Output and ClientOutput both satisfy
// it).
type ExtOutput interface {
	Ready() bool
	// Flush delivers whatever has accumulated and reports whether the
	// delivered metadata carried a flushing EOS (the port resets itself
	// when it did; the scheduler uses the report only to queue a
	// data-flow-state vote).
	Flush() bool
	DropForOverrun()
}

// ExtInput is the common surface the scheduler needs from an external
// input port.
type ExtInput interface {
	OnTrigger() (bool, error)
	Underrun(thresholdBytes int)
}

type inputSlot struct {
	bit   uint32
	input ExtInput
}

type outputSlot struct {
	bit    uint32
	output ExtOutput
	// attach pops a freshly available output buffer and attaches it
	// (SetupBufs/SetupBufsClient); it returns spferr.NotReady if none is
	// currently available (the overrun path).
	attach func() error
}

// ProcessInfo is the per-container scheduler state named in spec §4.5
// ("State held in process_info").
type ProcessInfo struct {
	AnythingChanged       bool
	PortThreshEvent       bool
	NumDataTPMDone        int
	ProbingForTPMActivity bool

	// DFSChangeVotePending is set when an output's Flush delivered a
	// flushing EOS: the port's data-flow state just went back to
	// DataFlowAtGap, so the kpps/bw vote aggregate computed against the
	// old flowing state is stale and must be recomputed from scratch on
	// the modules' next round of votes.
	DFSChangeVotePending bool
}

// Scheduler runs the outer/inner loop described in spec §4.5 over a
// fixed topology of external ports and a module.Walker.
type Scheduler struct {
	mu sync.Mutex

	build   Build
	channel *posal.Channel
	walker  *module.Walker
	ceiling PriorityCeiling

	inputs     []inputSlot
	outputs    []outputSlot
	commandBit uint32
	signalBit  uint32

	info  ProcessInfo
	votes VoteAggregator

	OverrunCount  int
	UnderrunCount int

	// UnderrunThresholdBytes is zero-fill target passed to ExtInput.Underrun
	// when a signal-triggered wake finds no data available.
	UnderrunThresholdBytes int
}

// NewScheduler returns a scheduler with no ports registered yet; wire
// inputs/outputs with RegisterInput/RegisterOutput before calling
// RunOnce or RunOnceWithMask.
func NewScheduler(build Build, channel *posal.Channel, walker *module.Walker, ceiling PriorityCeiling) *Scheduler {
	if ceiling == nil {
		ceiling = NopPriorityCeiling{}
	}
	return &Scheduler{build: build, channel: channel, walker: walker, ceiling: ceiling}
}

// RegisterInput wires an external input port's channel bit.
func (s *Scheduler) RegisterInput(bit uint32, in ExtInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, inputSlot{bit: bit, input: in})
}

// RegisterOutput wires an external output port's channel bit and its
// buffer-attach callback.
func (s *Scheduler) RegisterOutput(bit uint32, out ExtOutput, attach func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, outputSlot{bit: bit, output: out, attach: attach})
}

// SetCommandBit records which channel bit the command thread wakes the
// worker on (spec §4.5 step 6 / §5 "command thread").
func (s *Scheduler) SetCommandBit(bit uint32) { s.commandBit = bit }

// SetSignalBit records which channel bit a real-time timer/signal source
// wakes the worker on, independent of any data port.
func (s *Scheduler) SetSignalBit(bit uint32) { s.signalBit = bit }

// waitMask is the union of every bit the worker should block on.
func (s *Scheduler) waitMask() uint32 {
	mask := s.commandBit | s.signalBit
	for _, in := range s.inputs {
		mask |= in.bit
	}
	for _, out := range s.outputs {
		mask |= out.bit
	}
	return mask
}

// Classify implements spec §4.5 step 1: a fired mask with no bits at all
// is invalid; a mask touching any registered data port is a data
// trigger; otherwise, if the signal bit fired, it's a signal trigger.
func (s *Scheduler) Classify(fired uint32) Trigger {
	if fired == 0 {
		return InvalidTrigger
	}
	for _, in := range s.inputs {
		if fired&in.bit != 0 {
			return DataTrigger
		}
	}
	for _, out := range s.outputs {
		if fired&out.bit != 0 {
			return DataTrigger
		}
	}
	if s.signalBit != 0 && fired&s.signalBit != 0 {
		return SignalTrigger
	}
	return InvalidTrigger
}

// RunOnce blocks on the channel until fired is non-empty, then runs the
// full outer loop (spec §4.5 steps 1-8) to completion for that wake-up.
func (s *Scheduler) RunOnce() error {
	mask := s.waitMask()
	fired := s.channel.Wait(mask)
	return s.runOuter(fired)
}

// RunOnceWithMask runs the outer loop against an already-fired bitmask,
// bypassing the blocking channel wait — the deterministic entry point
// the tests use to drive specific scenarios.
func (s *Scheduler) RunOnceWithMask(fired uint32) error {
	return s.runOuter(fired)
}

func (s *Scheduler) runOuter(fired uint32) error {
	trigger := s.Classify(fired)
	if trigger == InvalidTrigger {
		return nil
	}

	outerIterations := 0
	for {
		outerIterations++
		if outerIterations > maxOuterIterations {
			return s.tripWatchdog("outer loop exceeded 100 iterations")
		}

		// Step 2: external input ports whose bit fired (every input on a
		// signal trigger, so one with nothing to dequeue is zero-filled).
		for _, in := range s.inputs {
			if fired&in.bit == 0 && trigger != SignalTrigger {
				continue
			}
			did, err := in.input.OnTrigger()
			if err != nil {
				dwlog.Printf(dwlog.Warn, -1, "gencntr: input port on-trigger error: %v", err)
			}
			if !did && trigger == SignalTrigger {
				in.input.Underrun(s.UnderrunThresholdBytes)
				s.UnderrunCount++
			}
		}

		// Step 3: external output ports whose bit fired get a fresh
		// buffer attached (peer path: it also becomes the last module's
		// output).
		for _, out := range s.outputs {
			if fired&out.bit == 0 {
				continue
			}
			if out.attach == nil {
				continue
			}
			if err := out.attach(); err != nil {
				if trigger == SignalTrigger || errors.Is(err, spferr.ErrNotReady) {
					out.output.DropForOverrun()
					s.OverrunCount++
				}
			}
		}

		// Step 4: inner loop.
		innerIterations, err := s.runInner(trigger)
		if err != nil {
			return err
		}
		_ = innerIterations

		// Step 5: deliver whatever output ended up ready. A flushing-EOS
		// delivery resets the port and queues a data-flow-state vote:
		// the aggregate kpps/bw the modules voted while flowing no
		// longer applies, so it's cleared for the next round.
		anyDelivered := false
		for _, out := range s.outputs {
			if out.output.Ready() {
				if out.output.Flush() {
					s.info.DFSChangeVotePending = true
					s.votes.Reset()
				}
				anyDelivered = true
			}
		}
		_ = anyDelivered

		// Step 7: stop once the trigger is satisfied — no mask bit
		// remains ready.
		remaining := s.channel.Poll(s.waitMask())
		if remaining == 0 {
			return nil
		}
		fired = remaining
	}
}

// runInner implements spec §4.5's inner loop.
func (s *Scheduler) runInner(trigger Trigger) (int, error) {
	iterations := 0
	for {
		iterations++
		if iterations > maxInnerIterations {
			return iterations, s.tripWatchdog("inner loop exceeded 1000 iterations")
		}

		s.info.AnythingChanged = false
		results := s.walker.ProcessAll()
		for i, res := range results {
			if res.Err != nil {
				dwlog.Printf(dwlog.Warn, -1, "gencntr: module %d returned error, continuing: %v", res.Module.InstanceID(), res.Err)
			}
			if s.dispatchEvents(res, i) {
				s.info.AnythingChanged = true
			}
		}

		allReady := true
		for _, out := range s.outputs {
			if !out.output.Ready() {
				allReady = false
				break
			}
		}

		commandPending := s.commandBit != 0 && s.channel.Poll(s.commandBit) != 0

		if !allReady && s.info.AnythingChanged && !commandPending {
			continue
		}
		return iterations, nil
	}
}

func (s *Scheduler) tripWatchdog(reason string) error {
	dwlog.Printf(dwlog.Warn, -1, "gencntr: watchdog tripped: %s", reason)
	if s.build == SimBuild {
		panic("gencntr: watchdog tripped: " + reason)
	}
	return ErrWatchdogTripped
}
