package gencntr

import (
	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/shmem"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// PriorityCeiling is the worker-thread priority hook spec §4.6's "thread
// priority bump-up" needs: raise to the configured ceiling while MF/
// threshold event handling is in progress, then restore. The real OS
// scheduling call is out of scope for this package (spec §1); a
// NopPriorityCeiling is the default (cmd/gencntrsim passes nil and gets
// it), and a platform adapter can supply a real one.
type PriorityCeiling interface {
	// Raise bumps the calling goroutine's OS thread to the ceiling
	// priority and returns a restore func to drop it back.
	Raise() (restore func())
}

// NopPriorityCeiling does nothing; used where no real-time scheduling
// policy is configured.
type NopPriorityCeiling struct{}

func (NopPriorityCeiling) Raise() (restore func()) { return func() {} }

// VoteAggregator collects the kpps/bw/hw-accel-processing-delay votes
// modules report on their capi event bitfield into one running
// aggregate. The scheduler folds each module's votes in from inside the
// inner loop as it dispatches events; the aggregate is not published
// outside the scheduler.
type VoteAggregator struct {
	KPPS             uint32
	BW               uint64
	HwAccProcDelayUs uint32
}

// Add folds one module's reported votes into the running aggregate: KPPS
// and BW are additive (every module's processing load stacks), hardware
// acceleration delay is a worst-case max (the pipeline's end-to-end
// latency is bounded by its slowest accelerated stage).
func (v *VoteAggregator) Add(ev module.Events) {
	v.KPPS += ev.KPPS
	v.BW += ev.BW
	if ev.HwAccProcDelayUs > v.HwAccProcDelayUs {
		v.HwAccProcDelayUs = ev.HwAccProcDelayUs
	}
}

// Reset clears the aggregate; the scheduler calls it when an output
// delivers a flushing EOS.
func (v *VoteAggregator) Reset() { *v = VoteAggregator{} }

// PropagateMediaFormat re-runs Process starting from the module *after*
// raiserIdx, so the module that raised the media-format change is never
// asked to overwrite the output it just produced (spec §4.5 bullet:
// "propagate... starting from the module after the one that raised it").
// The priority ceiling is held for the duration of propagation per
// spec §4.6.
func PropagateMediaFormat(w *module.Walker, raiserIdx int, ceiling PriorityCeiling) []module.Result {
	if ceiling == nil {
		ceiling = NopPriorityCeiling{}
	}
	restore := ceiling.Raise()
	defer restore()
	return w.ProcessFrom(raiserIdx + 1)
}

// RecomputeThresholds re-derives every port's max_buf_len from the
// operating frame duration, but only if moduleThresholdBytes evenly
// divides endpointThresholdBytes — the invariant that must hold before
// any port's buffer sizing may change. A configuration that violates it
// is rejected outright rather than applied partially. emitter, if
// non-nil, is told the newly-derived frame size once every port has
// been updated.
func RecomputeThresholds(ports []*port.TopologyPort, moduleThresholdBytes, endpointThresholdBytes, bytesPerMs, operatingFrameMs int, emitter *shmem.Emitter) error {
	if moduleThresholdBytes <= 0 || endpointThresholdBytes <= 0 || endpointThresholdBytes%moduleThresholdBytes != 0 {
		return spferr.New(spferr.BadParam, "module threshold must be an integer divisor of the endpoint threshold")
	}
	for _, p := range ports {
		p.RecomputeMaxBufLen(bytesPerMs, operatingFrameMs)
	}
	if emitter != nil {
		emitter.RaiseOperatingFrameSize(shmem.OperatingFrameSizePayload{FrameSizeBytes: bytesPerMs * operatingFrameMs})
	}
	return nil
}

// dispatchEvents inspects one module.Result's capi event bitfield and
// applies the corresponding inner-loop reaction, per spec §4.5's
// bulleted list. It returns whether anything_changed should be set.
func (s *Scheduler) dispatchEvents(res module.Result, idx int) bool {
	changed := false
	ev := res.Events

	if ev.MediaFormatChanged {
		dwlog.Printf(dwlog.Protocol, -1, "gencntr: media-format event raised by module %d, propagating forward", res.Module.InstanceID())
		PropagateMediaFormat(s.walker, idx, s.ceiling)
		changed = true
	}
	if ev.PortThreshChanged {
		s.info.PortThreshEvent = true
		changed = true
	}
	if ev.ProcessStateToggled {
		changed = true
	}
	if ev.KPPS != 0 || ev.BW != 0 || ev.HwAccProcDelayUs != 0 {
		s.votes.Add(ev)
	}
	return changed
}
