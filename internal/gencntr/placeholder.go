package gencntr

import (
	"sync"

	"github.com/spf-audio/gencntr/internal/amdb"
	"github.com/spf-audio/gencntr/internal/evt"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/shmem"
	"github.com/spf-audio/gencntr/internal/spferr"
)

// ParameterizedModule is the superset of module.Module that accepts
// generic set-param payloads (spec §6's CMD_SET_CFG), which the
// placeholder needs in order to replay cached params onto the real
// module once bound.
type ParameterizedModule interface {
	module.Module
	SetParam(paramID uint32, payload []byte) error
}

// ThreadRelauncher is consulted when the real module's required stack
// size exceeds the worker thread's current stack: it schedules a
// relaunch, and the caller must call BindRealModuleID again once the
// worker resumes on the relaunched thread (spec §4.7 step 2).
type ThreadRelauncher interface {
	Relaunch(stackBytes int) (scheduled bool)
}

// NopRelauncher never requires a relaunch (the worker thread's stack is
// assumed sufficient for every module, the common case in tests and
// cmd/gencntrsim).
type NopRelauncher struct{}

func (NopRelauncher) Relaunch(int) bool { return false }

// RealModuleFactory constructs the real module once its descriptor has
// been resolved from the module database.
type RealModuleFactory func(desc amdb.Descriptor) (module.Module, error)

type cachedParam struct {
	paramID uint32
	payload []byte
}

type cachedEventReg struct {
	eventID evt.ID
	client  evt.Client
}

// Placeholder stands in for a module instance before its real module id
// is known (spec §4.7): every set-param and event registration is
// queued until REAL_MODULE_ID resolves, then replayed onto the freshly
// loaded real module in the order received.
type Placeholder struct {
	mu sync.Mutex

	id                uint32
	enabled           bool
	disabledAtSGStart bool

	bound      bool
	real       module.Module
	db         amdb.DB
	registry   *evt.Registry
	relauncher ThreadRelauncher
	factory    RealModuleFactory

	cachedParams []cachedParam
	cachedEvents []cachedEventReg

	currentMF *port.MediaFormat
}

// NewPlaceholder returns an enabled, unbound placeholder for instance
// id, deferring to db/factory/relauncher at bind time.
func NewPlaceholder(id uint32, db amdb.DB, registry *evt.Registry, factory RealModuleFactory, relauncher ThreadRelauncher) *Placeholder {
	if relauncher == nil {
		relauncher = NopRelauncher{}
	}
	return &Placeholder{id: id, enabled: true, db: db, registry: registry, factory: factory, relauncher: relauncher}
}

func (p *Placeholder) InstanceID() uint32 { return p.id }

// Enabled reports the real module's state once bound, otherwise the
// placeholder's own cached flag.
func (p *Placeholder) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		return p.real.Enabled()
	}
	return p.enabled
}

// SetEnabled follows normal module rules once bound. Before binding, a
// placeholder that was disabled at subgraph-start time (with no real id
// yet resolved) refuses to be re-enabled, per spec §4.7's enable/disable
// rule — the real module gets a say once it exists.
func (p *Placeholder) SetEnabled(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		p.real.SetEnabled(v)
		return
	}
	if !v {
		p.disabledAtSGStart = true
		p.enabled = false
		return
	}
	if p.disabledAtSGStart {
		return
	}
	p.enabled = true
}

// Process runs the real module's Process once bound; before binding
// there is nothing to process (the placeholder raises no capi events).
func (p *Placeholder) Process() (module.Events, error) {
	p.mu.Lock()
	bound, real := p.bound, p.real
	p.mu.Unlock()
	if !bound {
		return module.Events{}, nil
	}
	return real.Process()
}

// SetParam applies directly once bound, otherwise queues the call for
// replay at bind time (spec §4.7's "queues every set-param").
func (p *Placeholder) SetParam(paramID uint32, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		return applyParam(p.real, paramID, payload)
	}
	p.cachedParams = append(p.cachedParams, cachedParam{paramID: paramID, payload: payload})
	return nil
}

// RegisterEvent registers directly once bound, otherwise queues the
// registration (spec §4.7's "queues... every event-registration").
func (p *Placeholder) RegisterEvent(eventID evt.ID, client evt.Client) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		p.registry.Register(eventID, client)
		return nil
	}
	p.cachedEvents = append(p.cachedEvents, cachedEventReg{eventID: eventID, client: client})
	return nil
}

// NoteMediaFormat records the currently-known media format so a client
// that registered for the MF event (even while still queued) can be
// raised immediately once bound (spec §4.7 step 3).
func (p *Placeholder) NoteMediaFormat(mf *port.MediaFormat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentMF = mf
}

// Bound reports whether REAL_MODULE_ID has already resolved.
func (p *Placeholder) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}

// BindRealModuleID runs the deferred-binding sequence (spec §4.7):
// load the descriptor, check whether its stack-size requirement forces
// a thread relaunch, replay cached params in order, re-register cached
// events (re-raising the known media format to any that registered for
// it), then clear the caches and mark bound.
//
// If a relaunch is scheduled, BindRealModuleID returns a NeedMore error;
// the caller must invoke it again (with the same moduleID) once the
// worker has resumed on the relaunched thread, continuing from
// "set-config after relaunch" as spec §4.7 step 2 describes.
func (p *Placeholder) BindRealModuleID(moduleID uint32) error {
	desc, err := p.db.Load(moduleID)
	if err != nil {
		return spferr.Wrap(spferr.Failed, "placeholder: module database load failed", err)
	}

	if p.relauncher.Relaunch(desc.StackSizeBytes) {
		return spferr.New(spferr.NeedMore, "placeholder: stack relaunch scheduled, resume binding after relaunch")
	}

	real, err := p.factory(desc)
	if err != nil {
		return spferr.Wrap(spferr.Failed, "placeholder: real module construction failed", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cp := range p.cachedParams {
		if err := applyParam(real, cp.paramID, cp.payload); err != nil {
			return spferr.Wrap(spferr.Failed, "placeholder: cached param replay failed", err)
		}
	}
	for _, ce := range p.cachedEvents {
		p.registry.Register(ce.eventID, ce.client)
		if ce.eventID == shmem.EventMediaFormat && p.currentMF != nil {
			p.registry.Raise(ce.eventID, shmem.MediaFormatPayload{
				SampleRate:    p.currentMF.SampleRate,
				NumChannels:   p.currentMF.NumChannels,
				BitsPerSample: p.currentMF.BitsPerSample,
			})
		}
	}

	if p.disabledAtSGStart {
		real.SetEnabled(false)
	} else {
		real.SetEnabled(p.enabled)
	}

	p.real = real
	p.bound = true
	p.cachedParams = nil
	p.cachedEvents = nil
	return nil
}

func applyParam(m module.Module, paramID uint32, payload []byte) error {
	pm, ok := m.(ParameterizedModule)
	if !ok {
		return spferr.New(spferr.Unsupported, "module does not accept set-param")
	}
	return pm.SetParam(paramID, payload)
}
