package gencntr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/amdb"
	"github.com/spf-audio/gencntr/internal/evt"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/shmem"
)

// paramStub is a module.Stub that also accepts set-params, recording
// every applied call in order.
type paramStub struct {
	*module.Stub
	applied []uint32
}

func newParamStub(id uint32) *paramStub {
	return &paramStub{Stub: module.NewStub(id)}
}

func (p *paramStub) SetParam(paramID uint32, payload []byte) error {
	p.applied = append(p.applied, paramID)
	return nil
}

type capturingClient struct {
	events []evt.ID
}

func (c *capturingClient) HandleEvent(id evt.ID, payload any) {
	c.events = append(c.events, id)
}

func TestPlaceholderQueuesParamsBeforeBinding(t *testing.T) {
	db := amdb.NewInMemory()
	db.Register(amdb.Descriptor{ModuleID: 0x42, StackSizeBytes: 4096})
	registry := evt.NewRegistry()

	var real *paramStub
	factory := func(desc amdb.Descriptor) (module.Module, error) {
		real = newParamStub(desc.ModuleID)
		return real, nil
	}

	p := NewPlaceholder(1, db, registry, factory, nil)
	require.NoError(t, p.SetParam(10, []byte("a")))
	require.NoError(t, p.SetParam(11, []byte("b")))
	require.False(t, p.Bound())

	require.NoError(t, p.BindRealModuleID(0x42))
	require.True(t, p.Bound())
	require.Equal(t, []uint32{10, 11}, real.applied)
}

func TestPlaceholderReRaisesMediaFormatOnDeferredEventRegistration(t *testing.T) {
	db := amdb.NewInMemory()
	db.Register(amdb.Descriptor{ModuleID: 0x7, StackSizeBytes: 1024})
	registry := evt.NewRegistry()
	factory := func(desc amdb.Descriptor) (module.Module, error) {
		return newParamStub(desc.ModuleID), nil
	}

	p := NewPlaceholder(2, db, registry, factory, nil)
	client := &capturingClient{}
	require.NoError(t, p.RegisterEvent(shmem.EventMediaFormat, client))
	p.NoteMediaFormat(&port.MediaFormat{SampleRate: 48000, NumChannels: 2})

	require.NoError(t, p.BindRealModuleID(0x7))
	require.Contains(t, client.events, shmem.EventMediaFormat)
	require.True(t, registry.IsRegistered(shmem.EventMediaFormat, client))
}

func TestPlaceholderRequestsRelaunchOnOversizeStack(t *testing.T) {
	db := amdb.NewInMemory()
	db.Register(amdb.Descriptor{ModuleID: 0x9, StackSizeBytes: 1 << 20})
	registry := evt.NewRegistry()
	factory := func(desc amdb.Descriptor) (module.Module, error) {
		return newParamStub(desc.ModuleID), nil
	}
	relauncher := &recordingRelauncher{needed: true}

	p := NewPlaceholder(3, db, registry, factory, relauncher)
	err := p.BindRealModuleID(0x9)
	require.Error(t, err)
	require.False(t, p.Bound())
	require.Equal(t, 1<<20, relauncher.lastStackBytes)
}

type recordingRelauncher struct {
	needed         bool
	lastStackBytes int
}

func (r *recordingRelauncher) Relaunch(stackBytes int) bool {
	r.lastStackBytes = stackBytes
	return r.needed
}

func TestPlaceholderRefusesReEnableAfterSGStartDisableBeforeBound(t *testing.T) {
	db := amdb.NewInMemory()
	registry := evt.NewRegistry()
	p := NewPlaceholder(4, db, registry, nil, nil)

	p.SetEnabled(false)
	p.SetEnabled(true)
	require.False(t, p.Enabled(), "a placeholder disabled at SG-start must refuse re-enable before a real id binds")
}

func TestPlaceholderProcessIsNoOpBeforeBinding(t *testing.T) {
	db := amdb.NewInMemory()
	registry := evt.NewRegistry()
	p := NewPlaceholder(5, db, registry, nil, nil)

	ev, err := p.Process()
	require.NoError(t, err)
	require.False(t, ev.Any())
}
