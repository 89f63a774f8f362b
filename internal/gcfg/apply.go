package gcfg

import (
	"github.com/spf-audio/gencntr/internal/amdb"
	"github.com/spf-audio/gencntr/internal/evt"
	"github.com/spf-audio/gencntr/internal/gencntr"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/port"
)

// BuiltGraph is the runtime gen_cntr topology Apply derives from a
// validated Config: the two external ports (sized and media-formatted)
// plus a module.Walker of placeholder modules in graph order, ready for
// a caller (cmd/gencntrsim, or a platform entry point) to wire extio
// ports and a gencntr.Scheduler around.
type BuiltGraph struct {
	ExternalInput  *port.TopologyPort
	ExternalOutput *port.TopologyPort
	Walker         *module.Walker
	Placeholders   []*gencntr.Placeholder
}

// Apply builds a BuiltGraph from cfg, which must already have passed
// Validate. Every module starts as an unbound gencntr.Placeholder
// (spec §4.7): the caller drives BindRealModuleID once its amdb lookup
// resolves REAL_MODULE_ID for each instance.
func Apply(cfg *Config, db amdb.DB, registry *evt.Registry, factory gencntr.RealModuleFactory, relauncher gencntr.ThreadRelauncher) (*BuiltGraph, error) {
	in := port.NewTopologyPort()
	out := port.NewTopologyPort()

	in.MediaFormat = mediaFormatOf(cfg.ExternalInput)
	out.MediaFormat = mediaFormatOf(cfg.ExternalOutput)
	in.RecomputeMaxBufLen(cfg.ExternalInput.BytesPerMs, cfg.ExternalInput.OperatingFrameMs)
	out.RecomputeMaxBufLen(cfg.ExternalOutput.BytesPerMs, cfg.ExternalOutput.OperatingFrameMs)

	placeholders := make([]*gencntr.Placeholder, 0, len(cfg.Modules))
	modules := make([]module.Module, 0, len(cfg.Modules))
	for _, mc := range cfg.Modules {
		ph := gencntr.NewPlaceholder(mc.InstanceID, db, registry, factory, relauncher)
		ph.SetEnabled(mc.Enabled)
		placeholders = append(placeholders, ph)
		modules = append(modules, ph)
	}

	return &BuiltGraph{
		ExternalInput:  in,
		ExternalOutput: out,
		Walker:         module.NewWalker(modules),
		Placeholders:   placeholders,
	}, nil
}

func mediaFormatOf(p PortConfig) *port.MediaFormat {
	return &port.MediaFormat{
		SampleRate:     p.SampleRate,
		NumChannels:    p.NumChannels,
		BitsPerSample:  p.BitsPerSample,
		BytesPerSample: p.BitsPerSample / 8,
	}
}
