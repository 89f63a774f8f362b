package gcfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/amdb"
	"github.com/spf-audio/gencntr/internal/evt"
	"github.com/spf-audio/gencntr/internal/gencntr"
	"github.com/spf-audio/gencntr/internal/module"
)

const sampleYAML = `
name: mono-passthrough
sim_build: true
external_input:
  threshold_bytes: 960
  bytes_per_ms: 96
  operating_frame_ms: 10
  num_channels: 1
  sample_rate: 48000
  bits_per_sample: 16
external_output:
  threshold_bytes: 960
  bytes_per_ms: 96
  operating_frame_ms: 10
  num_channels: 1
  sample_rate: 48000
  bits_per_sample: 16
modules:
  - instance_id: 1
    module_id: 256
    threshold_bytes: 480
    enabled: true
  - instance_id: 2
    module_id: 257
    threshold_bytes: 960
    enabled: true
`

func TestLoadParsesDocument(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "mono-passthrough", cfg.Name)
	require.Len(t, cfg.Modules, 2)
	require.Equal(t, 960, cfg.ExternalOutput.ThresholdBytes)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(strings.NewReader(sampleYAML + "\nbogus_field: 1\n"))
	require.Error(t, err)
}

func TestValidateAcceptsDivisorThresholds(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsNonDivisorThreshold(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	cfg.Modules[0].ThresholdBytes = 700
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsDuplicateInstanceID(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	cfg.Modules[1].InstanceID = cfg.Modules[0].InstanceID
	require.Error(t, Validate(cfg))
}

func TestApplyBuildsSizedPortsAndPlaceholderWalker(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	db := amdb.NewInMemory()
	registry := evt.NewRegistry()
	factory := func(desc amdb.Descriptor) (module.Module, error) {
		return module.NewStub(desc.ModuleID), nil
	}

	graph, err := Apply(cfg, db, registry, factory, gencntr.NopRelauncher{})
	require.NoError(t, err)
	require.Equal(t, 960, graph.ExternalInput.MaxBufLen)
	require.Equal(t, 960, graph.ExternalOutput.MaxBufLen)
	require.Equal(t, 2, graph.Walker.Len())
	require.Len(t, graph.Placeholders, 2)
	require.False(t, graph.Placeholders[0].Bound())
}
