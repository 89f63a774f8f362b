// Package gcfg loads a graph/container topology description and applies
// it to runtime state, following a load -> validate -> apply shape for
// a gen_cntr instance's module list, ports, and thresholds.
package gcfg

import (
	"io"

	"gopkg.in/yaml.v3"
)

// ModuleConfig describes one module instance in the topology, in the
// sorted (leaves-last) order the walker will invoke them.
type ModuleConfig struct {
	InstanceID     uint32 `yaml:"instance_id"`
	ModuleID       uint32 `yaml:"module_id"`
	ThresholdBytes int    `yaml:"threshold_bytes"`
	Enabled        bool   `yaml:"enabled"`
}

// PortConfig describes one external port's media format and threshold
// sizing inputs.
type PortConfig struct {
	ThresholdBytes   int `yaml:"threshold_bytes"`
	BytesPerMs       int `yaml:"bytes_per_ms"`
	OperatingFrameMs int `yaml:"operating_frame_ms"`
	NumChannels      int `yaml:"num_channels"`
	SampleRate       int `yaml:"sample_rate"`
	BitsPerSample    int `yaml:"bits_per_sample"`
}

// Config is one gen_cntr instance's full graph/container description.
type Config struct {
	Name           string         `yaml:"name"`
	SimBuild       bool           `yaml:"sim_build"`
	Modules        []ModuleConfig `yaml:"modules"`
	ExternalInput  PortConfig     `yaml:"external_input"`
	ExternalOutput PortConfig     `yaml:"external_output"`
}

// Load parses a container/graph configuration document from r. Unknown
// fields are rejected so a misspelled directive fails loudly instead of
// being silently ignored.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
