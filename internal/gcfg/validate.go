package gcfg

import "github.com/spf-audio/gencntr/internal/spferr"

// Validate enforces the module/endpoint threshold divisor invariant
// spec §4.6 requires before any port sizing is derived from cfg: every
// module's threshold must evenly divide both external ports'
// thresholds, or the configuration is rejected outright.
func Validate(cfg *Config) error {
	if cfg.ExternalInput.ThresholdBytes <= 0 || cfg.ExternalOutput.ThresholdBytes <= 0 {
		return spferr.New(spferr.BadParam, "external port thresholds must be positive")
	}
	if len(cfg.Modules) == 0 {
		return spferr.New(spferr.BadParam, "graph must contain at least one module")
	}
	seen := make(map[uint32]bool, len(cfg.Modules))
	for _, m := range cfg.Modules {
		if seen[m.InstanceID] {
			return spferr.New(spferr.BadParam, "duplicate module instance id in graph config")
		}
		seen[m.InstanceID] = true

		if m.ThresholdBytes <= 0 {
			return spferr.New(spferr.BadParam, "module threshold must be positive")
		}
		if cfg.ExternalInput.ThresholdBytes%m.ThresholdBytes != 0 {
			return spferr.New(spferr.BadParam, "module threshold must be an integer divisor of the external input threshold")
		}
		if cfg.ExternalOutput.ThresholdBytes%m.ThresholdBytes != 0 {
			return spferr.New(spferr.BadParam, "module threshold must be an integer divisor of the external output threshold")
		}
	}
	return nil
}
