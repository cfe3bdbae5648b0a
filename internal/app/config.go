package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl file or directory of hcl files

	LogFormat    string
	LogLevel     string
	MemoryBudget uint64 // per-phase memory budget in bytes
	PlotOnly     bool   // render graphviz output instead of executing
	Metrics      bool   // dump step counters after the run
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.MemoryBudget == 0 {
		return nil, errors.New("MemoryBudget must be positive")
	}
	return &cfg, nil
}
