package extract

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// BatchJob describes one demo to extract within a batch run.
type BatchJob struct {
	DemoPath  string   `yaml:"demo"`
	PlayerIDs []string `yaml:"players,omitempty"`
}

// BatchConfig is the top-level shape of a batch YAML job file: shared
// defaults plus the list of demos to process.
type BatchConfig struct {
	OutputDir      string     `yaml:"output_dir"`
	ForceOverwrite bool       `yaml:"force,omitempty"`
	Format         string     `yaml:"format,omitempty"`
	MetricsAddr    string     `yaml:"metrics_addr,omitempty"`
	Jobs           []BatchJob `yaml:"jobs"`
}

// LoadBatchConfig reads and parses a batch job file.
func LoadBatchConfig(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch config '%s': %w", path, err)
	}

	var cfg BatchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse batch config '%s': %w", path, err)
	}
	if len(cfg.Jobs) == 0 {
		return nil, fmt.Errorf("batch config '%s' declares no jobs", path)
	}
	return &cfg, nil
}

// RunBatch runs every job in cfg sequentially, sharing the output directory
// and format across all of them; metrics are enabled for the first job only
// (see below). It collects and
// returns every job's error rather than stopping at the first failure, so
// one bad demo in a batch doesn't block the rest.
func RunBatch(cfg *BatchConfig) []error {
	var errs []error
	for i, job := range cfg.Jobs {
		jobCfg := Config{
			DemoPath:       job.DemoPath,
			OutputDir:      cfg.OutputDir,
			ForceOverwrite: cfg.ForceOverwrite,
			PlayerIDs:      job.PlayerIDs,
			Format:         cfg.Format,
		}
		// The metrics server is process-wide and is started once, for the
		// first job; re-registering the same Prometheus counters for every
		// job would panic. Later jobs run with no metrics recorder, so their
		// decodes are not counted.
		if i == 0 {
			jobCfg.MetricsAddr = cfg.MetricsAddr
		}
		if err := Run(jobCfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.DemoPath, err))
		}
	}
	return errs
}
