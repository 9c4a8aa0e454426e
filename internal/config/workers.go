package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rchlabs/rch/internal/osutil"
	"github.com/rchlabs/rch/rchapi"
)

// workerFile is the on-disk shape of the worker definitions file: a plain
// YAML list, hand-edited or generated by `rch workers add`.
type workerFile struct {
	Workers []rchapi.Worker `yaml:"workers"`
}

// LoadWorkers reads the worker definitions file at path. A missing file is
// not an error: it reads as zero configured workers, matching a fresh
// install before any `rch workers add`.
func LoadWorkers(path string) ([]rchapi.Worker, error) {
	absPath, err := osutil.NormalizeFilePath(path)
	if err != nil {
		return nil, fmt.Errorf("normalizing workers path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workers file %q: %w", absPath, err)
	}

	var wf workerFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing workers file %q: %w", absPath, err)
	}
	return wf.Workers, nil
}

// SaveWorkers writes workers to path, overwriting any existing content.
func SaveWorkers(path string, workers []rchapi.Worker) error {
	absPath, err := osutil.NormalizeFilePath(path)
	if err != nil {
		return fmt.Errorf("normalizing workers path %q: %w", path, err)
	}

	data, err := yaml.Marshal(workerFile{Workers: workers})
	if err != nil {
		return fmt.Errorf("encoding workers file: %w", err)
	}
	if err := os.WriteFile(absPath, data, 0o600); err != nil {
		return fmt.Errorf("writing workers file %q: %w", absPath, err)
	}
	return nil
}
