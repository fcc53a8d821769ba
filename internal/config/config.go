// Package config loads run files for the command line stacker. YAML and TOML
// are accepted; fields that are absent keep their defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"focus-stacker/internal/core"
)

// Run describes one stacking job
type Run struct {
	core.Parameters `yaml:",inline"`

	Inputs   []string `yaml:"inputs" toml:"inputs"`
	Output   string   `yaml:"output" toml:"output"`
	Order    string   `yaml:"order" toml:"order"`
	Quality  int      `yaml:"quality" toml:"quality"`
	DepthMap string   `yaml:"depthmap" toml:"depthmap"`
}

func Default() Run {
	return Run{
		Parameters: core.DefaultParameters(),
		Order:      "name",
		Quality:    95,
	}
}

// Load reads the run file at path, choosing the decoder by extension.
func Load(path string) (Run, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("config read %s: %w", path, err)
	}

	run := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(contents, &run); err != nil {
			return Run{}, fmt.Errorf("config parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(contents), &run)
		if err != nil {
			return Run{}, fmt.Errorf("config parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Run{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
		}
	default:
		return Run{}, fmt.Errorf("config %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}

	// Relative inputs and outputs are taken from the run file's directory
	dir := filepath.Dir(path)
	for i, in := range run.Inputs {
		run.Inputs[i] = resolve(dir, in)
	}
	run.Output = resolve(dir, run.Output)
	run.DepthMap = resolve(dir, run.DepthMap)

	return run, nil
}

// Marshal renders run as YAML
func Marshal(run Run) ([]byte, error) {
	return yaml.Marshal(run)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
