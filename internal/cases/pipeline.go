package cases

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline is an ordered sequence of named stages a case moves through.
// The first stage is where new cases land, the last is terminal.
type Pipeline struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Stages []string `yaml:"stages"`
}

// InitialStage returns the stage new cases are created in.
func (p *Pipeline) InitialStage() string {
	return p.Stages[0]
}

// StageIndex returns the position of stage in the pipeline, or -1.
func (p *Pipeline) StageIndex(stage string) int {
	for i, s := range p.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// CanTransition reports whether a case may move from one stage to another.
// Cases advance forward by any number of stages; they move backward one
// stage at a time, so a return for rework is deliberate rather than a jump
// back to intake.
func (p *Pipeline) CanTransition(from, to string) bool {
	fromIdx := p.StageIndex(from)
	toIdx := p.StageIndex(to)
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	return toIdx > fromIdx || toIdx == fromIdx-1
}

// PipelineConfig is the set of pipelines available to an installation,
// loaded from YAML at startup.
type PipelineConfig struct {
	Pipelines []Pipeline `yaml:"pipelines"`
}

// Lookup returns the pipeline with the given ID.
func (c *PipelineConfig) Lookup(id string) (*Pipeline, bool) {
	for i := range c.Pipelines {
		if c.Pipelines[i].ID == id {
			return &c.Pipelines[i], true
		}
	}
	return nil, false
}

// Default returns the first configured pipeline, used when intake does not
// name one.
func (c *PipelineConfig) Default() *Pipeline {
	return &c.Pipelines[0]
}

func (c *PipelineConfig) validate() error {
	if len(c.Pipelines) == 0 {
		return fmt.Errorf("at least one pipeline is required")
	}

	seen := make(map[string]bool)
	for _, p := range c.Pipelines {
		if p.ID == "" {
			return fmt.Errorf("pipeline is missing an id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pipeline id %q", p.ID)
		}
		seen[p.ID] = true

		if len(p.Stages) < 2 {
			return fmt.Errorf("pipeline %q needs at least two stages", p.ID)
		}

		stages := make(map[string]bool)
		for _, s := range p.Stages {
			if s == "" {
				return fmt.Errorf("pipeline %q has an empty stage name", p.ID)
			}
			if stages[s] {
				return fmt.Errorf("pipeline %q has duplicate stage %q", p.ID, s)
			}
			stages[s] = true
		}
	}

	return nil
}

// LoadPipelineConfig reads a pipeline configuration from YAML.
func LoadPipelineConfig(r io.Reader) (*PipelineConfig, error) {
	var cfg PipelineConfig

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	return &cfg, nil
}

// LoadPipelineConfigFile reads a pipeline configuration from a YAML file,
// falling back to the built-in default when path is empty.
func LoadPipelineConfigFile(path string) (*PipelineConfig, error) {
	if path == "" {
		return DefaultPipelineConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline config: %w", err)
	}
	defer f.Close()

	return LoadPipelineConfig(f)
}

// DefaultPipelineConfig is the standard intake-to-closure workflow used
// when no pipeline file is configured.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Pipelines: []Pipeline{
			{
				ID:     "standard",
				Name:   "Standard Investigation",
				Stages: []string{"intake", "triage", "investigation", "review", "closed"},
			},
		},
	}
}
