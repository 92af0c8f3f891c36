// Package workflow executes directed step graphs defined in YAML
// manifests. Steps run sequentially along the active path, passing a
// shared Flow object; failures abort the failed step's successors
// while queued sibling branches continue.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StartMode is the concurrency policy for launching a workflow.
type StartMode string

const (
	// StartBlockingSingleton queues behind a running instance.
	StartBlockingSingleton StartMode = "blocking-singleton"
	// StartNonBlockingSingleton refuses to start while one is running.
	StartNonBlockingSingleton StartMode = "non-blocking-singleton"
	// StartOnePerRequest allows unlimited concurrent instances.
	StartOnePerRequest StartMode = "one-per-request"
)

// Retries configures the fixed retry wrapper for a step.
type Retries struct {
	Count int           `yaml:"count" json:"count"`
	Delay time.Duration `yaml:"delay" json:"delay"`
}

// Step is one node in the workflow graph.
type Step struct {
	ID           string            `yaml:"id" json:"id"`
	Method       string            `yaml:"method" json:"method"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Params       map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	TransitionTo []string          `yaml:"transition_to,omitempty" json:"transition_to,omitempty"`
	Enabled      *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Retries      *Retries          `yaml:"retries,omitempty" json:"retries,omitempty"`
	MaxWait      time.Duration     `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
}

// IsEnabled treats an absent flag as enabled.
func (s *Step) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Manifest is a parsed workflow definition.
type Manifest struct {
	Name             string            `yaml:"name" json:"name"`
	Description      string            `yaml:"description,omitempty" json:"description,omitempty"`
	StartMode        StartMode         `yaml:"start_mode,omitempty" json:"start_mode,omitempty"`
	Configs          map[string]string `yaml:"configs,omitempty" json:"configs,omitempty"`
	Steps            []Step            `yaml:"steps" json:"steps"`
	SystemComponents []string          `yaml:"system_components,omitempty" json:"system_components,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural problems. Malformed
// manifests are fatal, not diagnostics.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no name")
	}
	if len(m.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", m.Name)
	}
	switch m.StartMode {
	case "", StartBlockingSingleton, StartNonBlockingSingleton, StartOnePerRequest:
	default:
		return fmt.Errorf("workflow %q: unknown start mode %q", m.Name, m.StartMode)
	}

	ids := make(map[string]bool, len(m.Steps))
	for _, s := range m.Steps {
		if s.ID == "" {
			return fmt.Errorf("workflow %q: step with empty id", m.Name)
		}
		if s.Method == "" {
			return fmt.Errorf("workflow %q: step %q has no method", m.Name, s.ID)
		}
		if ids[s.ID] {
			return fmt.Errorf("workflow %q: duplicate step id %q", m.Name, s.ID)
		}
		ids[s.ID] = true
		if s.Retries != nil && s.Retries.Count < 0 {
			return fmt.Errorf("workflow %q: step %q has negative retry count", m.Name, s.ID)
		}
	}
	for _, s := range m.Steps {
		for _, next := range s.TransitionTo {
			if !ids[next] {
				return fmt.Errorf("workflow %q: step %q transitions to unknown step %q", m.Name, s.ID, next)
			}
		}
	}
	if len(m.EntrySteps()) == 0 {
		return fmt.Errorf("workflow %q has no entry step, every step is a transition target", m.Name)
	}
	return nil
}

// Mode returns the effective start mode, defaulting to
// blocking-singleton.
func (m *Manifest) Mode() StartMode {
	if m.StartMode == "" {
		return StartBlockingSingleton
	}
	return m.StartMode
}

// StepByID returns the step with the given id.
func (m *Manifest) StepByID(id string) (*Step, bool) {
	for i := range m.Steps {
		if m.Steps[i].ID == id {
			return &m.Steps[i], true
		}
	}
	return nil, false
}

// EntrySteps returns the steps no other step transitions to, in
// declaration order. Execution starts from these.
func (m *Manifest) EntrySteps() []string {
	targets := make(map[string]bool)
	for _, s := range m.Steps {
		for _, next := range s.TransitionTo {
			targets[next] = true
		}
	}
	var entries []string
	for _, s := range m.Steps {
		if !targets[s.ID] {
			entries = append(entries, s.ID)
		}
	}
	return entries
}
