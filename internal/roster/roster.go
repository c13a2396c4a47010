// Package roster loads agent roster documents from YAML. A roster is the
// full set of agent descriptors handed to the orchestrator for one turn;
// descriptors are inputs, never persisted.
package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/looplinehq/quorum/pkg/types"
)

// Roster is a named collection of agent descriptors.
type Roster struct {
	Name   string                  `yaml:"name,omitempty"`
	Agents []types.AgentDescriptor `yaml:"agents"`
}

// LoadFromFile reads and validates a roster YAML file. A leading ~ in the
// path is expanded to the user's home directory.
func LoadFromFile(path string) (*Roster, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML parses YAML data into a Roster and validates it.
func LoadFromYAML(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster YAML: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	return &r, nil
}

// Validate checks structural invariants: at least one agent, unique
// non-empty keys, a role prompt per agent, and at most one synthesis-only
// agent.
func (r *Roster) Validate() error {
	if len(r.Agents) == 0 {
		return fmt.Errorf("roster has no agents")
	}

	seen := make(map[string]bool, len(r.Agents))
	synthesisOnly := 0
	for i, agent := range r.Agents {
		if agent.Key == "" {
			return fmt.Errorf("agent %d: key is required", i)
		}
		if seen[agent.Key] {
			return fmt.Errorf("duplicate agent key: %s", agent.Key)
		}
		seen[agent.Key] = true

		if agent.Name == "" {
			return fmt.Errorf("agent %s: name is required", agent.Key)
		}
		if agent.RolePrompt == "" {
			return fmt.Errorf("agent %s: role_prompt is required", agent.Key)
		}
		if agent.Temperature < 0 || agent.Temperature > 2 {
			return fmt.Errorf("agent %s: temperature must be in [0, 2]", agent.Key)
		}
		if agent.SynthesisOnly {
			synthesisOnly++
		}
	}

	if synthesisOnly > 1 {
		return fmt.Errorf("roster has %d synthesis-only agents, at most 1 allowed", synthesisOnly)
	}
	if synthesisOnly == len(r.Agents) {
		return fmt.Errorf("roster has no assignable agents")
	}

	return nil
}

// Assignable returns the agents that can take assignments, in roster order.
func (r *Roster) Assignable() []types.AgentDescriptor {
	out := make([]types.AgentDescriptor, 0, len(r.Agents))
	for _, agent := range r.Agents {
		if !agent.SynthesisOnly {
			out = append(out, agent)
		}
	}
	return out
}

// Find returns the descriptor with the given key, or false if absent.
func (r *Roster) Find(key string) (types.AgentDescriptor, bool) {
	for _, agent := range r.Agents {
		if agent.Key == key {
			return agent, true
		}
	}
	return types.AgentDescriptor{}, false
}
