// Package roster supplies the agent pool registered at startup, either the
// built-in default quartet or one loaded from a YAML file.
package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warmline/warmline/pkg/core"
)

// Default returns the built-in agent pool: one first-contact agent and three
// specialists.
func Default() []core.Agent {
	return []core.Agent{
		{Identity: "agent_a_001", Name: "Sarah", Role: core.RoleAgentA},
		{Identity: "agent_b_billing", Name: "Mike", Role: core.RoleAgentB, Specialty: "Billing"},
		{Identity: "agent_b_technical", Name: "Lisa", Role: core.RoleAgentB, Specialty: "Technical"},
		{Identity: "agent_b_general", Name: "John", Role: core.RoleAgentB, Specialty: "General Support"},
	}
}

type rosterFile struct {
	Agents []agentEntry `yaml:"agents"`
}

type agentEntry struct {
	Identity  string `yaml:"identity"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	Specialty string `yaml:"specialty"`
}

// Load reads an agent pool from a YAML file.
func Load(path string) ([]core.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("roster %s defines no agents", path)
	}

	agents := make([]core.Agent, 0, len(file.Agents))
	for i, entry := range file.Agents {
		if entry.Identity == "" {
			return nil, fmt.Errorf("roster %s: agent %d has no identity", path, i)
		}
		role := core.AgentRole(entry.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("roster %s: agent %q has invalid role %q", path, entry.Identity, entry.Role)
		}
		if entry.Specialty != "" && role != core.RoleAgentB {
			return nil, fmt.Errorf("roster %s: agent %q carries a specialty but is not a transfer target", path, entry.Identity)
		}
		agents = append(agents, core.Agent{
			Identity:  entry.Identity,
			Name:      entry.Name,
			Role:      role,
			Specialty: entry.Specialty,
		})
	}
	return agents, nil
}
