package character

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// idNamespace is the fixed UUID namespace for deriving agent IDs from names.
// Deriving with uuid.NewSHA1 keeps the ID stable across runs for the same name.
var idNamespace = uuid.MustParse("5f6d8c2a-1f0b-4e0d-9f1a-7c3b2d4e5f60")

// Character is a declarative definition of one agent: identity, model
// provider, communication clients, plugins, and secret overrides.
// It is designed to be deserialized from YAML or JSON files.
type Character struct {
	// Identity
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string `yaml:"name" json:"name"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Persona (free-form, consumed by the reasoning engine)
	System string   `yaml:"system,omitempty" json:"system,omitempty"`
	Bio    []string `yaml:"bio,omitempty" json:"bio,omitempty"`

	// Model provider selector, e.g. "openai" or "anthropic".
	ModelProvider string `yaml:"modelProvider,omitempty" json:"modelProvider,omitempty"`

	// Built-in communication client type names (case-insensitive).
	Clients []string `yaml:"clients,omitempty" json:"clients,omitempty"`

	// Plugin declarations. Each plugin may declare its own clients.
	Plugins []PluginRef `yaml:"plugins,omitempty" json:"plugins,omitempty"`

	// Settings, including per-character secret overrides.
	Settings Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// PluginRef declares a plugin by name, optionally with its own client types.
// In character files it may appear either as a plain string or as an object:
//
//	plugins:
//	  - weather
//	  - name: relay
//	    clients: [websocket]
type PluginRef struct {
	Name    string   `yaml:"name" json:"name"`
	Clients []string `yaml:"clients,omitempty" json:"clients,omitempty"`
}

// Settings carries per-character runtime settings.
type Settings struct {
	// Secrets maps provider names (or conventional env-style keys) to
	// credentials, overriding process-wide defaults.
	Secrets map[string]string `yaml:"secrets,omitempty" json:"secrets,omitempty"`
}

// DeclaresClient reports whether the character declares the named client
// type, directly or through one of its plugins. Matching is case-insensitive.
func (c *Character) DeclaresClient(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	for _, n := range c.Clients {
		if strings.TrimSpace(strings.ToLower(n)) == name {
			return true
		}
	}
	for _, p := range c.Plugins {
		for _, n := range p.Clients {
			if strings.TrimSpace(strings.ToLower(n)) == name {
				return true
			}
		}
	}
	return false
}

// UnmarshalYAML accepts either a scalar plugin name or a full mapping.
func (p *PluginRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		return nil
	}

	type plain PluginRef
	var v plain
	if err := value.Decode(&v); err != nil {
		return err
	}
	*p = PluginRef(v)
	return nil
}

// UnmarshalJSON accepts either a string plugin name or a full object.
func (p *PluginRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Name)
	}

	type plain PluginRef
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PluginRef(v)
	return nil
}

// EnsureIdentity fills derived identity fields. The ID is computed once,
// deterministically, from the name; the username defaults to the name.
func (c *Character) EnsureIdentity() {
	if c.ID == "" {
		c.ID = uuid.NewSHA1(idNamespace, []byte(c.Name)).String()
	}
	if c.Username == "" {
		c.Username = c.Name
	}
}

// Validate checks that required fields are present and constraints are met.
func (c *Character) Validate() error {
	if c == nil {
		return fmt.Errorf("character is nil")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("character: name is required")
	}
	if c.ID != "" {
		if _, err := uuid.Parse(c.ID); err != nil {
			return fmt.Errorf("character %s: invalid id %q: %w", c.Name, c.ID, err)
		}
	}
	for i, cl := range c.Clients {
		if strings.TrimSpace(cl) == "" {
			return fmt.Errorf("character %s: client %d has empty type", c.Name, i)
		}
	}
	for i, p := range c.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("character %s: plugin %d has empty name", c.Name, i)
		}
	}
	return nil
}
