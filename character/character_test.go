package character

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEnsureIdentity_DeterministicID(t *testing.T) {
	a := &Character{Name: "Trinity"}
	b := &Character{Name: "Trinity"}
	other := &Character{Name: "Morpheus"}

	a.EnsureIdentity()
	b.EnsureIdentity()
	other.EnsureIdentity()

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID, "same name must derive the same ID")
	assert.NotEqual(t, a.ID, other.ID)
}

func TestEnsureIdentity_PreservesExplicitID(t *testing.T) {
	ch := &Character{Name: "Trinity", ID: "f47ac10b-58cc-4372-a567-0e02b2c3d479"}
	ch.EnsureIdentity()
	assert.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", ch.ID)
}

func TestEnsureIdentity_UsernameDefaultsToName(t *testing.T) {
	ch := &Character{Name: "Trinity"}
	ch.EnsureIdentity()
	assert.Equal(t, "Trinity", ch.Username)

	ch2 := &Character{Name: "Trinity", Username: "trin"}
	ch2.EnsureIdentity()
	assert.Equal(t, "trin", ch2.Username)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ch      *Character
		wantErr string
	}{
		{
			name:    "missing name",
			ch:      &Character{},
			wantErr: "name is required",
		},
		{
			name:    "blank name",
			ch:      &Character{Name: "   "},
			wantErr: "name is required",
		},
		{
			name:    "invalid id",
			ch:      &Character{Name: "x", ID: "not-a-uuid"},
			wantErr: "invalid id",
		},
		{
			name:    "empty client type",
			ch:      &Character{Name: "x", Clients: []string{"direct", ""}},
			wantErr: "client 1 has empty type",
		},
		{
			name:    "empty plugin name",
			ch:      &Character{Name: "x", Plugins: []PluginRef{{Name: ""}}},
			wantErr: "plugin 0 has empty name",
		},
		{
			name: "valid full",
			ch: &Character{
				Name:          "x",
				ModelProvider: "openai",
				Clients:       []string{"direct", "websocket"},
				Plugins:       []PluginRef{{Name: "relay", Clients: []string{"websocket"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ch.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPluginRef_UnmarshalYAML(t *testing.T) {
	var ch Character
	require.NoError(t, yaml.Unmarshal([]byte(`
name: Mixed
plugins:
  - weather
  - name: relay
    clients: [websocket]
`), &ch))

	require.Len(t, ch.Plugins, 2)
	assert.Equal(t, PluginRef{Name: "weather"}, ch.Plugins[0])
	assert.Equal(t, PluginRef{Name: "relay", Clients: []string{"websocket"}}, ch.Plugins[1])
}

func TestPluginRef_UnmarshalJSON(t *testing.T) {
	var ch Character
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Mixed",
		"plugins": ["weather", {"name": "relay", "clients": ["websocket"]}]
	}`), &ch))

	require.Len(t, ch.Plugins, 2)
	assert.Equal(t, PluginRef{Name: "weather"}, ch.Plugins[0])
	assert.Equal(t, PluginRef{Name: "relay", Clients: []string{"websocket"}}, ch.Plugins[1])
}

func TestDefaultCharacter(t *testing.T) {
	ch := DefaultCharacter()
	require.NoError(t, ch.Validate())
	assert.NotEmpty(t, ch.ID)
	assert.Equal(t, ch.Name, ch.Username)
	assert.Equal(t, DefaultCharacter().ID, ch.ID, "default character ID is stable")
}

func TestTokenFor(t *testing.T) {
	defaults := map[string]string{"openai": "sk-default"}

	tests := []struct {
		name     string
		provider string
		ch       *Character
		want     string
	}{
		{
			name:     "character override wins",
			provider: "openai",
			ch: &Character{Settings: Settings{
				Secrets: map[string]string{"openai": "sk-char"},
			}},
			want: "sk-char",
		},
		{
			name:     "env style key in character secrets",
			provider: "openai",
			ch: &Character{Settings: Settings{
				Secrets: map[string]string{"OPENAI_API_KEY": "sk-envstyle"},
			}},
			want: "sk-envstyle",
		},
		{
			name:     "falls back to process default",
			provider: "openai",
			ch:       &Character{},
			want:     "sk-default",
		},
		{
			name:     "provider case insensitive",
			provider: "OpenAI",
			ch:       &Character{},
			want:     "sk-default",
		},
		{
			name:     "unknown provider yields empty",
			provider: "ollama",
			ch:       &Character{},
			want:     "",
		},
		{
			name:     "empty provider yields empty",
			provider: "",
			ch:       &Character{},
			want:     "",
		},
		{
			name:     "nil character falls through",
			provider: "openai",
			ch:       nil,
			want:     "sk-default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFor(tt.provider, tt.ch, defaults))
		})
	}
}
