package character

import "strings"

// envKeyByProvider maps provider names to the conventional env-style secret
// keys accepted in a character's secrets map.
var envKeyByProvider = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// TokenFor resolves the credential for a character's model provider:
// the character-level secret override wins, then the process-wide default.
// An empty result means no credential is available, which callers must treat
// as "provider needs no credential" rather than an error.
func TokenFor(provider string, ch *Character, defaults map[string]string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return ""
	}

	if ch != nil && ch.Settings.Secrets != nil {
		if v, ok := ch.Settings.Secrets[provider]; ok && v != "" {
			return v
		}
		if key, ok := envKeyByProvider[provider]; ok {
			if v, ok := ch.Settings.Secrets[key]; ok && v != "" {
				return v
			}
		}
	}

	if defaults != nil {
		if v, ok := defaults[provider]; ok {
			return v
		}
	}

	return ""
}
