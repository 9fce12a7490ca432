package character

// DefaultCharacter returns the built-in character used when no character
// files were specified. Identity fields are derived so callers always see a
// fully populated definition.
func DefaultCharacter() *Character {
	ch := &Character{
		Name:          "Vela",
		System:        "You are Vela, a concise and friendly assistant.",
		Bio:           []string{"A general-purpose conversational agent."},
		ModelProvider: "openai",
	}
	ch.EnsureIdentity()
	return ch
}
