package character

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultDir is the conventional directory bare character filenames resolve
// against. Paths containing a separator resolve against the working directory.
const DefaultDir = "characters"

// Loader reads and validates character definition files.
type Loader struct {
	dir    string
	logger *zap.Logger
}

// NewLoader creates a character loader. dir is the conventional characters
// directory; empty means DefaultDir.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dir:    dir,
		logger: logger.With(zap.String("component", "character_loader")),
	}
}

// SplitArg splits a comma-separated path list, trimming whitespace and
// dropping empty entries.
func SplitArg(arg string) []string {
	var paths []string
	for _, p := range strings.Split(arg, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Load reads each path, parses and validates it, and returns the characters
// in the same order. Any failure for an explicitly named path is an error:
// a user who named a file expects it to load, so the caller must treat this
// as fatal. With no paths (or an empty result) the built-in default
// character is returned so the orchestrator always has something to start.
func (l *Loader) Load(paths []string) ([]*Character, error) {
	if len(paths) == 0 {
		l.logger.Info("no character files specified, using default character",
			zap.String("name", DefaultCharacter().Name))
		return []*Character{DefaultCharacter()}, nil
	}

	chars := make([]*Character, 0, len(paths))
	for _, path := range paths {
		resolved := l.resolve(path)
		l.logger.Debug("loading character file",
			zap.String("path", path),
			zap.String("resolved", resolved))

		ch, err := l.loadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("load character %s: %w", path, err)
		}
		chars = append(chars, ch)
	}

	if len(chars) == 0 {
		l.logger.Info("character list empty after load, using default character")
		return []*Character{DefaultCharacter()}, nil
	}

	names := make([]string, len(chars))
	for i, ch := range chars {
		names[i] = ch.Name
	}
	l.logger.Info("characters loaded",
		zap.Int("count", len(chars)),
		zap.Strings("names", names))

	return chars, nil
}

// resolve maps a bare filename onto the characters directory; any path
// containing a separator is used as given (relative to the working dir).
func (l *Loader) resolve(path string) string {
	if filepath.Base(path) == path {
		return filepath.Join(l.dir, path)
	}
	return path
}

// loadFile reads one file, parses it by extension, derives identity fields,
// and validates the result.
func (l *Loader) loadFile(path string) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character file: %w", err)
	}

	var ch Character
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ch); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}

	if err := ch.Validate(); err != nil {
		return nil, err
	}
	ch.EnsureIdentity()

	return &ch, nil
}
