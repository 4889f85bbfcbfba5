package extension

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Manifest represents an extension.yaml file.
type Manifest struct {
	ID           string            `yaml:"id" json:"id"`
	Version      string            `yaml:"version" json:"version"`
	Dependencies map[string]string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	API          bool              `yaml:"api,omitempty" json:"api,omitempty"`
	Events       []string          `yaml:"events,omitempty" json:"events,omitempty"`
	Lua          *LuaConfig        `yaml:"lua,omitempty" json:"lua,omitempty"`
}

// LuaConfig holds the entry point for Lua-hosted extensions.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// maxIDLength is the maximum allowed length for extension ids.
const maxIDLength = 64

// idPattern validates extension ids: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens, and cannot end with
// a hyphen. Single character ids are allowed.
var idPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates an extension.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.ID == "" || !idPattern.MatchString(m.ID) {
		return fmt.Errorf("id %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.ID)
	}
	if len(m.ID) > maxIDLength {
		return fmt.Errorf("id must be %d characters or less, got %d", maxIDLength, len(m.ID))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not a semantic version: %w", m.Version, err)
	}

	for dep, required := range m.Dependencies {
		if dep == "" || !idPattern.MatchString(dep) {
			return fmt.Errorf("dependency id %q is not a valid extension id", dep)
		}
		if _, err := semver.NewConstraint(required); err != nil {
			return fmt.Errorf("dependency %s: range %q is not a version range: %w", dep, required, err)
		}
	}

	if m.Lua != nil {
		if !m.API {
			return fmt.Errorf("lua is only valid for api extensions")
		}
		if m.Lua.Entry == "" {
			return fmt.Errorf("lua.entry is required")
		}
	}

	return nil
}

// Info converts the manifest into registry metadata.
func (m *Manifest) Info() Info {
	deps := make(map[string]string, len(m.Dependencies))
	for k, v := range m.Dependencies {
		deps[k] = v
	}
	return Info{
		ID:           m.ID,
		Version:      m.Version,
		Dependencies: deps,
		API:          m.API,
		Events:       append([]string(nil), m.Events...),
	}
}
