// Package config implements the configuration loader the core receives a
// normalized {syncPaths[], exclusions[]} structure from, per spec.md 6. It
// mirrors the teacher's pkg/configuration pattern of a human-readable YAML
// shape converted to an internal type via a Configuration() method.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/narconet/narconet/pkg/atomicfile"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/tree"
)

// SyncPathSpec is the YAML shape of one configured sync path. It accepts
// either a bare string (shorthand for {path: <string>}) or a full mapping,
// resolved by UnmarshalYAML, per spec.md 9's polymorphic-node note.
type SyncPathSpec struct {
	Path            string `yaml:"path"`
	Name            string `yaml:"name"`
	Enabled         bool   `yaml:"enabled"`
	Enforced        bool   `yaml:"enforced"`
	Silent          bool   `yaml:"silent"`
	RestartRequired bool   `yaml:"restartRequired"`
}

// UnmarshalYAML implements yaml.Unmarshaler. It first tries to decode the
// node as a bare string (the shorthand form); if that fails, it falls back
// to decoding the full mapping form.
func (s *SyncPathSpec) UnmarshalYAML(value *yaml.Node) error {
	var bare string
	if err := value.Decode(&bare); err == nil {
		*s = SyncPathSpec{Path: bare, Enabled: true}
		return nil
	}

	type plain SyncPathSpec
	var full plain
	if err := value.Decode(&full); err != nil {
		return errors.Wrap(err, "sync path entry is neither a string nor a mapping")
	}
	*s = SyncPathSpec(full)
	return nil
}

// SyncPath normalizes this spec to the uniform tree.SyncPath record used
// throughout the core. The polymorphic variant does not survive past this
// call.
func (s SyncPathSpec) SyncPath() tree.SyncPath {
	return tree.SyncPath{
		Path:            s.Path,
		Name:            s.Name,
		Enabled:         s.Enabled,
		Enforced:        s.Enforced,
		Silent:          s.Silent,
		RestartRequired: s.RestartRequired,
	}
}

// Configuration is the YAML-loadable configuration object, consumed by the
// core as {syncPaths[], exclusions[]} per spec.md 6.
type Configuration struct {
	SyncPaths  []SyncPathSpec `yaml:"syncPaths"`
	Exclusions []string       `yaml:"exclusions"`
}

// TreeSyncPaths normalizes every configured sync path to tree.SyncPath.
func (c *Configuration) TreeSyncPaths() []tree.SyncPath {
	result := make([]tree.SyncPath, 0, len(c.SyncPaths))
	for _, spec := range c.SyncPaths {
		result = append(result, spec.SyncPath())
	}
	return result
}

// Load reads and parses a YAML configuration file at path. A missing file
// is not an error: it returns an empty Configuration, since spec.md 9
// treats the absence of local configuration as "use defaults", not a fatal
// ConfigInvalid condition.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Configuration{}, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "unable to read configuration file")
	}

	result := &Configuration{}
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}
	return result, nil
}

// Save writes the configuration back to path atomically, pretty-printed,
// matching the on-disk JSON state files' write discipline (spec.md 6).
func Save(path string, configuration *Configuration, logger *logging.Logger) error {
	data, err := yaml.Marshal(configuration)
	if err != nil {
		return errors.Wrap(err, "unable to marshal configuration")
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}
