// Package props loads rule fixtures from YAML for offline evaluation and
// tests. A fixture may be split over several files; later files override
// the fields they set.
package props

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"version-gate/internal/engine"
	"version-gate/internal/gate"
)

type Fixture struct {
	StoreURL    string                   `yaml:"storeUrl"`
	MinVersion  string                   `yaml:"minVersion"`
	Maintenance *engine.MaintenanceMode  `yaml:"maintenance"`
	Rules       []engine.VersionRule     `yaml:"rules"`
	Context     engine.EvaluationContext `yaml:"context"`
}

// Selection converts the fixture into what the gate evaluates.
func (f Fixture) Selection() gate.Selection {
	return gate.Selection{
		Rules:       f.Rules,
		Maintenance: f.Maintenance,
		Platform:    gate.PlatformSettings{StoreURL: f.StoreURL, MinVersion: f.MinVersion},
	}
}

// Load decodes base and then each overlay on top of it. Missing overlays are
// skipped so environment specific files stay optional.
func Load(base string, overlays ...string) (Fixture, error) {
	var f Fixture
	if err := loadYAML(base, &f); err != nil {
		return Fixture{}, err
	}
	for _, p := range overlays {
		err := loadYAML(p, &f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Fixture{}, err
		}
	}
	return f, nil
}

func loadYAML(path string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixture %s: %w", path, err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}
	return nil
}
