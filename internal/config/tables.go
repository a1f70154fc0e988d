package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables holds the static lookup tables loaded once at startup: the
// authorized-credential table and the beacon-to-checkpoint map. Both are
// immutable for the process lifetime.
type Tables struct {
	// Credentials maps credential id -> resident id.
	Credentials map[string]string `yaml:"credentials"`

	// BeaconCheckpoints maps beacon id -> checkpoint name.
	BeaconCheckpoints map[string]string `yaml:"beacon_checkpoints"`
}

// LoadTables reads the tables file. A missing file is returned as-is so
// the caller can decide whether to start with empty tables.
func LoadTables(path string) (Tables, error) {
	var t Tables

	data, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tables file %s: %w", path, err)
	}
	return t, nil
}
