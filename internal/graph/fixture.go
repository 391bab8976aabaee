package graph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphq/internal/ir"
)

// Fixture is the file form of a Record. Property values are plain YAML or
// JSON values; a map with the single key "$ref" is a reference.
//
//	- id: u1
//	  type: User
//	  props:
//	    name: Ada
//	    groups: [{$ref: g1}]
type Fixture struct {
	ID     string         `yaml:"id"`
	Kind   Kind           `yaml:"kind,omitempty"`
	Type   string         `yaml:"type"`
	Traits []string       `yaml:"traits,omitempty"`
	Source string         `yaml:"source,omitempty"`
	Target string         `yaml:"target,omitempty"`
	Hidden bool           `yaml:"hidden,omitempty"`
	Props  map[string]any `yaml:"props,omitempty"`
}

// Record converts and validates the fixture.
func (f Fixture) Record() (Record, error) {
	r := Record{
		ID:     f.ID,
		Kind:   f.Kind,
		Type:   f.Type,
		Traits: f.Traits,
		Source: f.Source,
		Target: f.Target,
		Hidden: f.Hidden,
		Props:  make(ir.IRObject, len(f.Props)),
	}
	for k, v := range f.Props {
		val, err := ir.FromAny(v)
		if err != nil {
			return Record{}, fmt.Errorf("record %q: property %q: %w", f.ID, k, err)
		}
		r.Props[k] = val
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Records converts a list of fixtures.
func Records(fixtures []Fixture) ([]Record, error) {
	out := make([]Record, 0, len(fixtures))
	for i, f := range fixtures {
		r, err := f.Record()
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseRecords decodes a YAML (or JSON) list of fixtures. Unknown fields are
// rejected.
func ParseRecords(data []byte) ([]Record, error) {
	var fixtures []Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixtures); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return Records(fixtures)
}

// LoadRecords reads a fixture file.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	records, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
