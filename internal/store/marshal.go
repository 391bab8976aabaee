package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/graphq/internal/ir"
)

// marshalProps converts properties to canonical JSON TEXT for storage.
// Null values are dropped; they read back as absent, which Get reports as null.
func marshalProps(props ir.IRObject) (string, error) {
	kept := make(ir.IRObject, len(props))
	for k, v := range props {
		if !ir.IsNull(v) {
			kept[k] = v
		}
	}
	data, err := ir.MarshalCanonical(kept)
	if err != nil {
		return "", fmt.Errorf("marshal props: %w", err)
	}
	return string(data), nil
}

// unmarshalProps parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON, which keeps integers exact and restores
// references.
func unmarshalProps(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal props: %w", err)
	}
	return obj, nil
}

func marshalTraits(traits []string) (string, error) {
	if len(traits) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(traits)
	if err != nil {
		return "", fmt.Errorf("marshal traits: %w", err)
	}
	return string(data), nil
}

func unmarshalTraits(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var traits []string
	if err := json.Unmarshal([]byte(data), &traits); err != nil {
		return nil, fmt.Errorf("unmarshal traits: %w", err)
	}
	return traits, nil
}
