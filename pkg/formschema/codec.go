package formschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeJSON decodes either a single Structure or a list of them.
func DecodeJSON(b []byte) ([]Structure, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("empty form schema")
	}
	if b[0] == '[' {
		var list []Structure
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, fmt.Errorf("decode form schema: %w", err)
		}
		return list, nil
	}
	var one Structure
	if err := json.Unmarshal(b, &one); err != nil {
		return nil, fmt.Errorf("decode form schema: %w", err)
	}
	return []Structure{one}, nil
}

// DecodeYAML decodes a YAML document holding either a single Structure or a
// list of them.
func DecodeYAML(b []byte) ([]Structure, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("decode form schema: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, errors.New("empty form schema")
	}
	root := node.Content[0]
	var out []Structure
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode form schema: %w", err)
		}
	} else {
		var one Structure
		if err := root.Decode(&one); err != nil {
			return nil, fmt.Errorf("decode form schema: %w", err)
		}
		out = []Structure{one}
	}
	for i := range out {
		Walk(out[i].Fields, func(f *Field) bool {
			if f.Visibility != nil {
				f.Visibility.Value = normalizeNumber(f.Visibility.Value)
			}
			return true
		})
	}
	return out, nil
}

// EncodeYAML renders structures as a YAML list.
func EncodeYAML(structures []Structure) ([]byte, error) {
	return yaml.Marshal(structures)
}

// normalizeNumber converts YAML integers to float64 so rule values compare
// the same way as values decoded from JSON.
func normalizeNumber(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return v
}
