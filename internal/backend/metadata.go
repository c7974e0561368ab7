package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalMetadata encodes metadata as a JSON object.
func MarshalMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

// UnmarshalMetadata decodes a JSON object. Integral numbers come back as
// int64 so numeric fields survive a round trip unchanged.
func UnmarshalMetadata(raw string) (Metadata, error) {
	if raw == "" {
		return Metadata{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			out[k] = i
		} else if f, err := n.Float64(); err == nil {
			out[k] = f
		} else {
			out[k] = n.String()
		}
	}
	return out, nil
}
