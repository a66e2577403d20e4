package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeList accepts a bare array, {"data": [...]} or a paginated
// {"data": {"data": [...]}} body.
func decodeList[T any](body []byte) ([]T, error) {
	for depth := 0; depth < 3; depth++ {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return []T{}, nil
		}
		switch trimmed[0] {
		case '[':
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, err
			}
			return items, nil
		case '{':
			var envelope struct {
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(trimmed, &envelope); err != nil {
				return nil, err
			}
			if len(envelope.Data) == 0 {
				return nil, fmt.Errorf("unexpected list response")
			}
			body = envelope.Data
		default:
			return nil, fmt.Errorf("unexpected list response")
		}
	}
	return nil, fmt.Errorf("unexpected list response")
}

// decodeOne accepts an object or the same object wrapped in {"data": {...}}.
func decodeOne(body []byte, dest any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope) == 1 {
		if data, ok := envelope["data"]; ok && len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '{' {
			body = data
		}
	}
	return json.Unmarshal(body, dest)
}
