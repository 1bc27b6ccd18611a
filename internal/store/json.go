package store

import (
	"context"
	"encoding/json"
)

// ReadJSON decodes the value at key into v. Missing keys and malformed
// documents both leave v at its zero value and report false: storage
// corruption is recovered locally, never propagated.
func ReadJSON(ctx context.Context, s Store, key string, v any) bool {
	raw, ok := s.Read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false
	}
	return true
}

// WriteJSON marshals v and writes it at key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Write(ctx, key, raw)
}
