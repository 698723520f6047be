// Package sessionstore provides auth.SessionBackend implementations: an
// in-process map, Redis, and a SQL table through bun.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
)

// SchemaVersion is written with every stored session. Records written with
// another version are treated as missing.
const SchemaVersion = 1

// ErrSchemaVersion is returned by Decode for records of another version.
var ErrSchemaVersion = errors.New("sessionstore: unsupported schema version")

type record struct {
	Version int               `json:"v"`
	State   auth.SessionState `json:"state"`
	SavedAt time.Time         `json:"saved_at"`
}

// Encode serializes state with the current schema version.
func Encode(state auth.SessionState, savedAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(record{
		Version: SchemaVersion,
		State:   state,
		SavedAt: savedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return payload, nil
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (auth.SessionState, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return auth.SessionState{}, fmt.Errorf("decode session: %w", err)
	}
	if rec.Version != SchemaVersion {
		return auth.SessionState{}, fmt.Errorf("%w: %d", ErrSchemaVersion, rec.Version)
	}
	return rec.State, nil
}

// decodeFound maps a stale schema to "not found" so old sessions start over.
func decodeFound(payload []byte) (auth.SessionState, bool, error) {
	state, err := Decode(payload)
	if errors.Is(err, ErrSchemaVersion) {
		return auth.SessionState{}, false, nil
	}
	if err != nil {
		return auth.SessionState{}, false, err
	}
	return state, true, nil
}
