// Package storage keeps per-session client state under fixed keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is written into every envelope. Payloads carrying any other version are
// treated as absent.
const Version = 1

var ErrUnsupportedVersion = errors.New("unsupported storage version")

type Storage interface {
	// Load decodes the payload stored under key into v. ok is false when nothing usable
	// is stored.
	Load(c context.Context, key string, v interface{}) (ok bool, err error)
	Save(c context.Context, key string, v interface{}) error
	Delete(c context.Context, key string) error
}

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

func Key(base string, sessionId string) string {
	return fmt.Sprintf("%s:%s", base, sessionId)
}

func encode(v interface{}) ([]byte, error) {
	state, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: Version, State: state})
}

func decode(data []byte, v interface{}) error {
	env := envelope{}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Version != Version {
		return fmt.Errorf("version=%d with error=%w", env.Version, ErrUnsupportedVersion)
	}
	return json.Unmarshal(env.State, v)
}
