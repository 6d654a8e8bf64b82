package bridge

import (
	"errors"
	"fmt"

	"github.com/lydakis/trajbridge/internal/engine"
	"github.com/lydakis/trajbridge/internal/ipc"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformed reports a request envelope that cannot be decoded or whose
// control flags are missing or not boolean.
var ErrMalformed = errors.New("malformed request")

// Envelope is a decoded request: the two control flags plus the payload
// destined for the engine.
type Envelope struct {
	IsGuidance      bool
	IncludeMetadata bool
	Payload         engine.Payload
}

// ParseEnvelope validates msg as a JSON object, reads both control flags,
// and strips them. All other bytes of the object are left untouched. A
// control key that appears more than once takes its last value and every
// copy is removed.
func ParseEnvelope(msg []byte) (*Envelope, error) {
	if !gjson.ValidBytes(msg) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(msg)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: request must be a JSON object", ErrMalformed)
	}

	isGuidance, err := boolField(root, ipc.FieldIsGuidance)
	if err != nil {
		return nil, err
	}
	includeMetadata, err := boolField(root, ipc.FieldIncludeMetadata)
	if err != nil {
		return nil, err
	}

	payload := msg
	for _, field := range []string{ipc.FieldIsGuidance, ipc.FieldIncludeMetadata} {
		payload, err = deleteAll(payload, field)
		if err != nil {
			return nil, err
		}
	}

	return &Envelope{
		IsGuidance:      isGuidance,
		IncludeMetadata: includeMetadata,
		Payload:         engine.Payload(payload),
	}, nil
}

// lastValue returns the last top-level member named name.
func lastValue(root gjson.Result, name string) gjson.Result {
	var found gjson.Result
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			found = value
		}
		return true
	})
	return found
}

// deleteAll removes every top-level copy of field. sjson deletes one
// match per call.
func deleteAll(payload []byte, field string) ([]byte, error) {
	for gjson.GetBytes(payload, field).Exists() {
		next, err := sjson.DeleteBytes(payload, field)
		if err != nil {
			return nil, fmt.Errorf("%w: removing %s: %v", ErrMalformed, field, err)
		}
		if len(next) == len(payload) {
			return nil, fmt.Errorf("%w: removing %s: no progress", ErrMalformed, field)
		}
		payload = next
	}
	return payload, nil
}

func boolField(root gjson.Result, name string) (bool, error) {
	v := lastValue(root, name)
	if !v.Exists() {
		return false, fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}
	if !v.IsBool() {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrMalformed, name)
	}
	return v.Bool(), nil
}
