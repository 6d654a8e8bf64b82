package ipc

import (
	"encoding/json"
	"testing"
)

func TestNewEnvelopeSetsControlFlags(t *testing.T) {
	env, err := NewEnvelope([]byte(`{"launch_site":"X","is_guidance":"stale"}`), true, false)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(env, &got); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if got[FieldIsGuidance] != true {
		t.Fatalf("is_guidance = %v, want true", got[FieldIsGuidance])
	}
	if got[FieldIncludeMetadata] != false {
		t.Fatalf("include_metadata = %v, want false", got[FieldIncludeMetadata])
	}
	if got["launch_site"] != "X" {
		t.Fatalf("launch_site = %v, want X", got["launch_site"])
	}
}

func TestNewEnvelopeRejectsInvalidJSON(t *testing.T) {
	if _, err := NewEnvelope([]byte(`{"launch_site":`), false, false); err == nil {
		t.Fatal("NewEnvelope() error = nil, want non-nil")
	}
}

func TestDecodeError(t *testing.T) {
	resp := EncodeError(CodeOutOfRange, "dataset ends at 2026-10-25")
	e, ok := DecodeError(resp)
	if !ok {
		t.Fatalf("DecodeError(%s) ok = false, want true", resp)
	}
	if e.Code != CodeOutOfRange || e.Message != "dataset ends at 2026-10-25" {
		t.Fatalf("DecodeError() = %+v", e)
	}

	for _, body := range []string{
		`[{"altitude": 3}]`,
		`{"metadata": {}, "prediction": []}`,
		`{"error": "plain string"}`,
	} {
		if _, ok := DecodeError([]byte(body)); ok {
			t.Fatalf("DecodeError(%s) ok = true, want false", body)
		}
	}
}
