package types

import (
	"encoding/json"
	"testing"
)

func TestFlexUint64UnmarshalNumber(t *testing.T) {
	var f FlexUint64
	if err := json.Unmarshal([]byte(`42`), &f); err != nil {
		t.Fatalf("Unmarshal number failed: %v", err)
	}
	if f.Uint64() != 42 {
		t.Errorf("Expected 42, got %d", f.Uint64())
	}
}

func TestFlexUint64UnmarshalString(t *testing.T) {
	var f FlexUint64
	if err := json.Unmarshal([]byte(`"42"`), &f); err != nil {
		t.Fatalf("Unmarshal string failed: %v", err)
	}
	if f.Uint64() != 42 {
		t.Errorf("Expected 42, got %d", f.Uint64())
	}
}

func TestFlexUint64UnmarshalInvalid(t *testing.T) {
	var f FlexUint64
	if err := json.Unmarshal([]byte(`"not-a-number"`), &f); err == nil {
		t.Error("Expected an error for a non-numeric string")
	}
	if err := json.Unmarshal([]byte(`true`), &f); err == nil {
		t.Error("Expected an error for a boolean")
	}
}

func TestFlexListUnmarshalArray(t *testing.T) {
	var f FlexList[string]
	if err := json.Unmarshal([]byte(`["a","b"]`), &f); err != nil {
		t.Fatalf("Unmarshal array failed: %v", err)
	}
	if len(f.Slice()) != 2 || f[0] != "a" || f[1] != "b" {
		t.Errorf("Unexpected slice: %v", f)
	}
}

func TestFlexListUnmarshalSingle(t *testing.T) {
	var f FlexList[string]
	if err := json.Unmarshal([]byte(`"only"`), &f); err != nil {
		t.Fatalf("Unmarshal single item failed: %v", err)
	}
	if len(f) != 1 || f[0] != "only" {
		t.Errorf("Expected a one-element slice, got %v", f)
	}
}

func TestFlexListUnmarshalNull(t *testing.T) {
	var f FlexList[string]
	if err := json.Unmarshal([]byte(`null`), &f); err != nil {
		t.Fatalf("Unmarshal null failed: %v", err)
	}
	if len(f) != 0 {
		t.Errorf("Expected an empty slice for null, got %v", f)
	}
}
