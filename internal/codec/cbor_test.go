package codec

import (
	"bytes"
	"testing"
	"time"

	"filestore/internal/model"
)

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]int{"b": 2, "a": 1, "c": 3}

	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(v)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Marshal() output differs between calls")
		}
	}
}

func TestRoundTrip_FileKeepsTimestampPrecision(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 123456789, time.UTC)
	in := []*model.File{{
		ID:           "f1",
		UserID:       "u1",
		Name:         "readme.txt",
		Path:         "/docs/readme.txt",
		Size:         50,
		Downloadable: true,
		CreatedAt:    ts,
		ModifiedAt:   ts.Add(time.Minute),
	}}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out []*model.File
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if !out[0].CreatedAt.Equal(ts) {
		t.Errorf("CreatedAt = %v, want %v", out[0].CreatedAt, ts)
	}
	if !out[0].ModifiedAt.Equal(in[0].ModifiedAt) {
		t.Errorf("ModifiedAt = %v, want %v", out[0].ModifiedAt, in[0].ModifiedAt)
	}
	if out[0].Path != "/docs/readme.txt" || out[0].Size != 50 || !out[0].Downloadable {
		t.Errorf("decoded file = %+v", out[0])
	}
}

func TestUnmarshal_RejectsGarbage(t *testing.T) {
	var out model.File
	if err := Unmarshal([]byte{0xff, 0x00}, &out); err == nil {
		t.Error("Unmarshal() expected error for malformed input")
	}
}
