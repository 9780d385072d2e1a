package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_KeepsSubSecondPrecision(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2024-01-01T09:30:00.123456Z"`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `"2024-01-01T09:30:00.123456Z"` {
		t.Errorf("expected fractional seconds preserved, got %s", out)
	}
}

func TestTimestamp_PlainDate(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2024-01-08"`), &ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts.Time)
	}
}
