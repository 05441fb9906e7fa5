package util

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"1709285400000", want},
		{"2024-03-01T09:30:00Z", want},
		{"2024-03-01T16:30:00+07:00", want},
		{"2024-03-01 09:30:00", want},
	}

	for _, tt := range cases {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("ParseTimestamp(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	var payload struct {
		Number Timestamp `json:"number"`
		Text   Timestamp `json:"text"`
		Null   Timestamp `json:"null"`
	}
	body := `{"number":1709285400000,"text":"2024-03-01T09:30:00.000Z","null":null}`
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !payload.Number.Equal(payload.Text.Time) {
		t.Fatalf("number=%v text=%v, want equal", payload.Number, payload.Text)
	}
	if !payload.Null.IsZero() {
		t.Fatalf("null timestamp = %v, want zero", payload.Null)
	}
}
