package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 10, Max: 100}
	tests := []struct {
		in   int32
		want int
	}{
		{in: 0, want: 10},
		{in: -5, want: 10},
		{in: 25, want: 25},
		{in: 500, want: 100},
	}
	for _, tc := range tests {
		if got := ClampPageSize(tc.in, cfg); got != tc.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize with empty config = %d, want 1", got)
	}
}

func TestCursorTokenRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ID: "abc"}
	got, ok, err := DecodeCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok {
		t.Fatal("expected cursor to be present")
	}
	if !got.CreatedAt.Equal(cursor.CreatedAt) || got.ID != cursor.ID {
		t.Fatalf("cursor = %+v, want %+v", got, cursor)
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	_, ok, err := DecodeCursor("  ")
	if err != nil || ok {
		t.Fatalf("DecodeCursor(empty) = ok %v err %v, want false nil", ok, err)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, token := range []string{"!!!", "bm9waXBl", "eHx5"} {
		if _, _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("DecodeCursor(%q) err = %v, want ErrInvalidPageToken", token, err)
		}
	}
}
