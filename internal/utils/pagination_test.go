package utils

import (
	"math"
	"testing"
)

func TestTotalPages(t *testing.T) {
	cases := []struct{ total, per, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{15, 10, 2},
		{101, 100, 2},
		{5, 0, 0},
	}

	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.per); got != tc.want {
			t.Fatalf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.per, got, tc.want)
		}
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(2, 10); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := Offset(0, 10); got != 0 {
		t.Fatalf("got %d", got)
	}
	if got := Offset(922337203685477581, 100); got != math.MaxInt {
		t.Fatalf("overflowing page: got %d, want saturation", got)
	}
	if got := Offset(math.MaxInt, math.MaxInt); got != math.MaxInt {
		t.Fatalf("got %d", got)
	}
}

func TestParseOptionalInt(t *testing.T) {
	if n, ok := ParseOptionalInt("", 10); !ok || n != 10 {
		t.Fatalf("default: got %d %v", n, ok)
	}
	if n, ok := ParseOptionalInt(" 7 ", 10); !ok || n != 7 {
		t.Fatalf("trimmed: got %d %v", n, ok)
	}
	if _, ok := ParseOptionalInt("abc", 10); ok {
		t.Fatalf("expected failure for non-numeric input")
	}
}
