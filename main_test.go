package main

import (
	"math"
	"testing"
)

func TestParseMaxPages(t *testing.T) {

	cases := []struct {
		in       uint64
		expected uint32
		ok       bool
	}{
		{100, 100, true},
		{1, 1, true},
		{math.MaxUint32, math.MaxUint32, true},
		{0, 0, false},
		{math.MaxUint32 + 1, 0, false},
		{1 << 40, 0, false},
	}

	for _, c := range cases {
		got, err := parseMaxPages(c.in)
		if (err == nil) != c.ok {
			t.Errorf("parseMaxPages(%d): unexpected error state %v", c.in, err)
			continue
		}
		if got != c.expected {
			t.Errorf("parseMaxPages(%d): Expected %d but got %d", c.in, c.expected, got)
		}
	}
}
