package main

import (
	"reflect"
	"testing"
)

func TestNewLines(t *testing.T) {
	cases := []struct {
		name     string
		window   []string
		lastSeen string
		want     []string
	}{
		{
			name:   "first poll prints everything",
			window: []string{"a", "b"},
			want:   []string{"a", "b"},
		},
		{
			name:     "overlap prints only the suffix",
			window:   []string{"b", "c", "d"},
			lastSeen: "b",
			want:     []string{"c", "d"},
		},
		{
			name:     "last seen at window end prints nothing",
			window:   []string{"a", "b"},
			lastSeen: "b",
			want:     []string{},
		},
		{
			name:     "repeated line matches the newest occurrence",
			window:   []string{"x", "step", "x"},
			lastSeen: "x",
			want:     []string{},
		},
		{
			name:     "window scrolled past prints the whole window",
			window:   []string{"f", "g", "h"},
			lastSeen: "a",
			want:     []string{"f", "g", "h"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := newLines(tc.window, tc.lastSeen)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("newLines(%v, %q) = %v, want %v", tc.window, tc.lastSeen, got, tc.want)
			}
		})
	}
}
