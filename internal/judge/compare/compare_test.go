package compare

import "testing"

func TestStandard(t *testing.T) {
	cases := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"identical", "1 2 3", "1 2 3", true},
		{"trailing newline", "42\n", "42", true},
		{"trailing spaces per line", "a  \nb\t\n", "a\nb", true},
		{"trailing blank lines", "a\nb\n\n\n", "a\nb", true},
		{"leading space differs", " a", "a", false},
		{"interior space differs", "1  2", "1 2", false},
		{"different values", "3", "4", false},
		{"empty vs whitespace", "", "  \n \n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Standard(tc.expected, tc.actual); got != tc.want {
				t.Fatalf("Standard(%q, %q) = %v, want %v", tc.expected, tc.actual, got, tc.want)
			}
		})
	}
}

func TestStandardNoiseInvariance(t *testing.T) {
	// compare(a, b) must equal compare(a+"\n\n  ", b+"  \n").
	pairs := [][2]string{
		{"1 2 3", "1 2 3"},
		{"hello", "world"},
		{"a\nb", "a\nb"},
		{"", ""},
	}
	for _, p := range pairs {
		base := Standard(p[0], p[1])
		noisy := Standard(p[0]+"\n\n  ", p[1]+"  \n")
		if base != noisy {
			t.Fatalf("noise changed verdict for %q vs %q: %v != %v", p[0], p[1], base, noisy)
		}
	}
}

func TestStrict(t *testing.T) {
	cases := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"identical", "abc", "abc", true},
		{"one trailing newline stripped", "abc\n", "abc", true},
		{"both trailing newlines", "abc\n", "abc\n", true},
		{"two trailing newlines differ", "abc\n\n", "abc", false},
		{"trailing space differs", "abc ", "abc", false},
		{"interior whitespace differs", "a b", "a  b", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Strict(tc.expected, tc.actual); got != tc.want {
				t.Fatalf("Strict(%q, %q) = %v, want %v", tc.expected, tc.actual, got, tc.want)
			}
		})
	}
}
