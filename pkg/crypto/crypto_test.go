package crypto

import (
	"strings"
	"testing"
)

func TestRandomString(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		alphabet string
	}{
		{"digits", 6, Digits},
		{"base36", 13, Base36},
		{"empty length", 0, Base36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := RandomString(tt.length, tt.alphabet)
			if err != nil {
				t.Fatalf("RandomString() error = %v", err)
			}
			if len(s) != tt.length {
				t.Errorf("RandomString() length = %d, want %d", len(s), tt.length)
			}
			for _, c := range s {
				if !strings.ContainsRune(tt.alphabet, c) {
					t.Errorf("RandomString() contains %q outside alphabet", c)
				}
			}
		})
	}
}

func TestRandomStringEmptyAlphabet(t *testing.T) {
	if _, err := RandomString(4, ""); err == nil {
		t.Error("RandomString() should fail with an empty alphabet")
	}
}

func TestRandomStringVaries(t *testing.T) {
	a := MustRandomString(13, Base36)
	b := MustRandomString(13, Base36)
	if a == b {
		t.Log("Warning: two consecutive strings are the same (unlikely but possible)")
	}
}
