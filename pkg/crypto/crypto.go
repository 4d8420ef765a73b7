package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	Digits = "0123456789"
	Base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RandomString draws length characters uniformly from alphabet using
// crypto/rand.
func RandomString(length int, alphabet string) (string, error) {
	if alphabet == "" {
		return "", fmt.Errorf("empty alphabet")
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}

	return string(out), nil
}

// MustRandomString panics if the system randomness source fails.
func MustRandomString(length int, alphabet string) string {
	s, err := RandomString(length, alphabet)
	if err != nil {
		panic(err)
	}
	return s
}
