package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character sets used for generated identifiers and credentials.
const (
	AlphabetUpperDigits  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	AlphabetAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// RandString returns a string of length n with characters drawn uniformly
// from alphabet, using crypto/rand. These strings end up as live
// credentials and token seeds, so a statistical PRNG is not acceptable here.
func RandString(n int, alphabet string) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("negative length %d", n)
	}
	if len(alphabet) == 0 {
		return "", fmt.Errorf("empty alphabet")
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// RandIntRange returns a uniform random integer in [min, max].
func RandIntRange(min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range [%d, %d]", min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}
