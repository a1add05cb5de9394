package dispatch

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// newCode generates the ride verification code: a fixed-length numeric
// string from a cryptographically strong source. Never regenerated for
// a ride; six digits by default, which keeps a brute-force guess
// within the pre-start window negligible.
func newCode(digits int) (string, error) {
	if digits < 4 {
		digits = 4
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
