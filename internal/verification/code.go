package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeLength is the fixed number of digits in a verification code.
const codeLength = 6

// generateCode produces a random zero-padded numeric code.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}
