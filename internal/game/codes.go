package game

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const joinCodeDigits = 6

// generateJoinCode returns a short numeric PIN. Uniqueness among active
// sessions is enforced by the session store at creation time; the service
// retries on collision.
func generateJoinCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < joinCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	return fmt.Sprintf("%0*d", joinCodeDigits, n), nil
}
