package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffle performs a cryptographically secure shuffle of the slice.
func Shuffle[T any](slice []T) error {
	n := len(slice)
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to generate random number: %w", err)
		}
		j := int(jBig.Int64())
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}

// Sample returns count elements drawn uniformly without replacement. When
// the slice has count elements or fewer, a copy of the whole slice is
// returned. The input is not modified.
func Sample[T any](slice []T, count int) ([]T, error) {
	pool := make([]T, len(slice))
	copy(pool, slice)
	if err := Shuffle(pool); err != nil {
		return nil, err
	}
	if count < 0 {
		count = 0
	}
	if count > len(pool) {
		count = len(pool)
	}
	return pool[:count], nil
}
