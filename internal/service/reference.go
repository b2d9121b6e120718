package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referencePrefix = "MR-"

// ReferenceGenerator produces client-facing reference numbers.
type ReferenceGenerator func(now time.Time) (string, error)

// NewReference returns "MR-" followed by the UTC date as YYMMDD and four random
// digits, e.g. MR-2506014821. Uniqueness is enforced by the store; callers
// retry on collision.
func NewReference(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%04d", referencePrefix, now.UTC().Format("060102"), n.Int64()), nil
}
