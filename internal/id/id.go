// Package id generates prefixed record identifiers.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes. An experienced wine keeps the id of the wine it came from,
// so it has no prefix of its own.
const (
	PrefixWine = "wine"
	PrefixUser = "user"
	PrefixSSE  = "sse"
)

// Generate creates a prefixed NanoID, e.g. "wine-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// VerificationCode returns a uniformly random six digit code, zero padded.
func VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
