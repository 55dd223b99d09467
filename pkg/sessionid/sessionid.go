// Package sessionid generates the opaque per-session identifiers handed to
// API callers. The format is a fixed prefix plus fresh random hex, unique
// for the lifetime of the process.
package sessionid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

// Prefix identifies TruthLink session ids.
const Prefix = "truth_"

const randBytes = 16

var idPattern = regexp.MustCompile(`^truth_[0-9a-f]+$`)

// New returns a fresh session identifier.
func New() string {
	buf := make([]byte, randBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return Prefix + hex.EncodeToString(buf)
}

// Valid reports whether s looks like a TruthLink session identifier.
func Valid(s string) bool {
	return idPattern.MatchString(s)
}
