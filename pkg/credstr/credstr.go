// Package credstr encodes and decodes the exported TruthLink session
// credential string. The canonical form is the literal prefix followed
// directly by standard Base64: TRUTH-MD:~<base64>. A second textual
// convention wraps the Base64 part in parentheses (TRUTH-MD:~(<base64>));
// Decode accepts both, Encode only ever produces the canonical form.
package credstr

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Prefix is the literal marker every exported credential string starts with.
const Prefix = "TRUTH-MD:~"

// Encode converts raw credential material into the exported session string.
func Encode(raw []byte) string {
	return Prefix + base64.StdEncoding.EncodeToString(raw)
}

// Decode parses an exported session string back into the raw credential
// material. Both the canonical form and the parenthesized display form are
// accepted as equivalent.
func Decode(s string) ([]byte, error) {
	if !strings.HasPrefix(s, Prefix) {
		return nil, fmt.Errorf("credstr: missing %q prefix", Prefix)
	}
	body := strings.TrimPrefix(s, Prefix)
	if strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")") {
		body = body[1 : len(body)-1]
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("credstr: invalid base64 payload: %w", err)
	}
	return raw, nil
}
