// Package hkdf512 implements the extract-then-expand HKDF construction
// (RFC 5869) over HMAC-SHA-512, restricted to a single-iteration expand
// (L <= 64), the only case HAP key derivation ever needs.
package hkdf512

import (
	"fmt"

	"go.haplib.dev/hap/crypto/hmac512"
	"go.haplib.dev/hap/crypto/sha512"
)

// Extract computes PRK = HMAC-SHA-512(salt, ikm).
func Extract(salt, ikm []byte) [sha512.Size]byte {
	return hmac512.Sum(salt, ikm)
}

// Expand computes OKM = HMAC-SHA-512(prk, info || 0x01)[:l]. The spec
// restricts HAP's usage to l <= HashLen, so only T(1) is ever needed.
func Expand(prk, info []byte, l int) ([]byte, error) {
	if l > sha512.Size {
		return nil, fmt.Errorf("hkdf512: requested length %d exceeds single-iteration limit %d", l, sha512.Size)
	}
	t1 := hmac512.Sum(prk, append(append([]byte{}, info...), 0x01))
	return append([]byte{}, t1[:l]...), nil
}

// Derive runs Extract then Expand in one call, the shape every HAP key
// schedule uses: SessKey = HKDF(ikm, salt, info).
func Derive(ikm []byte, salt, info string, l int) ([]byte, error) {
	prk := Extract([]byte(salt), ikm)
	return Expand(prk[:], []byte(info), l)
}
