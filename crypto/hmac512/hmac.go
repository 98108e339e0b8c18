// Package hmac512 implements HMAC-SHA-512 (RFC 2104), built directly on
// the from-scratch sha512 package rather than crypto/hmac so the whole
// HAP crypto chain shares one hash implementation.
package hmac512

import "go.haplib.dev/hap/crypto/sha512"

const blockSize = sha512.BlockSize

// Sum computes HMAC-SHA-512(key, message). Keys longer than the block
// size are hashed down first, per RFC 2104.
func Sum(key, message []byte) [sha512.Size]byte {
	if len(key) > blockSize {
		digest := sha512.Sum512(key)
		key = digest[:]
	}

	var ipad, opad [blockSize]byte
	copy(ipad[:], key)
	copy(opad[:], key)
	for i := 0; i < blockSize; i++ {
		ipad[i] ^= 0x36
		opad[i] ^= 0x5c
	}

	inner := sha512.New()
	inner.Write(ipad[:])
	inner.Write(message)
	innerDigest := inner.Sum(nil)

	outer := sha512.New()
	outer.Write(opad[:])
	outer.Write(innerDigest)
	var out [sha512.Size]byte
	copy(out[:], outer.Sum(nil))
	return out
}
