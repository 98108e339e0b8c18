// Package aead implements the ChaCha20-Poly1305 AEAD construction
// (RFC 7539 §2.8) used for every secured HAP channel: Pair-Setup/Verify
// sub-TLV encryption, the BLE directional channel, and IP frame
// encryption. Direction (encrypt vs decrypt) is purely a matter of
// which buffer the caller treats as input vs output; this package does
// not track direction itself.
package aead

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"go.haplib.dev/hap/crypto/chacha20"
	"go.haplib.dev/hap/crypto/poly1305"
)

const TagSize = poly1305.TagSize

// Seal encrypts plaintext under key/nonce, authenticating aad, and
// returns ciphertext||tag.
func Seal(key *[chacha20.KeySize]byte, nonce *[chacha20.NonceSize]byte, plaintext, aad []byte) []byte {
	polyKeyBlock := chacha20.Block(key, nonce, 0)
	var polyKey [poly1305.KeySize]byte
	copy(polyKey[:], polyKeyBlock[:poly1305.KeySize])

	ciphertext := make([]byte, len(plaintext))
	chacha20.XOR(ciphertext, plaintext, key, nonce, 1)

	tag := computeTag(&polyKey, aad, ciphertext)

	out := make([]byte, 0, len(ciphertext)+TagSize)
	out = append(out, ciphertext...)
	out = append(out, tag[:]...)
	return out
}

// Open authenticates and decrypts ciphertextAndTag (ciphertext||tag)
// under key/nonce/aad. It returns an error and no plaintext if the tag
// does not match, comparing in constant time.
func Open(key *[chacha20.KeySize]byte, nonce *[chacha20.NonceSize]byte, ciphertextAndTag, aad []byte) ([]byte, error) {
	if len(ciphertextAndTag) < TagSize {
		return nil, fmt.Errorf("aead: ciphertext shorter than tag")
	}
	ciphertext := ciphertextAndTag[:len(ciphertextAndTag)-TagSize]
	wantTag := ciphertextAndTag[len(ciphertextAndTag)-TagSize:]

	polyKeyBlock := chacha20.Block(key, nonce, 0)
	var polyKey [poly1305.KeySize]byte
	copy(polyKey[:], polyKeyBlock[:poly1305.KeySize])

	gotTag := computeTag(&polyKey, aad, ciphertext)
	if subtle.ConstantTimeCompare(gotTag[:], wantTag) != 1 {
		return nil, fmt.Errorf("aead: authentication failed")
	}

	plaintext := make([]byte, len(ciphertext))
	chacha20.XOR(plaintext, ciphertext, key, nonce, 1)
	return plaintext, nil
}

// computeTag feeds AAD ∥ pad16 ∥ ciphertext ∥ pad16 ∥ le64(|AAD|) ∥
// le64(|C|) into Poly1305, per RFC 7539 §2.8.
func computeTag(polyKey *[poly1305.KeySize]byte, aad, ciphertext []byte) [poly1305.TagSize]byte {
	msg := make([]byte, 0, pad16len(len(aad))+pad16len(len(ciphertext))+16)
	msg = append(msg, aad...)
	msg = appendZeroPad(msg, len(aad))
	msg = append(msg, ciphertext...)
	msg = appendZeroPad(msg, len(ciphertext))

	var lenBuf [16]byte
	binary.LittleEndian.PutUint64(lenBuf[0:8], uint64(len(aad)))
	binary.LittleEndian.PutUint64(lenBuf[8:16], uint64(len(ciphertext)))
	msg = append(msg, lenBuf[:]...)

	return poly1305.Sum(msg, polyKey)
}

func pad16len(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

func appendZeroPad(b []byte, n int) []byte {
	if n%16 == 0 {
		return b
	}
	pad := 16 - n%16
	for i := 0; i < pad; i++ {
		b = append(b, 0)
	}
	return b
}

// SeqNonce builds the 4·0x00 ∥ le64(seq) nonce used for the BLE/IP
// secured channel framing.
func SeqNonce(seq uint64) [chacha20.NonceSize]byte {
	var n [chacha20.NonceSize]byte
	binary.LittleEndian.PutUint64(n[4:12], seq)
	return n
}

// PairingNonce builds the fixed pairing-message nonces of the form
// "\0\0\0\0<8-byte-ascii-tag>" used throughout Pair-Setup/Verify/Resume
// (e.g. "PS-Msg05", "PV-Msg02", "PR-Msg01").
func PairingNonce(tag string) [chacha20.NonceSize]byte {
	var n [chacha20.NonceSize]byte
	if len(tag) != 8 {
		panic("aead: pairing nonce tag must be 8 bytes")
	}
	copy(n[4:12], []byte(tag))
	return n
}
