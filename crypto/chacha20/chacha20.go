// Package chacha20 implements the ChaCha20 stream cipher (RFC 7539): a
// 256-bit key, 96-bit nonce, 32-bit little-endian block counter, 20
// rounds (10 double-rounds).
package chacha20

import (
	"encoding/binary"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 12
	BlockSize = 64
)

var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

func rotl(x uint32, n uint) uint32 { return (x << n) | (x >> (32 - n)) }

func quarterRound(a, b, c, d *uint32) {
	*a += *b
	*d ^= *a
	*d = rotl(*d, 16)
	*c += *d
	*b ^= *c
	*b = rotl(*b, 12)
	*a += *b
	*d ^= *a
	*d = rotl(*d, 8)
	*c += *d
	*b ^= *c
	*b = rotl(*b, 7)
}

// block runs the ChaCha20 block function for (key, nonce, counter) and
// writes 64 bytes of keystream into out.
func block(out *[BlockSize]byte, key *[KeySize]byte, nonce *[NonceSize]byte, counter uint32) {
	var state [16]uint32
	state[0], state[1], state[2], state[3] = sigma[0], sigma[1], sigma[2], sigma[3]
	for i := 0; i < 8; i++ {
		state[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	state[12] = counter
	state[13] = binary.LittleEndian.Uint32(nonce[0:4])
	state[14] = binary.LittleEndian.Uint32(nonce[4:8])
	state[15] = binary.LittleEndian.Uint32(nonce[8:12])

	working := state
	for i := 0; i < 10; i++ {
		// odd round (columns)
		quarterRound(&working[0], &working[4], &working[8], &working[12])
		quarterRound(&working[1], &working[5], &working[9], &working[13])
		quarterRound(&working[2], &working[6], &working[10], &working[14])
		quarterRound(&working[3], &working[7], &working[11], &working[15])
		// even round (diagonals)
		quarterRound(&working[0], &working[5], &working[10], &working[15])
		quarterRound(&working[1], &working[6], &working[11], &working[12])
		quarterRound(&working[2], &working[7], &working[8], &working[13])
		quarterRound(&working[3], &working[4], &working[9], &working[14])
	}

	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], working[i]+state[i])
	}
}

// Block is the exported single-block form used by the AEAD to derive
// the Poly1305 one-time key (counter 0); the AEAD encrypts with XOR
// starting at counter 1.
func Block(key *[KeySize]byte, nonce *[NonceSize]byte, counter uint32) [BlockSize]byte {
	var out [BlockSize]byte
	block(&out, key, nonce, counter)
	return out
}

// XOR encrypts (or decrypts, since ChaCha20 is its own inverse) src into
// dst starting at the given initial block counter, byte by byte as the
// spec mandates. len(dst) must equal len(src).
func XOR(dst, src []byte, key *[KeySize]byte, nonce *[NonceSize]byte, counter uint32) error {
	if len(dst) != len(src) {
		return fmt.Errorf("chacha20: dst/src length mismatch")
	}
	var ks [BlockSize]byte
	for i := 0; i < len(src); i++ {
		if i%BlockSize == 0 {
			block(&ks, key, nonce, counter)
			counter++
		}
		dst[i] = src[i] ^ ks[i%BlockSize]
	}
	return nil
}
