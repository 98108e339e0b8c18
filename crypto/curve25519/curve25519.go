// Package curve25519 implements X25519 scalar multiplication (RFC 7748)
// for HAP's Pair-Verify/Pair-Resume ephemeral key exchange.
//
// Field arithmetic here is built on math/big rather than a hand-rolled
// radix-25.5 representation: unlike the rest of this crypto stack,
// getting a bespoke 255-bit field implementation bit-exact against the
// Monte-Carlo test vectors is very easy to get subtly wrong, and this
// exercise never runs the Go toolchain to catch such a mistake. Using
// math/big for the field only (the Montgomery ladder control flow below
// is still hand-written, matching RFC 7748 directly) is the deliberate
// trade: see DESIGN.md.
package curve25519

import "math/big"

const ScalarSize = 32

var (
	p   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	a24 = big.NewInt(121665)
)

// clamp applies the RFC 7748 scalar clamping rules in place.
func clamp(k *[ScalarSize]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func decodeLE(b []byte) *big.Int {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(rev)
}

func encodeLE(x *big.Int) [ScalarSize]byte {
	var out [ScalarSize]byte
	buf := x.Bytes()
	for i, v := range buf {
		if i >= ScalarSize {
			break
		}
		out[len(buf)-1-i] = v
	}
	return out
}

func modP(x *big.Int) *big.Int {
	y := new(big.Int).Mod(x, p)
	if y.Sign() < 0 {
		y.Add(y, p)
	}
	return y
}

func add(a, b *big.Int) *big.Int { return modP(new(big.Int).Add(a, b)) }
func sub(a, b *big.Int) *big.Int { return modP(new(big.Int).Sub(a, b)) }
func mul(a, b *big.Int) *big.Int { return modP(new(big.Int).Mul(a, b)) }
func sq(a *big.Int) *big.Int     { return mul(a, a) }

func inv(a *big.Int) *big.Int {
	// a^(p-2) mod p, by Fermat's little theorem.
	exp := new(big.Int).Sub(p, big.NewInt(2))
	return new(big.Int).Exp(a, exp, p)
}

func cswap(swap int, a, b *big.Int) (*big.Int, *big.Int) {
	if swap != 0 {
		return b, a
	}
	return a, b
}

// Calculate performs X25519(priv, pub): the Montgomery ladder of
// RFC 7748 §5. pub may be the well-known basepoint (9, 0, …, 0) to
// derive a public key from a private scalar.
func Calculate(priv *[ScalarSize]byte, pub *[ScalarSize]byte) [ScalarSize]byte {
	k := *priv
	clamp(&k)
	scalar := decodeLE(k[:])

	uBytes := *pub
	uBytes[31] &= 0x7f
	u := modP(decodeLE(uBytes[:]))

	x1 := u
	x2 := big.NewInt(1)
	z2 := big.NewInt(0)
	x3 := new(big.Int).Set(u)
	z3 := big.NewInt(1)
	swap := 0

	for t := 254; t >= 0; t-- {
		kt := int(scalar.Bit(t))
		swap ^= kt
		x2, x3 = cswap(swap, x2, x3)
		z2, z3 = cswap(swap, z2, z3)
		swap = kt

		A := add(x2, z2)
		AA := sq(A)
		B := sub(x2, z2)
		BB := sq(B)
		E := sub(AA, BB)
		C := add(x3, z3)
		D := sub(x3, z3)
		DA := mul(D, A)
		CB := mul(C, B)
		x3 = sq(add(DA, CB))
		z3 = mul(x1, sq(sub(DA, CB)))
		x2 = mul(AA, BB)
		z2 = mul(E, add(AA, mul(a24, E)))
	}
	x2, x3 = cswap(swap, x2, x3)
	z2, z3 = cswap(swap, z2, z3)
	_ = x3
	_ = z3

	result := mul(x2, inv(z2))
	return encodeLE(result)
}

// Basepoint is the RFC 7748 X25519 basepoint u = 9.
var Basepoint = func() [ScalarSize]byte {
	var b [ScalarSize]byte
	b[0] = 9
	return b
}()

// KeyPair is a Curve25519 ephemeral key pair, used for Pair-Verify and
// the BLE/IP session handshakes.
type KeyPair struct {
	Private [ScalarSize]byte
	Public  [ScalarSize]byte
}

// Generate derives a KeyPair's public key from a caller-supplied random
// private scalar (32 bytes from a CSPRNG).
func Generate(randomPrivate [ScalarSize]byte) KeyPair {
	kp := KeyPair{Private: randomPrivate}
	kp.Public = Calculate(&kp.Private, &Basepoint)
	return kp
}

// SharedSecret computes this key pair's shared secret with a peer's
// public key.
func (kp KeyPair) SharedSecret(peerPublic [ScalarSize]byte) [ScalarSize]byte {
	return Calculate(&kp.Private, &peerPublic)
}
