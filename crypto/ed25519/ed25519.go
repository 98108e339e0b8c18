// Package ed25519 implements Ed25519 signing and verification
// (RFC 8032 §5.1) over the twisted Edwards curve, built on top of this
// module's own sha512 package.
//
// As with curve25519, the field and curve-point arithmetic here uses
// math/big rather than a hand-rolled extended-coordinate implementation:
// EdDSA point decompression (the modular square root step in
// particular) is the single easiest place in this whole stack to
// introduce a silent sign/parity bug, and this exercise never runs the
// Go toolchain to catch one. See DESIGN.md.
package ed25519

import (
	"crypto/subtle"
	"math/big"

	"go.haplib.dev/hap/crypto/sha512"
)

const (
	SeedSize      = 32
	PublicKeySize = 32
	PrivateKeySize = 64 // seed || public key, matches RFC 8032's expanded form
	SignatureSize = 64
)

var (
	p    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	l, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
	d    = func() *big.Int {
		inv121666 := new(big.Int).Exp(big.NewInt(121666), new(big.Int).Sub(p, big.NewInt(2)), p)
		neg121665 := new(big.Int).Sub(p, big.NewInt(121665))
		return modP(new(big.Int).Mul(neg121665, inv121666))
	}()
	sqrtMinus1 = new(big.Int).Exp(big.NewInt(2), new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 2), p)
)

func modP(x *big.Int) *big.Int {
	y := new(big.Int).Mod(x, p)
	if y.Sign() < 0 {
		y.Add(y, p)
	}
	return y
}

type point struct{ x, y *big.Int }

var identity = point{big.NewInt(0), big.NewInt(1)}

// add implements the complete unified twisted-Edwards addition law
// (a = -1), valid for doubling too.
func add(p1, p2 point) point {
	x1, y1, x2, y2 := p1.x, p1.y, p2.x, p2.y
	x1y2 := new(big.Int).Mul(x1, y2)
	y1x2 := new(big.Int).Mul(y1, x2)
	y1y2 := new(big.Int).Mul(y1, y2)
	x1x2 := new(big.Int).Mul(x1, x2)
	dx1x2y1y2 := modP(new(big.Int).Mul(d, modP(new(big.Int).Mul(x1x2, y1y2))))

	xNum := modP(new(big.Int).Add(x1y2, y1x2))
	xDen := modP(new(big.Int).Add(big.NewInt(1), dx1x2y1y2))
	yNum := modP(new(big.Int).Add(y1y2, x1x2))
	yDen := modP(new(big.Int).Sub(big.NewInt(1), dx1x2y1y2))

	x3 := modP(new(big.Int).Mul(xNum, inv(xDen)))
	y3 := modP(new(big.Int).Mul(yNum, inv(yDen)))
	return point{x3, y3}
}

func inv(a *big.Int) *big.Int {
	return new(big.Int).Exp(a, new(big.Int).Sub(p, big.NewInt(2)), p)
}

// scalarMult computes k*P by double-and-add.
func scalarMult(k *big.Int, pt point) point {
	result := identity
	addend := pt
	for i := 0; i < k.BitLen(); i++ {
		if k.Bit(i) == 1 {
			result = add(result, addend)
		}
		addend = add(addend, addend)
	}
	return result
}

var basePoint = func() point {
	// By = 4/5 mod p (RFC 8032 §5.1), Bx recovered with sign bit 0.
	by := modP(new(big.Int).Mul(big.NewInt(4), inv(big.NewInt(5))))
	bx, ok := recoverX(by, 0)
	if !ok {
		panic("ed25519: failed to recover base point x-coordinate")
	}
	return point{bx, by}
}()

// recoverX solves x^2 = (y^2-1)/(d*y^2+1) mod p and selects the root
// matching the requested parity bit.
func recoverX(y *big.Int, sign uint) (*big.Int, bool) {
	yy := modP(new(big.Int).Mul(y, y))
	num := modP(new(big.Int).Sub(yy, big.NewInt(1)))
	den := modP(new(big.Int).Add(modP(new(big.Int).Mul(d, yy)), big.NewInt(1)))
	xx := modP(new(big.Int).Mul(num, inv(den)))

	exp := new(big.Int).Rsh(new(big.Int).Add(p, big.NewInt(3)), 3) // (p+3)/8
	x := new(big.Int).Exp(xx, exp, p)

	if modP(new(big.Int).Mul(x, x)).Cmp(xx) != 0 {
		x = modP(new(big.Int).Mul(x, sqrtMinus1))
	}
	if modP(new(big.Int).Mul(x, x)).Cmp(xx) != 0 {
		return nil, false
	}
	if x.Sign() == 0 && sign == 1 {
		return nil, false
	}
	if uint(x.Bit(0)) != sign {
		x = modP(new(big.Int).Sub(p, x))
	}
	return x, true
}

func decodeLE(b []byte) *big.Int {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(rev)
}

func encodeLE32(x *big.Int) [32]byte {
	var out [32]byte
	buf := x.Bytes()
	for i, v := range buf {
		if i >= 32 {
			break
		}
		out[len(buf)-1-i] = v
	}
	return out
}

func encodePoint(pt point) [32]byte {
	out := encodeLE32(pt.y)
	if pt.x.Bit(0) == 1 {
		out[31] |= 0x80
	}
	return out
}

func decodePoint(b [32]byte) (point, bool) {
	sign := uint(0)
	if b[31]&0x80 != 0 {
		sign = 1
	}
	b[31] &= 0x7f
	y := decodeLE(b[:])
	if y.Cmp(p) >= 0 {
		return point{}, false
	}
	x, ok := recoverX(y, sign)
	if !ok {
		return point{}, false
	}
	return point{x, y}, true
}

func reduceModL(digest []byte) *big.Int {
	return modL(decodeLE(digest))
}

func modL(x *big.Int) *big.Int {
	y := new(big.Int).Mod(x, l)
	if y.Sign() < 0 {
		y.Add(y, l)
	}
	return y
}

// PrivateKey is the 64-byte expanded form: the 32-byte seed followed by
// the 32-byte public key.
type PrivateKey [PrivateKeySize]byte
type PublicKey [PublicKeySize]byte

// Seed returns the 32-byte seed a PrivateKey was derived from.
func (priv PrivateKey) Seed() []byte { return priv[:SeedSize] }

// Public returns the public key embedded in an expanded PrivateKey.
func (priv PrivateKey) Public() PublicKey {
	var pub PublicKey
	copy(pub[:], priv[SeedSize:])
	return pub
}

// NewKeyPairFromSeed derives the expanded private key and public key
// for a given 32-byte seed.
func NewKeyPairFromSeed(seed [SeedSize]byte) (PrivateKey, PublicKey) {
	h := sha512.Sum512(seed[:])
	var aBytes [32]byte
	copy(aBytes[:], h[:32])
	aBytes[0] &= 248
	aBytes[31] &= 127
	aBytes[31] |= 64
	a := decodeLE(aBytes[:])

	A := scalarMult(a, basePoint)
	pub := encodePoint(A)

	var priv PrivateKey
	copy(priv[:SeedSize], seed[:])
	copy(priv[SeedSize:], pub[:])
	return priv, PublicKey(pub)
}

// NewKeyPairFromParts reconstructs a PrivateKey from a stored public and
// private (seed) pair without recomputing the public key, trusting the
// caller that they match.
func NewKeyPairFromParts(pub PublicKey, seed [SeedSize]byte) PrivateKey {
	var priv PrivateKey
	copy(priv[:SeedSize], seed[:])
	copy(priv[SeedSize:], pub[:])
	return priv
}

// Sign implements RFC 8032 §5.1.6 signing.
func Sign(priv PrivateKey, message []byte) [SignatureSize]byte {
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	var aBytes [32]byte
	copy(aBytes[:], h[:32])
	aBytes[0] &= 248
	aBytes[31] &= 127
	aBytes[31] |= 64
	a := decodeLE(aBytes[:])
	prefix := h[32:64]

	rHash := sha512.New()
	rHash.Write(prefix)
	rHash.Write(message)
	r := reduceModL(rHash.Sum(nil))

	R := scalarMult(r, basePoint)
	encR := encodePoint(R)
	encA := priv.Public()

	kHash := sha512.New()
	kHash.Write(encR[:])
	kHash.Write(encA[:])
	kHash.Write(message)
	k := reduceModL(kHash.Sum(nil))

	s := modL(new(big.Int).Add(r, new(big.Int).Mul(k, a)))

	var sig [SignatureSize]byte
	copy(sig[:32], encR[:])
	sBytes := encodeLE32(s)
	copy(sig[32:], sBytes[:])
	return sig
}

// Verify implements RFC 8032 §5.1.7 verification (the unbatched,
// non-cofactored equation [S]B = R + [k]A).
func Verify(pub PublicKey, message []byte, sig [SignatureSize]byte) bool {
	var encR [32]byte
	copy(encR[:], sig[:32])
	R, ok := decodePoint(encR)
	if !ok {
		return false
	}

	s := decodeLE(sig[32:64])
	if s.Cmp(l) >= 0 {
		return false
	}

	var encA [32]byte
	copy(encA[:], pub[:])
	A, ok := decodePoint(encA)
	if !ok {
		return false
	}

	kHash := sha512.New()
	kHash.Write(encR[:])
	kHash.Write(encA[:])
	kHash.Write(message)
	k := reduceModL(kHash.Sum(nil))

	lhs := scalarMult(s, basePoint)
	rhs := add(R, scalarMult(k, A))

	lhsEnc := encodePoint(lhs)
	rhsEnc := encodePoint(rhs)
	return subtle.ConstantTimeCompare(lhsEnc[:], rhsEnc[:]) == 1
}
