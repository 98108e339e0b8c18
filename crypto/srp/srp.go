// Package srp implements SRP-6a over the HAP-mandated 3072-bit group
// (g = 5), built directly on the bignum engine. Three roles: Verifier
// (accessory-side password enrollment), Host (accessory-side
// Pair-Setup responder), and User (controller-side, exercised only by
// this package's own tests since HAP accessories never run the
// controller role).
package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"go.haplib.dev/hap/crypto/bignum"
	"go.haplib.dev/hap/crypto/sha512"
)

// N3072Hex is the HAP SRP group modulus: RFC 3526 Group 15, the
// 3072-bit MODP prime.
const N3072Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
	"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
	"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E208E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

const gConst = 5

var n = mustDecodeHexDigits(N3072Hex)

func mustDecodeHexDigits(hx string) []byte {
	out := make([]byte, len(hx)/2)
	for i := 0; i < len(out); i++ {
		hi := hexVal(hx[2*i])
		lo := hexVal(hx[2*i+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

// Engine is a package-level Barrett-reduction engine over the HAP
// 3072-bit group, shared by every role.
var engine = bignum.NewEngine(n)

// ErrBadProof is returned when a received client or server proof does
// not match the locally computed one.
var ErrBadProof = errors.New("srp: proof mismatch")

func h(parts ...[]byte) []byte {
	hh := sha512.New()
	for _, p := range parts {
		hh.Write(p)
	}
	return hh.Sum(nil)
}

func padG() []byte {
	out := make([]byte, engine.ByteLen())
	out[len(out)-1] = gConst
	return out
}

// k = H(N || pad(g)), the SRP-6a multiplier, constant for the group.
var kMultiplier = h(n, padG())

func digitsOf(b []byte) *bignum.Digits {
	d := engine.NewDigits()
	d.Copy(bignum.FromBytes(padLeft(b, engine.ByteLen())))
	return d
}

func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func gDigits() *bignum.Digits {
	return digitsOf(padG())
}

// powG computes g^exp mod N for an arbitrary-size big-endian exponent.
func powG(exp []byte) *bignum.Digits {
	e := digitsOf(exp)
	r := engine.NewDigits()
	engine.ExpMod(r, gDigits(), e)
	return r
}

// Verifier holds the enrollment data for an identity/password pair:
// the identity I, the 16-byte salt s, and the verifier v = g^x mod N
// (x itself is not kept).
type Verifier struct {
	Identity []byte
	Salt     [16]byte
	V        []byte // g^x mod N, big-endian, ByteLen(N) bytes
}

// NewVerifier derives x = H(s || H(I || ":" || p)) and v = g^x mod N
// for a fresh random salt.
func NewVerifier(identity, password []byte) (*Verifier, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	return NewVerifierWithSalt(identity, password, salt)
}

// NewVerifierWithSalt is NewVerifier with a caller-supplied salt, used
// by the fixed test vector and by config restore from persisted state.
func NewVerifierWithSalt(identity, password []byte, salt [16]byte) (*Verifier, error) {
	inner := h(identity, []byte(":"), password)
	x := h(salt[:], inner)
	v := powG(x)
	return &Verifier{Identity: append([]byte{}, identity...), Salt: salt, V: v.Bytes()}, nil
}

// Host is the accessory-side Pair-Setup responder. open/close are
// monotonic gates: at most one pairing attempt may be in progress at a
// time, tracked by the Host itself through the session id passed to Open.
type Host struct {
	verifier *Verifier
	b        *bignum.Digits // private ephemeral
	bPub     *bignum.Digits // B = k*v + g^b mod N

	sharedS *bignum.Digits // S, set after SetA
	K       []byte         // H(S)

	openSessionID uint64
	isOpen        bool
}

// NewHost constructs a Host bound to a Verifier, drawing a fresh
// 32-byte private ephemeral b.
func NewHost(v *Verifier) (*Host, error) {
	var bBytes [32]byte
	if _, err := rand.Read(bBytes[:]); err != nil {
		return nil, err
	}
	return newHostWithB(v, bBytes[:])
}

func newHostWithB(v *Verifier, bBytes []byte) (*Host, error) {
	host := &Host{verifier: v}
	host.b = digitsOf(bBytes)

	// B = (k*v + g^b) mod N
	vDigits := digitsOf(v.V)
	kv := engine.NewDigits()
	engine.MulMod(kv, digitsOf(kMultiplier), vDigits)

	gb := engine.NewDigits()
	engine.ExpMod(gb, gDigits(), host.b)

	bPub := engine.NewDigits()
	engine.AddMod(bPub, kv, gb)
	host.bPub = bPub
	return host, nil
}

// Open gates a single in-flight pairing attempt by session id; it
// returns false if a different session already holds the Host.
func (host *Host) Open(sessionID uint64) bool {
	if host.isOpen && host.openSessionID != sessionID {
		return false
	}
	host.isOpen = true
	host.openSessionID = sessionID
	return true
}

// Close releases the Host so a new session may Open it.
func (host *Host) Close() { host.isOpen = false }

// PublicKey returns B, big-endian, ByteLen(N) bytes.
func (host *Host) PublicKey() []byte { return host.bPub.Bytes() }

// Salt returns the Verifier's 16-byte salt.
func (host *Host) Salt() [16]byte { return host.verifier.Salt }

// SetA consumes the controller's public ephemeral A (384 bytes),
// computing u = H(A || B), S = (A * v^u)^b mod N, and K = H(S).
func (host *Host) SetA(a []byte) error {
	aDigits := digitsOf(a)
	if isZeroMod(aDigits) {
		return errors.New("srp: A mod N must not be zero")
	}

	u := h(padLeft(a, engine.ByteLen()), host.bPub.Bytes())
	uDigits := digitsOf(u)

	vu := engine.NewDigits()
	engine.ExpMod(vu, digitsOf(host.verifier.V), uDigits)

	avu := engine.NewDigits()
	engine.MulMod(avu, aDigits, vu)

	s := engine.NewDigits()
	engine.ExpMod(s, avu, host.b)

	host.sharedS = s
	host.K = h(s.Bytes())
	return nil
}

func isZeroMod(d *bignum.Digits) bool {
	zero := engine.NewDigits()
	return d.Cmp(zero) == 0
}

// SessionKey returns K = H(S), 64 bytes, the SRP premaster used to
// derive the Pair-Setup encryption key via HKDF.
func (host *Host) SessionKey() []byte { return host.K }

// proof builds the M and V proof values per RFC 5054's SRP-6a scheme:
// M = H(H(N) xor H(g) || H(I) || s || A || B || K)
// V = H(A || M || K)
func (host *Host) proof(aPub []byte) (m, v []byte) {
	hN := h(n)
	hG := h(padG())
	hashXor := make([]byte, len(hN))
	for i := range hashXor {
		hashXor[i] = hN[i] ^ hG[i]
	}
	hI := h(host.verifier.Identity)

	m = h(hashXor, hI, host.verifier.Salt[:], aPub, host.bPub.Bytes(), host.K)
	v = h(aPub, m, host.K)
	return m, v
}

// VerifyClientProof checks the controller's proof M against the one
// this Host computes, returning the accessory's own proof V on
// success.
func (host *Host) VerifyClientProof(aPub, clientM []byte) (serverV []byte, err error) {
	m, v := host.proof(aPub)
	if subtle.ConstantTimeCompare(m, clientM) != 1 {
		return nil, ErrBadProof
	}
	return v, nil
}

// User is the controller-side SRP-6a computation, the mirror image of
// Host. HAP accessories never instantiate this role in production; it
// exists so the package's own tests can drive both sides of a
// handshake to a shared K.
type User struct {
	identity, password []byte
	a                   *bignum.Digits
	aPub                *bignum.Digits
}

// NewUser draws a fresh 32-byte private ephemeral a and computes
// A = g^a mod N.
func NewUser(identity, password []byte) (*User, error) {
	var aBytes [32]byte
	if _, err := rand.Read(aBytes[:]); err != nil {
		return nil, err
	}
	return newUserWithA(identity, password, aBytes[:]), nil
}

func newUserWithA(identity, password, aBytes []byte) *User {
	u := &User{identity: identity, password: password}
	u.a = digitsOf(aBytes)
	u.aPub = engine.NewDigits()
	engine.ExpMod(u.aPub, gDigits(), u.a)
	return u
}

// PublicKey returns A, big-endian, ByteLen(N) bytes.
func (u *User) PublicKey() []byte { return u.aPub.Bytes() }

// ComputeSession consumes the host's salt and public key B, deriving
// the shared session key K and the user's proof M, mirroring Host.SetA
// plus Host.proof on the other side of the exchange.
func (u *User) ComputeSession(salt [16]byte, bPub []byte) (k, m []byte, err error) {
	bDigits := digitsOf(bPub)
	if isZeroMod(bDigits) {
		return nil, nil, errors.New("srp: B mod N must not be zero")
	}

	uExp := h(padLeft(u.aPub.Bytes(), engine.ByteLen()), padLeft(bPub, engine.ByteLen()))
	uDigits := digitsOf(uExp)

	inner := h(u.identity, []byte(":"), u.password)
	x := h(salt[:], inner)
	xDigits := digitsOf(x)

	gx := engine.NewDigits()
	engine.ExpMod(gx, gDigits(), xDigits)
	kgx := engine.NewDigits()
	engine.MulMod(kgx, digitsOf(kMultiplier), gx)

	base := engine.NewDigits()
	engine.Mod(base, subtractDigits(bDigits, kgx))

	uxExpN := engine.NewDigits()
	engine.MulMod(uxExpN, uDigits, xDigits)
	exponent := engine.NewDigits()
	engine.AddMod(exponent, u.a, uxExpN)

	s := engine.NewDigits()
	engine.ExpMod(s, base, exponent)

	k = h(s.Bytes())

	hN := h(n)
	hG := h(padG())
	hashXor := make([]byte, len(hN))
	for i := range hashXor {
		hashXor[i] = hN[i] ^ hG[i]
	}
	hI := h(u.identity)
	m = h(hashXor, hI, salt[:], u.aPub.Bytes(), padLeft(bPub, engine.ByteLen()), k)
	return k, m, nil
}

// subtractDigits computes a - b, adding N first when b > a so the
// intermediate stays non-negative; the +N case can briefly need one
// more bit than N itself, so the scratch value is over-capacity and
// only the final Engine.Mod call (whose destination is capacity
//-correct) produces a properly sized result.
func subtractDigits(a, b *bignum.Digits) *bignum.Digits {
	scratch := bignum.NewDigits(engine.ByteLen() + 1)
	if a.Cmp(b) >= 0 {
		scratch.Sub(a, b)
		return scratch
	}
	nDigits := engine.N()
	sum := bignum.NewDigits(engine.ByteLen() + 1)
	sum.Add(a, nDigits)
	scratch.Sub(sum, b)
	return scratch
}
