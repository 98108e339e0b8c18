// Package poly1305 implements the Poly1305 one-time authenticator
// (RFC 7539 §2.5) directly over a 26-bit-limb 130-bit accumulator,
// rather than using crypto/poly1305, so the AEAD built on top shares no
// code with the standard library implementation.
package poly1305

const (
	KeySize = 32
	TagSize = 16

	limbMask = 0x3ffffff
)

// Sum computes the Poly1305 tag for msg under the given 32-byte
// one-time key, consuming msg incrementally in 16-byte blocks through a
// 16-byte staging buffer.
func Sum(msg []byte, key *[KeySize]byte) [TagSize]byte {
	var r [5]uint32
	r[0] = le32(key[0:4]) & 0x3ffffff
	r[1] = (le32(key[3:7]) >> 2) & 0x3ffff03
	r[2] = (le32(key[6:10]) >> 4) & 0x3ffc0ff
	r[3] = (le32(key[9:13]) >> 6) & 0x3f03fff
	r[4] = (le32(key[12:16]) >> 8) & 0x00fffff

	var pad [4]uint32
	pad[0] = le32(key[16:20])
	pad[1] = le32(key[20:24])
	pad[2] = le32(key[24:28])
	pad[3] = le32(key[28:32])

	var h [5]uint32

	process := func(block []byte, hibit uint32) {
		var m [5]uint32
		m[0] = le32(block[0:4]) & limbMask
		m[1] = (le32(block[3:7]) >> 2) & limbMask
		m[2] = (le32(block[6:10]) >> 4) & limbMask
		m[3] = (le32(block[9:13]) >> 6) & limbMask
		m[4] = (le32(block[12:16]) >> 8) | hibit

		for i := 0; i < 5; i++ {
			h[i] += m[i]
		}
		h = mulReduce(h, r)
	}

	var buf [16]byte
	n := 0
	for len(msg) > 0 {
		take := 16 - n
		if take > len(msg) {
			take = len(msg)
		}
		copy(buf[n:n+take], msg[:take])
		n += take
		msg = msg[take:]
		if n == 16 {
			process(buf[:], 1<<24)
			n = 0
		}
	}
	if n > 0 {
		for i := n; i < 16; i++ {
			buf[i] = 0
		}
		buf[n] = 0x01
		for i := n + 1; i < 16; i++ {
			buf[i] = 0
		}
		process(buf[:], 0)
	}

	h = fullyReduce(h)

	f0 := uint64(h[0]) | uint64(h[1])<<26
	f1 := (uint64(h[1])>>6)&0xffffffff | uint64(h[2])<<20
	f2 := (uint64(h[2])>>12)&0xffffffff | uint64(h[3])<<14
	f3 := (uint64(h[3])>>18)&0xffffffff | uint64(h[4])<<8

	w := [4]uint32{uint32(f0), uint32(f1), uint32(f2), uint32(f3)}

	carry := uint64(0)
	for i := 0; i < 4; i++ {
		sum := uint64(w[i]) + uint64(pad[i]) + carry
		w[i] = uint32(sum)
		carry = sum >> 32
	}

	var tag [TagSize]byte
	for i := 0; i < 4; i++ {
		tag[i*4+0] = byte(w[i])
		tag[i*4+1] = byte(w[i] >> 8)
		tag[i*4+2] = byte(w[i] >> 16)
		tag[i*4+3] = byte(w[i] >> 24)
	}
	return tag
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// mulReduce computes (h + r-weighted carries) ≡ h*r mod (2^130 - 5)
// using schoolbook multiplication over the five 26-bit limbs.
func mulReduce(h, r [5]uint32) [5]uint32 {
	r0, r1, r2, r3, r4 := uint64(r[0]), uint64(r[1]), uint64(r[2]), uint64(r[3]), uint64(r[4])
	s1, s2, s3, s4 := r1*5, r2*5, r3*5, r4*5

	h0, h1, h2, h3, h4 := uint64(h[0]), uint64(h[1]), uint64(h[2]), uint64(h[3]), uint64(h[4])

	d0 := h0*r0 + h1*s4 + h2*s3 + h3*s2 + h4*s1
	d1 := h0*r1 + h1*r0 + h2*s4 + h3*s3 + h4*s2
	d2 := h0*r2 + h1*r1 + h2*r0 + h3*s4 + h4*s3
	d3 := h0*r3 + h1*r2 + h2*r1 + h3*r0 + h4*s4
	d4 := h0*r4 + h1*r3 + h2*r2 + h3*r1 + h4*r0

	c := d0 >> 26
	o0 := d0 & limbMask
	d1 += c
	c = d1 >> 26
	o1 := d1 & limbMask
	d2 += c
	c = d2 >> 26
	o2 := d2 & limbMask
	d3 += c
	c = d3 >> 26
	o3 := d3 & limbMask
	d4 += c
	c = d4 >> 26
	o4 := d4 & limbMask
	o0 += c * 5
	c = o0 >> 26
	o0 &= limbMask
	o1 += c

	return [5]uint32{uint32(o0), uint32(o1), uint32(o2), uint32(o3), uint32(o4)}
}

// fullyReduce finishes carry propagation and conditionally subtracts p
// = 2^130-5 so the limbs hold the unique representative below p.
func fullyReduce(h [5]uint32) [5]uint32 {
	h0, h1, h2, h3, h4 := h[0], h[1], h[2], h[3], h[4]

	c := h1 >> 26
	h1 &= limbMask
	h2 += c
	c = h2 >> 26
	h2 &= limbMask
	h3 += c
	c = h3 >> 26
	h3 &= limbMask
	h4 += c
	c = h4 >> 26
	h4 &= limbMask
	h0 += c * 5
	c = h0 >> 26
	h0 &= limbMask
	h1 += c

	g0 := h0 + 5
	c = g0 >> 26
	g0 &= limbMask
	g1 := h1 + c
	c = g1 >> 26
	g1 &= limbMask
	g2 := h2 + c
	c = g2 >> 26
	g2 &= limbMask
	g3 := h3 + c
	c = g3 >> 26
	g3 &= limbMask
	g4 := h4 + c - (1 << 26)

	// b is all-ones when h >= p (select g), all-zero when h < p.
	b := (g4 >> 31) - 1
	nb := ^b

	return [5]uint32{
		(h0 & nb) | (g0 & b),
		(h1 & nb) | (g1 & b),
		(h2 & nb) | (g2 & b),
		(h3 & nb) | (g3 & b),
		(h4 & nb) | (g4 & b),
	}
}
