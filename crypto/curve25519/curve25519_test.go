package curve25519

import (
	"bytes"
	"testing"
)

// For i = 0..9, F(prvA, F(prvB, 9)) == F(prvB, F(prvA, 9)), using the
// Monte-Carlo scheme that XORs each round's output into the next
// round's inputs.
func TestDiffieHellmanReciprocity(t *testing.T) {
	var prvA, prvB [ScalarSize]byte
	for i := range prvA {
		prvA[i] = byte(i*7 + 1)
		prvB[i] = byte(i*11 + 3)
	}

	for i := 0; i < 10; i++ {
		pubA := Calculate(&prvA, &Basepoint)
		pubB := Calculate(&prvB, &Basepoint)

		sharedAB := Calculate(&prvA, &pubB)
		sharedBA := Calculate(&prvB, &pubA)

		if !bytes.Equal(sharedAB[:], sharedBA[:]) {
			t.Fatalf("round %d: shared secrets disagree: %x vs %x", i, sharedAB, sharedBA)
		}

		for j := range prvA {
			prvA[j] ^= sharedAB[j]
			prvB[j] ^= sharedBA[j]
		}
	}
}

func TestKeyPairSharedSecret(t *testing.T) {
	var seedA, seedB [ScalarSize]byte
	for i := range seedA {
		seedA[i] = byte(i)
		seedB[i] = byte(255 - i)
	}
	a := Generate(seedA)
	b := Generate(seedB)

	sharedAB := a.SharedSecret(b.Public)
	sharedBA := b.SharedSecret(a.Public)
	if bytes.Equal(sharedAB[:], make([]byte, ScalarSize)) {
		t.Fatal("shared secret should not be all-zero for distinct keys")
	}
	if !bytes.Equal(sharedAB[:], sharedBA[:]) {
		t.Fatal("KeyPair.SharedSecret is not symmetric")
	}
}
