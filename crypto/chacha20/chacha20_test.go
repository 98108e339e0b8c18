package chacha20

import (
	"encoding/hex"
	"testing"
)

// RFC 7539 §2.3.2 block function test vector.
func TestBlockVector(t *testing.T) {
	key := [KeySize]byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
		0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
	}
	nonce := [NonceSize]byte{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x4a, 0x00, 0x00, 0x00, 0x00}
	want := "10f1e7e4d13b5915500fdd1fa32071c4c7d1f4c733c068030422aa9ac3d46c4ed2826446079faa0914c2d705d98b02a2b5129cd1de164eb9cbd083e8a2503c4e"

	got := Block(&key, &nonce, 1)
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("got %x, want %s", got, want)
	}
}

// RFC 7539 §2.4.2 encryption test vector.
func TestEncryptVector(t *testing.T) {
	key := [KeySize]byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
		0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
	}
	nonce := [NonceSize]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x4a, 0x00, 0x00, 0x00, 0x00}
	plaintext := "Ladies and Gentlemen of the class of '99: If I could offer you only one tip for the future, sunscreen would be it."
	ct := make([]byte, len(plaintext))
	if err := XOR(ct, []byte(plaintext), &key, &nonce, 1); err != nil {
		t.Fatal(err)
	}
	want := "6e2e359a2568f98041ba0728dd0d6981e97e7aec1d4360c20a27afccfd9fae0bf91b65c5524733ab8f593dabcd62b3571639d624e65152ab8f530c359f0861d807ca0dbf500d6a6156a38e088a22b65e52bc514d16ccf806818ce91ab77937365af90bbf74a35be6b40b8eedf2785e42874d"
	if hex.EncodeToString(ct) != want {
		t.Fatalf("ciphertext = %x, want %s", ct, want)
	}
	pt := make([]byte, len(ct))
	if err := XOR(pt, ct, &key, &nonce, 1); err != nil {
		t.Fatal(err)
	}
	if string(pt) != plaintext {
		t.Fatalf("roundtrip mismatch: got %q", pt)
	}
}

func TestXORLengthMismatch(t *testing.T) {
	var key [KeySize]byte
	var nonce [NonceSize]byte
	if err := XOR(make([]byte, 3), make([]byte, 4), &key, &nonce, 0); err == nil {
		t.Fatal("expected error on length mismatch")
	}
}
