package poly1305

import (
	"encoding/hex"
	"testing"
)

// RFC 7539 §2.5.2 test vector.
func TestVector(t *testing.T) {
	var key [KeySize]byte
	keyHex := "85d6be7857556d337f4452fe42d506a80103808afb0db2fd4abff6af4149f51b"
	kb, _ := hex.DecodeString(keyHex)
	copy(key[:], kb)

	msg := []byte("Cryptographic Forum Research Group")
	want := "a8061dc1305136c6c22b8baf0c0127a9"

	tag := Sum(msg, &key)
	if hex.EncodeToString(tag[:]) != want {
		t.Errorf("got %x, want %s", tag, want)
	}
}

func TestEmptyMessage(t *testing.T) {
	var key [KeySize]byte
	// a zero key should still produce a 16-byte tag without panicking.
	tag := Sum(nil, &key)
	if len(tag) != TagSize {
		t.Fatalf("unexpected tag length %d", len(tag))
	}
}
