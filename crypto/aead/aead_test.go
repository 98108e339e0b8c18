package aead

import (
	"bytes"
	"testing"

	"go.haplib.dev/hap/crypto/chacha20"
)

func TestSealOpenRoundtrip(t *testing.T) {
	var key [chacha20.KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	nonce := SeqNonce(42)
	plaintext := []byte("M1: hello HomeKit controller")
	aad := []byte{0x05, 0x00}

	sealed := Seal(&key, &nonce, plaintext, aad)
	opened, err := Open(&key, &nonce, sealed, aad)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("got %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsTamperedTag(t *testing.T) {
	var key [chacha20.KeySize]byte
	nonce := PairingNonce("PS-Msg05")
	sealed := Seal(&key, &nonce, []byte("payload"), nil)
	sealed[len(sealed)-1] ^= 0xff

	if _, err := Open(&key, &nonce, sealed, nil); err == nil {
		t.Fatal("expected tag mismatch error")
	}
}

func TestOpenRejectsReplayAfterNonceAdvance(t *testing.T) {
	var key [chacha20.KeySize]byte
	n0 := SeqNonce(0)
	n1 := SeqNonce(1)

	sealed := Seal(&key, &n0, []byte("frame"), nil)
	if _, err := Open(&key, &n1, sealed, nil); err == nil {
		t.Fatal("expected failure decrypting with wrong sequence nonce")
	}
}
