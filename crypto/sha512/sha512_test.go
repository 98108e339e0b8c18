package sha512

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			in:   "",
			want: "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		},
		{
			in:   "abc",
			want: "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		},
	}
	for _, c := range cases {
		got := Sum512([]byte(c.in))
		if hex.EncodeToString(got[:]) != c.want {
			t.Errorf("Sum512(%q) = %x, want %s", c.in, got, c.want)
		}
	}
}

func TestStreamingMatchesOneShot(t *testing.T) {
	msg := strings.Repeat("abcdefghij", 50) // 500 bytes, crosses several blocks
	oneshot := Sum512([]byte(msg))

	hs := New()
	for i := 0; i < len(msg); i += 7 {
		end := i + 7
		if end > len(msg) {
			end = len(msg)
		}
		hs.Write([]byte(msg[i:end]))
	}
	streamed := hs.Sum(nil)
	if hex.EncodeToString(streamed) != hex.EncodeToString(oneshot[:]) {
		t.Errorf("streamed = %x, want %x", streamed, oneshot)
	}
}
