// Package ip implements the HAP IP transport: an HTTP/1.1 processor
// over a TCP connection that, once Pair-Verify succeeds, frames every
// request/response body as 16-bit-length-prefixed ChaCha20-Poly1305
// blocks keyed off the Session's directional keys.
package ip

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"go.haplib.dev/hap/crypto/aead"
	"go.haplib.dev/hap/crypto/chacha20"
	"go.haplib.dev/hap/session"
)

// maxFrameLen is the largest plaintext chunk a single frame may carry:
// a 16-bit little-endian length, capped at 1024.
const maxFrameLen = 1024

// SecureConn wraps a net.Conn, transparently framing/encrypting once
// its Session becomes secured and passing bytes through unmodified
// until then. The same connection carries the plaintext Pair-Setup/
// Pair-Verify exchange and, after M4, the encrypted characteristic
// traffic.
type SecureConn struct {
	net.Conn
	sess *session.Session

	plaintext []byte // buffered decrypted bytes not yet consumed by Read
}

// NewSecureConn wraps conn, reading/writing framed blocks once sess
// reports IsSecured.
func NewSecureConn(conn net.Conn, sess *session.Session) *SecureConn {
	return &SecureConn{Conn: conn, sess: sess}
}

// Read satisfies io.Reader. While unsecured it is a direct passthrough;
// once secured it decrypts whole frames into an internal buffer and
// serves from that.
func (c *SecureConn) Read(p []byte) (int, error) {
	if !c.sess.IsSecured() {
		return c.Conn.Read(p)
	}
	if len(c.plaintext) == 0 {
		if err := c.readFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.plaintext)
	c.plaintext = c.plaintext[n:]
	return n, nil
}

// readFrame reads one length-prefixed ciphertext block from the
// underlying conn, decrypts it with the controller-to-accessory key,
// and appends the plaintext to c.plaintext.
func (c *SecureConn) readFrame() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(c.Conn, lenBuf[:]); err != nil {
		return err
	}
	frameLen := binary.LittleEndian.Uint16(lenBuf[:])

	sealed := make([]byte, int(frameLen)+aead.TagSize)
	if _, err := io.ReadFull(c.Conn, sealed); err != nil {
		return err
	}

	var key [chacha20.KeySize]byte
	copy(key[:], c.sess.ControllerToAccessory[:])
	nonce := aead.SeqNonce(c.sess.NextRecvNonce())

	plain, err := aead.Open(&key, &nonce, sealed, lenBuf[:])
	if err != nil {
		return fmt.Errorf("ip: frame authentication failed: %w", err)
	}
	c.plaintext = append(c.plaintext, plain...)
	return nil
}

// Write satisfies io.Writer, splitting p into ≤maxFrameLen chunks and
// sealing each with the accessory-to-controller key once secured.
func (c *SecureConn) Write(p []byte) (int, error) {
	if !c.sess.IsSecured() {
		return c.Conn.Write(p)
	}

	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxFrameLen {
			chunk = chunk[:maxFrameLen]
		}
		if err := c.writeFrame(chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

func (c *SecureConn) writeFrame(chunk []byte) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(chunk)))

	var key [chacha20.KeySize]byte
	copy(key[:], c.sess.AccessoryToController[:])
	nonce := aead.SeqNonce(c.sess.NextSendNonce())

	sealed := aead.Seal(&key, &nonce, chunk, lenBuf[:])

	if _, err := c.Conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := c.Conn.Write(sealed)
	return err
}
