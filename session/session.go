// Package session implements the per-connection state HAP's two
// transports share: the secure-channel key material, the AEAD nonce
// counters, and the pointer to whichever paired Controller a Pair-
// Verify exchange resolved to.
package session

import (
	"sync"
	"time"

	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/curve25519"
)

// Flag is the Session's small state bitmask.
type Flag uint8

const (
	FlagSecured      Flag = 1 << iota // the directional keys are live
	FlagPendingSecure                 // M4 derived the keys but hasn't been sent yet
)

// Session is per-connection state, shared between the BLE and IP
// transports. IDs are assigned by a package-level monotonic counter so
// callers never have to coordinate one themselves.
type Session struct {
	mu sync.Mutex

	ID           uint64
	Flags        Flag
	LastActivity time.Time

	Ephemeral curve25519.KeyPair

	// PeerEphemeral is the controller's Curve25519 ephemeral public key,
	// recorded by Pair-Verify M1 and consumed by M3 to recompute the
	// same shared secret without re-parsing the M1 request body.
	PeerEphemeral [32]byte

	// SessKey is the transient key used during Pair-Setup/Pair-Verify
	// M3/M5 AEAD exchanges, before the channel is secured.
	SessKey [32]byte

	AccessoryToController [32]byte
	ControllerToAccessory [32]byte

	// SharedSecret is the raw Curve25519 shared secret Pair-Verify (or
	// Pair-Resume) computed, kept alongside the two keys derived from it
	// because BLE's Broadcast Encryption Key derivation needs the raw
	// secret itself as IKM, not either directional key.
	SharedSecret [32]byte

	// BroadcastAAI/BroadcastBEK are the Accessory Advertising Identifier
	// and Broadcast Encryption Key a BLE ProtoConfiguration exchange most
	// recently derived on this session. The BLE server snapshots these
	// into its own cache so a Notif advert can still be built once this
	// session's connection has gone away.
	BroadcastAAI [6]byte
	BroadcastBEK []byte

	SendCounter uint64
	RecvCounter uint64

	Controller *config.Controller

	// RemovedController is set by RemoveM1 when the caller removed
	// their own controller, so the transport can disconnect every
	// session belonging to it after the response is flushed.
	RemovedController *config.Controller
}

var (
	idMu      sync.Mutex
	nextID    uint64
)

// New allocates a Session with a freshly assigned monotonic ID.
func New() *Session {
	idMu.Lock()
	nextID++
	id := nextID
	idMu.Unlock()

	return &Session{ID: id, LastActivity: time.Now()}
}

// Touch records activity for inactivity-timeout bookkeeping.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long it's been since the last Touch.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity)
}

// IsSecured reports whether the directional keys are live.
func (s *Session) IsSecured() bool { return s.Flags&FlagSecured != 0 }

// MarkPendingSecure records that Pair-Verify M3 derived the
// directional keys; the session becomes secured only once the M4
// response has actually been sent (CommitSecure).
func (s *Session) MarkPendingSecure(a2c, c2a [32]byte) {
	s.AccessoryToController = a2c
	s.ControllerToAccessory = c2a
	s.Flags |= FlagPendingSecure
}

// CommitSecure transitions a pending-secure session into the secured
// state once its M4 response has been flushed to the wire.
func (s *Session) CommitSecure() {
	s.Flags &^= FlagPendingSecure
	s.Flags |= FlagSecured
	s.SendCounter = 0
	s.RecvCounter = 0
}

// Unsecure tears down the secure channel (a write to Pair-Verify on an
// already-secured session does this before reprocessing, per HAP's
// verify-cancellation rules).
func (s *Session) Unsecure() {
	s.Flags &^= (FlagSecured | FlagPendingSecure)
	s.AccessoryToController = [32]byte{}
	s.ControllerToAccessory = [32]byte{}
	s.SharedSecret = [32]byte{}
	s.SendCounter = 0
	s.RecvCounter = 0
}

// NextSendNonce returns the next send-direction AEAD sequence number
// and advances the counter. HAP sequence numbers are 64 bits and never
// wrap; callers are expected to tear down long before overflow.
func (s *Session) NextSendNonce() uint64 {
	n := s.SendCounter
	s.SendCounter++
	return n
}

// NextRecvNonce mirrors NextSendNonce for the receive direction.
func (s *Session) NextRecvNonce() uint64 {
	n := s.RecvCounter
	s.RecvCounter++
	return n
}
