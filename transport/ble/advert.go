package ble

import (
	"time"

	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/aead"
	"go.haplib.dev/hap/crypto/chacha20"
)

// AdvertState is the advertisement builder's state machine. A 4th
// state, Update, is reserved for a future mDNS-driven transition; Poll
// only ever requests Regular or Notif (None is the initial state).
type AdvertState byte

const (
	AdvertNone AdvertState = iota
	AdvertRegular
	AdvertNotif
	AdvertUpdate
)

// notifMinDuration is how long a Notif advert runs before Poll falls
// back to Regular; whether a controller is connected does not change it.
const notifMinDuration = 3 * time.Second

// Advertiser tracks which of Regular/Notif is currently being emitted
// and builds the EIR manufacturer-data payload for each. Poll is the
// single entry point that idempotently starts/stops the underlying
// stack when the requested state diverges from the current one.
type Advertiser struct {
	Config *config.Config

	current   AdvertState
	notifSent time.Time

	pendingAAI [6]byte
	pendingBEK []byte
	pendingIID uint16
	pendingVal []byte
	hasPending bool

	// Start/Stop are set by the caller to the actual gatt advertising
	// calls; left nil they're no-ops, which keeps this type testable
	// without a real BLE stack.
	Start func(payload []byte) error
	Stop  func() error
}

// NewAdvertiser builds an Advertiser bound to cfg.
func NewAdvertiser(cfg *config.Config) *Advertiser {
	return &Advertiser{Config: cfg}
}

// QueueNotif arms a Notif advert for the next Poll, carrying a
// broadcast event for one characteristic.
func (a *Advertiser) QueueNotif(aai [6]byte, bek []byte, iid uint16, value []byte) {
	a.pendingAAI = aai
	a.pendingBEK = append([]byte{}, bek...)
	a.pendingIID = iid
	a.pendingVal = append([]byte{}, value...)
	a.hasPending = true
}

// desiredState computes which state Poll should be driving toward.
func (a *Advertiser) desiredState(connected bool) AdvertState {
	if a.hasPending {
		return AdvertNotif
	}
	if a.current == AdvertNotif && time.Since(a.notifSent) < notifMinDuration {
		return AdvertNotif
	}
	return AdvertRegular
}

// Poll drives the state machine toward desiredState(connected),
// idempotently stopping/starting the underlying stack only when the
// requested state actually diverges from the current one.
func (a *Advertiser) Poll(connected bool) error {
	want := a.desiredState(connected)
	if want == a.current {
		return nil
	}

	if a.Stop != nil {
		if err := a.Stop(); err != nil {
			return err
		}
	}

	var payload []byte
	switch want {
	case AdvertRegular:
		payload = a.buildRegular()
	case AdvertNotif:
		payload = a.buildNotif()
		a.notifSent = time.Now()
		a.hasPending = false
	}

	if a.Start != nil && payload != nil {
		if err := a.Start(payload); err != nil {
			return err
		}
	}
	a.current = want
	return nil
}

// buildRegular renders the 1-byte flags TLV + 21-byte manufacturer
// TLV {CoID, type, subtype, statusFlags, deviceId, categoryId, GSN,
// configNum, compatVer, setupHash} + first 3 bytes of the name.
func (a *Advertiser) buildRegular() []byte {
	c := a.Config
	out := make([]byte, 0, 1+21+3)

	out = append(out, 0x02, 0x01, 0x06) // flags TLV (LE General Discoverable, no BR/EDR)

	mfg := make([]byte, 0, 21)
	mfg = append(mfg, 0x4C, 0x00) // CoID=0x004C, little-endian
	mfg = append(mfg, 0x06)       // type
	mfg = append(mfg, 0x31)       // subtype
	mfg = append(mfg, byte(c.Status))
	mfg = append(mfg, c.DeviceID[:]...)
	mfg = append(mfg, c.Category)
	mfg = append(mfg, byte(c.GSN), byte(c.GSN>>8))
	mfg = append(mfg, byte(c.ConfigNum), byte(c.ConfigNum>>8))
	mfg = append(mfg, 0x02) // compatVer
	mfg = append(mfg, a.setupHash()...)
	out = append(out, byte(len(mfg)+1), 0xFF)
	out = append(out, mfg...)

	name := []byte(c.Name)
	if len(name) > 3 {
		name = name[:3]
	}
	out = append(out, byte(len(name)+1), 0x08)
	out = append(out, name...)
	return out
}

// setupHash is a placeholder 4-byte hash of the setup code, until a
// real controller-facing QR/setup-hash derivation is specified.
func (a *Advertiser) setupHash() []byte {
	h := []byte(a.Config.SetupCode)
	out := make([]byte, 4)
	for i, b := range h {
		out[i%4] ^= b
	}
	return out
}

// buildNotif renders the 26-byte manufacturer payload: CoID(2) +
// Type(0x11) + Subtype(0x36) + AAI(6) + ChaCha20-Poly1305(GSN ∥ iid ∥
// value[0..8], BEK, nonce=le32(0) ∥ le16(GSN) ∥ 0..., AAD=AAI)(12) with
// the first 4 bytes of the tag appended.
func (a *Advertiser) buildNotif() []byte {
	c := a.Config
	plain := make([]byte, 0, 11)
	plain = append(plain, byte(c.GSN), byte(c.GSN>>8))
	plain = append(plain, byte(a.pendingIID), byte(a.pendingIID>>8))
	val := a.pendingVal
	if len(val) > 8 {
		val = val[:8]
	}
	plain = append(plain, val...)

	var key [chacha20.KeySize]byte
	copy(key[:], a.pendingBEK)
	var nonce [chacha20.NonceSize]byte
	nonce[4] = byte(c.GSN)
	nonce[5] = byte(c.GSN >> 8)

	sealed := aead.Seal(&key, &nonce, plain, a.pendingAAI[:])
	tag := sealed[len(sealed)-16:]

	mfg := make([]byte, 0, 26)
	mfg = append(mfg, 0x11, 0x36) // type, subtype
	mfg = append(mfg, a.pendingAAI[:]...)
	mfg = append(mfg, sealed[:len(sealed)-16]...)
	mfg = append(mfg, tag[:4]...)

	out := make([]byte, 0, len(mfg)+4)
	out = append(out, byte(len(mfg)+3), 0xFF, 0x4C, 0x00)
	out = append(out, mfg...)
	return out
}
