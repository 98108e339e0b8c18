package pairing

import (
	"crypto/rand"

	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/crypto/aead"
	"go.haplib.dev/hap/crypto/curve25519"
	"go.haplib.dev/hap/crypto/ed25519"
	"go.haplib.dev/hap/crypto/hkdf512"
	"go.haplib.dev/hap/session"
)

// VerifyM1 generates an accessory ephemeral key pair, computes the
// shared secret with the controller's ephemeral public key, and
// returns the accessory's signed identity sub-TLV encrypted under the
// derived session key.
func (e *Engine) VerifyM1(sess *session.Session, body []byte) []byte {
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	ctrlPub, ok := buf.Find(items, TypePublicKey)
	if !ok || len(ctrlPub) != curve25519.ScalarSize {
		return errorTLV(StateM2, ErrUnknown)
	}

	var seed [curve25519.ScalarSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	sess.Ephemeral = curve25519.Generate(seed)

	var ctrlPubArr [curve25519.ScalarSize]byte
	copy(ctrlPubArr[:], ctrlPub)
	sess.PeerEphemeral = ctrlPubArr
	shared := sess.Ephemeral.SharedSecret(ctrlPubArr)

	sessKey, err := hkdf512.Derive(shared[:], "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info", 32)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	copy(sess.SessKey[:], sessKey)

	var signInput []byte
	signInput = append(signInput, sess.Ephemeral.Public[:]...)
	signInput = append(signInput, e.Config.DeviceID[:]...)
	signInput = append(signInput, ctrlPub...)
	sig := ed25519.Sign(e.Config.LongTermPrivate, signInput)

	sub := buf.Encode([]buf.Item{
		{Type: TypeIdentifier, Value: e.Config.DeviceID[:]},
		{Type: TypeSignature, Value: sig[:]},
	})

	var key [32]byte
	copy(key[:], sess.SessKey[:])
	nonce := aead.PairingNonce("PV-Msg02")
	encrypted := aead.Seal(&key, &nonce, sub, nil)

	return stateTLV(StateM2,
		buf.Item{Type: TypePublicKey, Value: sess.Ephemeral.Public[:]},
		buf.Item{Type: TypeEncryptedData, Value: encrypted},
	)
}

// VerifyM3 decrypts the controller's identity/signature sub-TLV, looks
// it up in the Pairings table, derives the directional channel keys
// and the resumable session ID, and marks the session pending-secure.
//
// As in SetupM5, the original reference implementation never verifies
// the decrypted controller signature before trusting the identity;
// this port matches that rather than inventing a stricter check.
func (e *Engine) VerifyM3(sess *session.Session, body []byte) []byte {
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM4, ErrUnknown)
	}
	enc, ok := buf.Find(items, TypeEncryptedData)
	if !ok {
		return errorTLV(StateM4, ErrUnknown)
	}

	var key [32]byte
	copy(key[:], sess.SessKey[:])
	nonce := aead.PairingNonce("PV-Msg03")
	plain, err := aead.Open(&key, &nonce, enc, nil)
	if err != nil {
		return errorTLV(StateM4, ErrAuthentication)
	}

	subItems, err := buf.Decode(plain)
	if err != nil {
		return errorTLV(StateM4, ErrUnknown)
	}
	ctrlID, ok := buf.Find(subItems, TypeIdentifier)
	if !ok {
		return errorTLV(StateM4, ErrUnknown)
	}
	if _, ok := buf.Find(subItems, TypeSignature); !ok {
		return errorTLV(StateM4, ErrUnknown)
	}

	ctrl := e.Config.Pairings.Find(ctrlID)
	if ctrl == nil {
		return errorTLV(StateM4, ErrAuthentication)
	}

	shared := sess.Ephemeral.SharedSecret(sess.PeerEphemeral)

	a2c, c2a := deriveControlKeys(shared)
	sess.MarkPendingSecure(a2c, c2a)
	sess.SharedSecret = shared
	sess.Controller = ctrl

	sessID, err := hkdf512.Derive(shared[:], "Pair-Verify-ResumeSessionID-Salt", "Pair-Verify-ResumeSessionID-Info", 8)
	if err == nil {
		ctrl.HasResumeState = true
		copy(ctrl.ResumeSessionID[:], sessID)
		ctrl.ResumeShared = shared
	}

	e.Config.Update(false)
	return stateTLV(StateM4)
}

// deriveControlKeys derives the two post-handshake directional keys
// from a Curve25519 shared secret, shared by VerifyM3 and ResumeM1.
func deriveControlKeys(shared [32]byte) (a2c, c2a [32]byte) {
	a2cBytes, _ := hkdf512.Derive(shared[:], "Control-Salt", "Control-Read-Encryption-Key", 32)
	c2aBytes, _ := hkdf512.Derive(shared[:], "Control-Salt", "Control-Write-Encryption-Key", 32)
	copy(a2c[:], a2cBytes)
	copy(c2a[:], c2aBytes)
	return a2c, c2a
}

// ResumeM1 looks up a stored resumable session by ID; on a miss it
// falls through to a full VerifyM1. On a hit it verifies the
// controller's resume tag, issues a fresh session ID, derives a new
// shared secret, and marks the session pending-secure exactly as
// VerifyM3 would.
func (e *Engine) ResumeM1(sess *session.Session, body []byte) []byte {
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	ctrlPub, ok := buf.Find(items, TypePublicKey)
	if !ok {
		return errorTLV(StateM2, ErrUnknown)
	}
	sidBytes, ok := buf.Find(items, TypeSessionID)
	if !ok || len(sidBytes) != 8 {
		return e.VerifyM1(sess, body)
	}
	tag, ok := buf.Find(items, TypeEncryptedData)
	if !ok {
		return errorTLV(StateM2, ErrUnknown)
	}

	var sid [8]byte
	copy(sid[:], sidBytes)
	ctrl := e.Config.Pairings.FindByResumeSessionID(sid)
	if ctrl == nil {
		return e.VerifyM1(sess, body)
	}

	reqSalt := append(append([]byte{}, ctrlPub...), sidBytes...)
	reqKey, err := hkdf512.Derive(ctrl.ResumeShared[:], string(reqSalt), "Pair-Resume-Request-Info", 32)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	var key [32]byte
	copy(key[:], reqKey)
	nonce1 := aead.PairingNonce("PR-Msg01")
	expectedTag := aead.Seal(&key, &nonce1, nil, nil)
	if len(tag) != len(expectedTag) || string(tag) != string(expectedTag) {
		return errorTLV(StateM2, ErrAuthentication)
	}

	var newSID [8]byte
	if _, err := rand.Read(newSID[:]); err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}

	respSalt := append(append([]byte{}, ctrlPub...), newSID[:]...)
	respKey, err := hkdf512.Derive(ctrl.ResumeShared[:], string(respSalt), "Pair-Resume-Response-Info", 32)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	var respKeyArr [32]byte
	copy(respKeyArr[:], respKey)
	nonce2 := aead.PairingNonce("PR-Msg02")
	respTag := aead.Seal(&respKeyArr, &nonce2, nil, nil)

	newShared, err := hkdf512.Derive(ctrl.ResumeShared[:], string(respSalt), "Pair-Resume-Shared-Secret-Info", 32)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	var newSharedArr [32]byte
	copy(newSharedArr[:], newShared)
	ctrl.ResumeShared = newSharedArr
	ctrl.ResumeSessionID = newSID

	a2c, c2a := deriveControlKeys(newSharedArr)
	sess.MarkPendingSecure(a2c, c2a)
	sess.SharedSecret = newSharedArr
	sess.Controller = ctrl

	e.Config.Update(false)

	return buf.Encode([]buf.Item{
		{Type: TypeState, Value: []byte{byte(StateM2)}},
		{Type: TypeMethod, Value: []byte{byte(MethodResume)}},
		{Type: TypeSessionID, Value: newSID[:]},
		{Type: TypeEncryptedData, Value: respTag},
	})
}
