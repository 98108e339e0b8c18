package pairing

import (
	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/aead"
	"go.haplib.dev/hap/crypto/ed25519"
	"go.haplib.dev/hap/crypto/hkdf512"
	"go.haplib.dev/hap/crypto/srp"
	"go.haplib.dev/hap/session"
)

// SetupM1 opens the SRP Host for this session (or rejects with Busy if
// a different session already holds it) and returns B and the salt.
func (e *Engine) SetupM1(sess *session.Session) []byte {
	if e.attempts >= maxAuthAttempts {
		return errorTLV(StateM2, ErrMaxTries)
	}

	if e.host != nil && e.hostSID != sess.ID {
		return errorTLV(StateM2, ErrBusy)
	}

	host, err := srp.NewHost(e.Config.Verifier)
	if err != nil {
		return errorTLV(StateM2, ErrUnknown)
	}
	e.host = host
	e.hostSID = sess.ID
	e.attempts++

	return stateTLV(StateM2,
		buf.Item{Type: TypePublicKey, Value: host.PublicKey()},
		buf.Item{Type: TypeSalt, Value: func() []byte { s := host.Salt(); return s[:] }()},
	)
}

// SetupM3 consumes the controller's public key and proof, deriving the
// Pair-Setup encryption key and returning the accessory's own proof.
func (e *Engine) SetupM3(sess *session.Session, body []byte) []byte {
	if e.host == nil || e.hostSID != sess.ID {
		return errorTLV(StateM4, ErrUnknown)
	}
	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM4, ErrUnknown)
	}
	a, ok := buf.Find(items, TypePublicKey)
	if !ok || len(a) != 384 {
		return errorTLV(StateM4, ErrUnknown)
	}
	proof, ok := buf.Find(items, TypeProof)
	if !ok || len(proof) != 64 {
		return errorTLV(StateM4, ErrUnknown)
	}

	if err := e.host.SetA(a); err != nil {
		return errorTLV(StateM4, ErrUnknown)
	}

	sessKey, err := hkdf512.Derive(e.host.SessionKey(), "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info", 32)
	if err != nil {
		return errorTLV(StateM4, ErrUnknown)
	}
	copy(sess.SessKey[:], sessKey)

	serverProof, err := e.host.VerifyClientProof(a, proof)
	if err != nil {
		return errorTLV(StateM4, ErrAuthentication)
	}

	return stateTLV(StateM4, buf.Item{Type: TypeProof, Value: serverProof})
}

// SetupM5 decrypts the controller's identity/LTPK/signature sub-TLV,
// enrolls the controller as an Admin pairing, and returns the
// accessory's own signed identity sub-TLV.
//
// The original reference implementation never verifies the decrypted
// controller signature before enrollment (its own comment flags this
// as unfinished); this port matches that behaviour rather than
// inventing a verification step that was never required.
func (e *Engine) SetupM5(sess *session.Session, body []byte) []byte {
	if e.host == nil || e.hostSID != sess.ID {
		return errorTLV(StateM6, ErrUnknown)
	}
	defer func() { e.host = nil }()

	items, err := buf.Decode(body)
	if err != nil {
		return errorTLV(StateM6, ErrUnknown)
	}
	enc, ok := buf.Find(items, TypeEncryptedData)
	if !ok {
		return errorTLV(StateM6, ErrUnknown)
	}

	var key [32]byte
	copy(key[:], sess.SessKey[:])
	nonce := aead.PairingNonce("PS-Msg05")
	plain, err := aead.Open(&key, &nonce, enc, nil)
	if err != nil {
		return errorTLV(StateM6, ErrAuthentication)
	}

	subItems, err := buf.Decode(plain)
	if err != nil {
		return errorTLV(StateM6, ErrUnknown)
	}
	ctrlID, ok := buf.Find(subItems, TypeIdentifier)
	if !ok {
		return errorTLV(StateM6, ErrUnknown)
	}
	ctrlLTPK, ok := buf.Find(subItems, TypePublicKey)
	if !ok || len(ctrlLTPK) != ed25519.PublicKeySize {
		return errorTLV(StateM6, ErrUnknown)
	}
	if _, ok := buf.Find(subItems, TypeSignature); !ok {
		return errorTLV(StateM6, ErrUnknown)
	}

	if err := e.Config.Pairings.Insert(ctrlID, ctrlLTPK, config.PermAdmin); err != nil {
		return errorTLV(StateM6, ErrMaxPeers)
	}

	accInfoSalt, _ := hkdf512.Derive(e.host.SessionKey(), "Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info", 32)
	var signInput []byte
	signInput = append(signInput, accInfoSalt...)
	signInput = append(signInput, e.Config.DeviceID[:]...)
	signInput = append(signInput, e.Config.LongTermPublic[:]...)
	sig := ed25519.Sign(e.Config.LongTermPrivate, signInput)

	accSub := buf.Encode([]buf.Item{
		{Type: TypeIdentifier, Value: e.Config.DeviceID[:]},
		{Type: TypePublicKey, Value: e.Config.LongTermPublic[:]},
		{Type: TypeSignature, Value: sig[:]},
	})

	nonce6 := aead.PairingNonce("PS-Msg06")
	encrypted := aead.Seal(&key, &nonce6, accSub, nil)

	if err := e.Config.Update(false); err != nil {
		return errorTLV(StateM6, ErrUnknown)
	}

	return stateTLV(StateM6, buf.Item{Type: TypeEncryptedData, Value: encrypted})
}
