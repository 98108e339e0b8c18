package pairing

import (
	"crypto/rand"
	"testing"

	"go.haplib.dev/hap/buf"
	"go.haplib.dev/hap/config"
	"go.haplib.dev/hap/crypto/aead"
	"go.haplib.dev/hap/crypto/curve25519"
	"go.haplib.dev/hap/crypto/ed25519"
	"go.haplib.dev/hap/crypto/hkdf512"
	"go.haplib.dev/hap/crypto/srp"
	"go.haplib.dev/hap/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	store, err := config.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	c, err := config.Init(store, config.Identity{
		Name: "Test Lamp", Model: "TL1", Manufacturer: "Acme",
		Serial: "0001", Firmware: "1.0", Hardware: "1.0", Category: 5,
	})
	if err != nil {
		t.Fatalf("config.Init: %v", err)
	}
	return c
}

func decodeOrFail(t *testing.T, body []byte) []buf.Item {
	t.Helper()
	items, err := buf.Decode(body)
	if err != nil {
		t.Fatalf("buf.Decode: %v", err)
	}
	return items
}

func requireState(t *testing.T, items []buf.Item, want State) {
	t.Helper()
	v, ok := buf.Find(items, TypeState)
	if !ok || len(v) != 1 {
		t.Fatalf("missing State TLV")
	}
	if State(v[0]) != want {
		if errV, ok := buf.Find(items, TypeError); ok {
			t.Fatalf("expected State=%d, got %d with Error=%d", want, v[0], errV[0])
		}
		t.Fatalf("expected State=%d, got %d", want, v[0])
	}
}

// TestSetupHappyPath drives Engine.SetupM1/M3/M5 against a real SRP
// User and checks the controller ends up enrolled as Admin.
func TestSetupHappyPath(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	sess := session.New()

	m2 := decodeOrFail(t, e.SetupM1(sess))
	requireState(t, m2, StateM2)
	bPub, _ := buf.Find(m2, TypePublicKey)
	saltBytes, _ := buf.Find(m2, TypeSalt)
	var salt [16]byte
	copy(salt[:], saltBytes)

	user, err := srp.NewUser([]byte("Pair-Setup"), []byte(cfg.SetupCode))
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	_, userM, err := user.ComputeSession(salt, bPub)
	if err != nil {
		t.Fatalf("ComputeSession: %v", err)
	}

	m3Body := buf.Encode([]buf.Item{
		{Type: TypePublicKey, Value: user.PublicKey()},
		{Type: TypeProof, Value: userM},
	})
	m4 := decodeOrFail(t, e.SetupM3(sess, m3Body))
	requireState(t, m4, StateM4)

	ctrlSeed := [ed25519.SeedSize]byte{}
	rand.Read(ctrlSeed[:])
	ctrlPriv, ctrlPub := ed25519.NewKeyPairFromSeed(ctrlSeed)
	ctrlID := []byte("my-iphone")

	var signInput []byte
	signInput = append(signInput, ctrlID...)
	signInput = append(signInput, ctrlPub...)
	sig := ed25519.Sign(ctrlPriv, signInput)

	sub := buf.Encode([]buf.Item{
		{Type: TypeIdentifier, Value: ctrlID},
		{Type: TypePublicKey, Value: ctrlPub},
		{Type: TypeSignature, Value: sig[:]},
	})
	var key [32]byte
	copy(key[:], sess.SessKey[:])
	nonce := aead.PairingNonce("PS-Msg05")
	enc := aead.Seal(&key, &nonce, sub, nil)

	m5Body := buf.Encode([]buf.Item{{Type: TypeEncryptedData, Value: enc}})
	m6 := decodeOrFail(t, e.SetupM5(sess, m5Body))
	requireState(t, m6, StateM6)

	if cfg.Pairings.Count() != 1 {
		t.Fatalf("Pairings.Count() = %d, want 1", cfg.Pairings.Count())
	}
	ctrl := cfg.Pairings.Find(ctrlID)
	if ctrl == nil {
		t.Fatal("expected controller to be enrolled")
	}
	if ctrl.Perm != config.PermAdmin {
		t.Fatalf("Perm = %v, want PermAdmin", ctrl.Perm)
	}
}

// TestVerifyHappyPath drives VerifyM1/M3 against a pre-enrolled
// controller and checks the session ends up pending-secure with
// matching directional keys on both sides.
func TestVerifyHappyPath(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)

	var ctrlSeed [curve25519.ScalarSize]byte
	rand.Read(ctrlSeed[:])
	ctrlEphemeral := curve25519.Generate(ctrlSeed)

	signSeed := [ed25519.SeedSize]byte{}
	rand.Read(signSeed[:])
	ctrlSignPriv, ctrlSignPub := ed25519.NewKeyPairFromSeed(signSeed)
	ctrlID := []byte("my-ipad")
	if err := cfg.Pairings.Insert(ctrlID, ctrlSignPub, config.PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	sess := session.New()
	m1Body := buf.Encode([]buf.Item{{Type: TypePublicKey, Value: ctrlEphemeral.Public[:]}})
	m2 := decodeOrFail(t, e.VerifyM1(sess, m1Body))
	requireState(t, m2, StateM2)

	accPub, ok := buf.Find(m2, TypePublicKey)
	if !ok || len(accPub) != curve25519.ScalarSize {
		t.Fatal("missing accessory ephemeral public key in M2")
	}
	var accPubArr [curve25519.ScalarSize]byte
	copy(accPubArr[:], accPub)
	ctrlShared := ctrlEphemeral.SharedSecret(accPubArr)

	sessKey, err := hkdf512.Derive(ctrlShared[:], "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info", 32)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	var signInput []byte
	signInput = append(signInput, ctrlEphemeral.Public[:]...)
	signInput = append(signInput, ctrlID...)
	signInput = append(signInput, accPub...)
	sig := ed25519.Sign(ctrlSignPriv, signInput)

	sub := buf.Encode([]buf.Item{
		{Type: TypeIdentifier, Value: ctrlID},
		{Type: TypeSignature, Value: sig[:]},
	})
	var key [32]byte
	copy(key[:], sessKey)
	nonce := aead.PairingNonce("PV-Msg03")
	enc := aead.Seal(&key, &nonce, sub, nil)

	m3Body := buf.Encode([]buf.Item{{Type: TypeEncryptedData, Value: enc}})
	m4 := decodeOrFail(t, e.VerifyM3(sess, m3Body))
	requireState(t, m4, StateM4)

	if sess.Flags&session.FlagPendingSecure == 0 {
		t.Fatal("expected session to be pending-secure after VerifyM3")
	}
	if sess.Controller == nil || sess.Controller.ID() != string(ctrlID) {
		t.Fatal("expected session.Controller to resolve to the enrolled controller")
	}

	wantA2C, _ := hkdf512.Derive(ctrlShared[:], "Control-Salt", "Control-Read-Encryption-Key", 32)
	var wantA2CArr [32]byte
	copy(wantA2CArr[:], wantA2C)
	if sess.AccessoryToController != wantA2CArr {
		t.Fatal("accessory-to-controller key mismatch")
	}
}

func TestDispatchRejectsPairingsBeforeSecure(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	sess := session.New()

	resp := e.Dispatch(PathPairings, MethodListPairing, StateM1, sess, nil)
	items := decodeOrFail(t, resp)
	v, ok := buf.Find(items, TypeError)
	if !ok || ErrorKind(v[0]) != ErrAuthentication {
		t.Fatal("expected Authentication error for Pairings request on an unsecured session")
	}
}

func TestListM1EnumeratesPairings(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	sess := session.New()

	if err := cfg.Pairings.Insert([]byte("ctrl-a"), make([]byte, 32), config.PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	sess.Controller = cfg.Pairings.Find([]byte("ctrl-a"))
	sess.Flags |= session.FlagSecured

	resp := e.ListM1(sess)
	items := decodeOrFail(t, resp)
	ids := buf.FindAll(items, TypeIdentifier)
	if len(ids) != 1 || string(ids[0]) != "ctrl-a" {
		t.Fatalf("ListM1 identifiers = %v, want [ctrl-a]", ids)
	}
}

func TestRemoveM1StashesRemovedControllerOnSelfRemoval(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	sess := session.New()

	if err := cfg.Pairings.Insert([]byte("ctrl-a"), make([]byte, 32), config.PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	sess.Controller = cfg.Pairings.Find([]byte("ctrl-a"))
	sess.Flags |= session.FlagSecured

	body := buf.Encode([]buf.Item{{Type: TypeIdentifier, Value: []byte("ctrl-a")}})
	resp := e.RemoveM1(sess, body)
	items := decodeOrFail(t, resp)
	requireState(t, items, StateM2)

	if sess.RemovedController == nil {
		t.Fatal("expected RemoveM1 to stash the removed controller on self-removal")
	}
	if cfg.Pairings.Count() != 0 {
		t.Fatal("expected the controller to be removed from the table")
	}
}
