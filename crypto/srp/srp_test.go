package srp

import "testing"

// TestHostUserAgreeOnSessionKey drives both sides of a Pair-Setup SRP
// exchange and checks they converge on the same premaster K and that
// each side's proof verifies against the other's.
func TestHostUserAgreeOnSessionKey(t *testing.T) {
	identity := []byte("alice")
	password := []byte("password123")

	v, err := NewVerifier(identity, password)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	host, err := NewHost(v)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	user, err := NewUser(identity, password)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}

	if err := host.SetA(user.PublicKey()); err != nil {
		t.Fatalf("Host.SetA: %v", err)
	}

	userK, userM, err := user.ComputeSession(host.Salt(), host.PublicKey())
	if err != nil {
		t.Fatalf("User.ComputeSession: %v", err)
	}

	if string(userK) != string(host.SessionKey()) {
		t.Fatalf("session keys disagree:\nhost=%x\nuser=%x", host.SessionKey(), userK)
	}

	serverV, err := host.VerifyClientProof(user.PublicKey(), userM)
	if err != nil {
		t.Fatalf("Host.VerifyClientProof: %v", err)
	}
	if len(serverV) != 64 {
		t.Fatalf("server proof V has unexpected length %d", len(serverV))
	}
}

func TestVerifyClientProofRejectsWrongProof(t *testing.T) {
	v, err := NewVerifier([]byte("bob"), []byte("hunter2"))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	host, err := NewHost(v)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	user, err := NewUser([]byte("bob"), []byte("hunter2"))
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := host.SetA(user.PublicKey()); err != nil {
		t.Fatalf("Host.SetA: %v", err)
	}

	bogus := make([]byte, 64)
	if _, err := host.VerifyClientProof(user.PublicKey(), bogus); err != ErrBadProof {
		t.Fatalf("expected ErrBadProof, got %v", err)
	}
}

func TestVerifierRejectsWrongPassword(t *testing.T) {
	identity := []byte("carol")
	v, err := NewVerifier(identity, []byte("correct horse"))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	host, err := NewHost(v)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	wrongUser, err := NewUser(identity, []byte("battery staple"))
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := host.SetA(wrongUser.PublicKey()); err != nil {
		t.Fatalf("Host.SetA: %v", err)
	}
	_, wrongM, err := wrongUser.ComputeSession(host.Salt(), host.PublicKey())
	if err != nil {
		t.Fatalf("ComputeSession: %v", err)
	}
	if _, err := host.VerifyClientProof(wrongUser.PublicKey(), wrongM); err != ErrBadProof {
		t.Fatalf("expected ErrBadProof for wrong password, got %v", err)
	}
}

func TestHostOpenCloseGatesConcurrentAttempts(t *testing.T) {
	v, err := NewVerifier([]byte("dave"), []byte("swordfish"))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	host, err := NewHost(v)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	if !host.Open(1) {
		t.Fatal("first Open should succeed")
	}
	if host.Open(2) {
		t.Fatal("second Open from a different session should fail while held")
	}
	host.Close()
	if !host.Open(2) {
		t.Fatal("Open should succeed for a new session after Close")
	}
}
