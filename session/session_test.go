package session

import "testing"

func TestNewAssignsDistinctMonotonicIDs(t *testing.T) {
	a := New()
	b := New()
	if a.ID == b.ID {
		t.Fatal("expected distinct session ids")
	}
	if b.ID <= a.ID {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", a.ID, b.ID)
	}
}

func TestSecureLifecycle(t *testing.T) {
	s := New()
	if s.IsSecured() {
		t.Fatal("fresh session should not be secured")
	}

	var a2c, c2a [32]byte
	a2c[0] = 1
	c2a[0] = 2
	s.MarkPendingSecure(a2c, c2a)
	if s.IsSecured() {
		t.Fatal("pending-secure session should not yet report secured")
	}

	s.CommitSecure()
	if !s.IsSecured() {
		t.Fatal("expected session to be secured after CommitSecure")
	}
	if s.AccessoryToController != a2c || s.ControllerToAccessory != c2a {
		t.Fatal("directional keys were not preserved across CommitSecure")
	}

	s.Unsecure()
	if s.IsSecured() {
		t.Fatal("expected session to be unsecured after Unsecure")
	}
	if s.AccessoryToController != ([32]byte{}) {
		t.Fatal("expected directional keys to be cleared on Unsecure")
	}
}

func TestNonceCountersIncrementIndependently(t *testing.T) {
	s := New()
	if n := s.NextSendNonce(); n != 0 {
		t.Fatalf("first send nonce = %d, want 0", n)
	}
	if n := s.NextSendNonce(); n != 1 {
		t.Fatalf("second send nonce = %d, want 1", n)
	}
	if n := s.NextRecvNonce(); n != 0 {
		t.Fatalf("first recv nonce = %d, want 0 (independent of send counter)", n)
	}
}

func TestTouchUpdatesActivity(t *testing.T) {
	s := New()
	before := s.IdleFor()
	s.Touch()
	after := s.IdleFor()
	if after > before {
		t.Fatal("IdleFor should not increase immediately after Touch")
	}
}
