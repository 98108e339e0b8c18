package config

import "testing"

func TestPairingsInsertFindRemove(t *testing.T) {
	p := NewPairings()
	ltpk := make([]byte, 32)
	ltpk[0] = 0xAB

	if err := p.Insert([]byte("ctrl-1"), ltpk, PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	found := p.Find([]byte("ctrl-1"))
	if found == nil || found.Perm != PermAdmin {
		t.Fatal("expected to find ctrl-1 with Admin permission")
	}
	if found.LTPK[0] != 0xAB {
		t.Fatal("LTPK not stored correctly")
	}

	if !p.Remove([]byte("ctrl-1")) {
		t.Fatal("Remove should report success")
	}
	if p.Find([]byte("ctrl-1")) != nil {
		t.Fatal("controller should be gone after Remove")
	}
}

func TestPairingsMaxPeers(t *testing.T) {
	p := NewPairings()
	for i := 0; i < NumPairingSlots; i++ {
		id := []byte{byte(i)}
		if err := p.Insert(id, make([]byte, 32), PermRegular); err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
	}
	if err := p.Insert([]byte("overflow"), make([]byte, 32), PermRegular); err != ErrMaxPeers {
		t.Fatalf("expected ErrMaxPeers, got %v", err)
	}
}

func TestPairingsAddOrUpdateRequiresKeyEquality(t *testing.T) {
	p := NewPairings()
	ltpk := make([]byte, 32)
	ltpk[0] = 1
	if err := p.AddOrUpdate([]byte("ctrl-1"), ltpk, PermRegular); err != nil {
		t.Fatalf("AddOrUpdate insert: %v", err)
	}

	otherKey := make([]byte, 32)
	otherKey[0] = 2
	if err := p.AddOrUpdate([]byte("ctrl-1"), otherKey, PermAdmin); err != ErrIdentifierMismatch {
		t.Fatalf("expected ErrIdentifierMismatch, got %v", err)
	}

	if err := p.AddOrUpdate([]byte("ctrl-1"), ltpk, PermAdmin); err != nil {
		t.Fatalf("AddOrUpdate update: %v", err)
	}
	if p.Find([]byte("ctrl-1")).Perm != PermAdmin {
		t.Fatal("expected permission to be updated to Admin")
	}
}

func TestPairingsEachSkipsEmptySlots(t *testing.T) {
	p := NewPairings()
	p.Insert([]byte("a"), make([]byte, 32), PermRegular)
	p.Insert([]byte("b"), make([]byte, 32), PermAdmin)

	count := 0
	p.Each(func(c *Controller) bool {
		count++
		return true
	})
	if count != 2 {
		t.Fatalf("Each visited %d controllers, want 2", count)
	}
}

func TestFindByResumeSessionID(t *testing.T) {
	p := NewPairings()
	p.Insert([]byte("ctrl-1"), make([]byte, 32), PermAdmin)
	c := p.Find([]byte("ctrl-1"))
	c.HasResumeState = true
	c.ResumeSessionID = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

	found := p.FindByResumeSessionID([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if found == nil || found.ID() != "ctrl-1" {
		t.Fatal("expected to resolve controller by resume session id")
	}
}
