package config

import "testing"

func TestFileStorePersistsPairings(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	c, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ltpk := make([]byte, 32)
	ltpk[3] = 0x42
	if err := c.Pairings.Insert([]byte("controller-xyz"), ltpk, PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := &Config{store: store, Pairings: NewPairings()}
	if err := store.Load(reloaded); err != nil {
		t.Fatalf("Load: %v", err)
	}

	found := reloaded.Pairings.Find([]byte("controller-xyz"))
	if found == nil {
		t.Fatal("expected persisted controller to survive a reload")
	}
	if found.Perm != PermAdmin || found.LTPK[3] != 0x42 {
		t.Fatalf("reloaded controller mismatch: %+v", found)
	}
}
