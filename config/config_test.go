package config

import (
	"os"
	"testing"
)

func testIdentity() Identity {
	return Identity{
		Name: "Test Lamp", Model: "TL1", Manufacturer: "Acme",
		Serial: "0001", Firmware: "1.0", Hardware: "1.0", Category: 5,
	}
}

func TestInitFallsBackToManufacturingReset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	c, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if c.ConfigNum != 1 {
		t.Fatalf("ConfigNum = %d, want 1 after first manufacturing reset", c.ConfigNum)
	}
	if c.GSN != 1 {
		t.Fatalf("GSN = %d, want 1", c.GSN)
	}
	if c.Status&StatusNotPaired == 0 {
		t.Fatal("fresh config should report NotPaired")
	}
	if c.Verifier == nil {
		t.Fatal("Reset should have derived an SRP verifier")
	}
}

func TestInitLoadsPersistedState(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	first, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	firstDeviceID := first.DeviceID

	second, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if second.DeviceID != firstDeviceID {
		t.Fatal("second Init should load the persisted device id, not regenerate one")
	}
	if second.Name != "Test Lamp" {
		t.Fatalf("Name = %q, want %q", second.Name, "Test Lamp")
	}
}

func TestResetBumpsConfigNumAndClearsPairings(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	c, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.Pairings.Insert([]byte("ctrl-1"), make([]byte, 32), PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	priorConfigNum := c.ConfigNum
	if err := c.Reset(true, testIdentity()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if c.ConfigNum <= priorConfigNum {
		t.Fatalf("ConfigNum did not increase on reset: %d -> %d", priorConfigNum, c.ConfigNum)
	}
	if c.Pairings.Count() != 0 {
		t.Fatal("manufacturing reset should clear pairings")
	}
	if c.GSN != 1 {
		t.Fatal("reset should reset GSN to 1")
	}
}

func TestUpdateClearsNotPairedOnceAPairingExists(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	c, err := Init(store, testIdentity())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.Pairings.Insert([]byte("ctrl-1"), make([]byte, 32), PermAdmin); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.Update(false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if c.Status&StatusNotPaired != 0 {
		t.Fatal("Update should clear NotPaired once a controller is present")
	}
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	if _, err := Init(store, testIdentity()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected store directory to be removed")
	}
}
