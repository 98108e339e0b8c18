package main

import "testing"

func TestBuildDbExposesAccessoryInformation(t *testing.T) {
	db := buildDb()
	if _, err := db.SetId(); err != nil {
		t.Fatalf("SetId: %v", err)
	}
	accs := db.Accessories()
	if len(accs) != 1 {
		t.Fatalf("len(Accessories()) = %d, want 1", len(accs))
	}
	if !accs[0].HasAccessoryInformation() {
		t.Fatal("expected the first accessory to expose AccessoryInformation")
	}
}

func TestHomeDirRespectsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HAP_HOME", dir)
	if got := homeDir(); got != dir {
		t.Fatalf("homeDir() = %q, want %q", got, dir)
	}
}
