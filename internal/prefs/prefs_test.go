package prefs

import (
	"path/filepath"
	"testing"
)

func TestMemoryKV(t *testing.T) {
	kv := NewMemory()

	if _, ok, err := kv.Get(KeyDeviceUUID); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(KeyDeviceUUID, "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := kv.Get(KeyDeviceUUID)
	if err != nil || !ok || v != "abc" {
		t.Fatalf("expected abc, got %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(KeyDeviceUUID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(KeyDeviceUUID); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestSQLiteKV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	kv, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := kv.Set(KeyFirstUsername, "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// overwrite via primary key
	if err := kv.Set(KeyFirstUsername, "bob"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	v, ok, err := kv.Get(KeyFirstUsername)
	if err != nil || !ok || v != "bob" {
		t.Fatalf("expected bob, got %q ok=%v err=%v", v, ok, err)
	}

	if err := kv.Delete(KeyFirstUsername); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(KeyFirstUsername); ok {
		t.Fatalf("expected key deleted")
	}

	// values survive reopening the database
	if err := kv.Set(KeyDeviceUUID, "dev-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, err = reopened.Get(KeyDeviceUUID)
	if err != nil || !ok || v != "dev-1" {
		t.Fatalf("expected dev-1 after reopen, got %q ok=%v err=%v", v, ok, err)
	}
}
