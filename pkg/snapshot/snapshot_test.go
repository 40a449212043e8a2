package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oladejiayo/localzure-sub003/pkg/state"
)

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	_ = backend.Set(ctx, "keyvault", "secret1", map[string]interface{}{"value": "hunter2"}, 0)
	_ = backend.Set(ctx, "oauth", "client1", "active", 0)

	mgr := NewManager(backend, "memory")
	path := filepath.Join(t.TempDir(), "snap.gz")

	meta, err := mgr.Create(ctx, path, nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if meta.TotalKeys != 2 {
		t.Errorf("Create() TotalKeys = %d, want 2", meta.TotalKeys)
	}
	if meta.Checksum == "" {
		t.Error("Create() Checksum is empty")
	}

	restoreBackend := state.NewMemory()
	restoreMgr := NewManager(restoreBackend, "memory")
	restoredMeta, err := restoreMgr.Restore(ctx, path, true, false, true)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restoredMeta.Checksum != meta.Checksum {
		t.Errorf("Restore() checksum = %s, want %s", restoredMeta.Checksum, meta.Checksum)
	}

	value, found, err := restoreBackend.Get(ctx, "keyvault", "secret1")
	if err != nil || !found {
		t.Fatalf("Get() after restore = %v, %v, %v", value, found, err)
	}
}

func TestValidateAcceptsUntamperedSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	_ = backend.Set(ctx, "ns", "k", "v", 0)

	mgr := NewManager(backend, "memory")
	path := filepath.Join(t.TempDir(), "snap.gz")
	if _, err := mgr.Create(ctx, path, nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := Validate(path)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("Validate() = %+v, want valid", result)
	}
}

func TestPartialSnapshotByService(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	_ = backend.Set(ctx, "keyvault", "k1", "v1", 0)
	_ = backend.Set(ctx, "oauth", "k2", "v2", 0)

	mgr := NewManager(backend, "memory")
	path := filepath.Join(t.TempDir(), "partial.gz")

	meta, err := mgr.Create(ctx, path, nil, []string{"keyvault"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !meta.Partial {
		t.Error("Create() Partial = false, want true for service-scoped snapshot")
	}
	if len(meta.Namespaces) != 1 || meta.Namespaces[0] != "keyvault" {
		t.Errorf("Create() Namespaces = %v, want [keyvault]", meta.Namespaces)
	}
}

func TestListNamespaces(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	_ = backend.Set(ctx, "keyvault", "k", "v", 0)

	mgr := NewManager(backend, "memory")
	path := filepath.Join(t.TempDir(), "snap.gz")
	if _, err := mgr.Create(ctx, path, nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	names, err := ListNamespaces(path)
	if err != nil {
		t.Fatalf("ListNamespaces() error = %v", err)
	}
	if len(names) != 1 || names[0] != "keyvault" {
		t.Errorf("ListNamespaces() = %v, want [keyvault]", names)
	}
}
