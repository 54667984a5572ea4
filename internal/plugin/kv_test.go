package plugin

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/zap"
)

func testKV(t *testing.T, pluginID string, quota Quota) *KV {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewKV(pluginID, db, quota)
}

func TestRegistryKVLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	r := NewRegistry(NewRefSource(), db, bus.New(), zap.NewNop())
	ctx := context.Background()

	if _, err := r.KV("echo-bot"); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("KV before install error = %v, want ErrNotInstalled", err)
	}

	if _, err := r.Apply(ctx, InstallAction("echo-bot@1.0")); err != nil {
		t.Fatal(err)
	}
	kv, err := r.KV("echo-bot")
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set("greeting", []byte("hello")); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Apply(ctx, UninstallAction("echo-bot")); err != nil {
		t.Fatal(err)
	}

	// Uninstall purges the plugin's storage and revokes access.
	got, err := db.PluginKVGet("echo-bot", "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("stored value survived uninstall: %q", got)
	}
	if _, err := r.KV("echo-bot"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("KV after uninstall error = %v, want ErrNotInstalled", err)
	}
}

func TestKVRoundtrip(t *testing.T) {
	kv := testKV(t, "echo-bot", DefaultQuota())

	if err := kv.Set("greeting", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := kv.Get("greeting")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Get() = %q, want hello", got)
	}

	absent, err := kv.Get("missing")
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Errorf("Get(missing) = %q, want nil", absent)
	}
}

func TestKVValueTooLarge(t *testing.T) {
	kv := testKV(t, "echo-bot", Quota{MaxKeys: 10, MaxValueBytes: 4})

	if err := kv.Set("k", []byte("12345")); err == nil {
		t.Error("Set() over value limit should fail")
	}
	if err := kv.Set("k", []byte("1234")); err != nil {
		t.Errorf("Set() at value limit failed: %v", err)
	}
}

func TestKVKeyQuota(t *testing.T) {
	kv := testKV(t, "echo-bot", Quota{MaxKeys: 2, MaxValueBytes: 64})

	if err := kv.Set("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set("b", []byte("2")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set("c", []byte("3")); err == nil {
		t.Error("Set() over key quota should fail")
	}
	// Overwriting an existing key is not a new key and stays allowed.
	if err := kv.Set("a", []byte("updated")); err != nil {
		t.Errorf("overwrite at key quota failed: %v", err)
	}
}

func TestKVDeleteAndClear(t *testing.T) {
	kv := testKV(t, "echo-bot", DefaultQuota())

	for _, k := range []string{"one", "two", "three"} {
		if err := kv.Set(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := kv.Delete("two"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Delete("two"); err != nil {
		t.Errorf("deleting absent key should be a no-op: %v", err)
	}

	keys, bytesUsed, err := kv.Usage()
	if err != nil {
		t.Fatal(err)
	}
	if keys != 2 {
		t.Errorf("Usage keys = %d, want 2", keys)
	}
	if bytesUsed != int64(len("one")+len("three")) {
		t.Errorf("Usage bytes = %d, want %d", bytesUsed, len("one")+len("three"))
	}

	if err := kv.Clear(); err != nil {
		t.Fatal(err)
	}
	keys, _, err = kv.Usage()
	if err != nil {
		t.Fatal(err)
	}
	if keys != 0 {
		t.Errorf("keys after Clear = %d, want 0", keys)
	}
}

func TestKVKeysPrefix(t *testing.T) {
	kv := testKV(t, "echo-bot", DefaultQuota())

	for _, k := range []string{"cfg.color", "cfg.size", "state.count"} {
		if err := kv.Set(k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := kv.Keys("cfg.")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys(cfg.) = %v, want 2 entries", keys)
	}
}

func TestKVNamespaceIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	a := NewKV("plugin-a", db, DefaultQuota())
	b := NewKV("plugin-b", db, DefaultQuota())

	if err := a.Set("shared-key", []byte("a")); err != nil {
		t.Fatal(err)
	}
	got, err := b.Get("shared-key")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("plugin-b sees plugin-a's key: %q", got)
	}
}
