package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentfleet/agenthub/store"
)

func writeTestFile(t *testing.T, root, key, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestFileStore_List_EmptyDir(t *testing.T) {
	st := store.NewFileStore(t.TempDir())

	keys, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() returned %d keys, want 0", len(keys))
	}
}

func TestFileStore_List_MissingRoot(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "nonexistent"))

	keys, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() returned %d keys, want 0", len(keys))
	}
}

func TestFileStore_List_TeamSnapshots(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "teams/default.json", "{}")
	writeTestFile(t, root, "teams/payments.json", "{}")

	st := store.NewFileStore(root)
	keys, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"teams/default.json", "teams/payments.json"}
	if len(keys) != len(want) {
		t.Fatalf("List() returned %d keys, want %d", len(keys), len(want))
	}
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, key, want[i])
		}
	}
}

func TestFileStore_List_SkipsHidden(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "teams/default.json", "{}")
	writeTestFile(t, root, ".tmp-12345", "partial write")

	st := store.NewFileStore(root)
	keys, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("List() returned %d keys, want 1", len(keys))
	}
	if keys[0] != "teams/default.json" {
		t.Errorf("List()[0] = %q, want %q", keys[0], "teams/default.json")
	}
}

func TestFileStore_Load(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "teams/payments.json", `{"team":"payments"}`)

	st := store.NewFileStore(root)
	entries, err := st.Load(context.Background(), "teams/payments.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Load() returned %d entries, want 1", len(entries))
	}
	if string(entries[0].Value) != `{"team":"payments"}` {
		t.Errorf("Load() value = %q, want %q", entries[0].Value, `{"team":"payments"}`)
	}
}

func TestFileStore_Load_MissingKey(t *testing.T) {
	st := store.NewFileStore(t.TempDir())

	_, err := st.Load(context.Background(), "teams/ghost.json")
	if !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("Load() error = %v, want ErrKeyNotFound", err)
	}
}

func TestFileStore_Save_RoundTrip(t *testing.T) {
	root := t.TempDir()
	st := store.NewFileStore(root)

	err := st.Save(context.Background(), store.Entry{
		Key:   "teams/default.json",
		Value: []byte(`{"team":"default"}`),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := st.Load(context.Background(), "teams/default.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(entries[0].Value) != `{"team":"default"}` {
		t.Errorf("round trip value = %q, want %q", entries[0].Value, `{"team":"default"}`)
	}
}

func TestFileStore_Save_Overwrite(t *testing.T) {
	root := t.TempDir()
	st := store.NewFileStore(root)
	ctx := context.Background()

	if err := st.Save(ctx, store.Entry{Key: "teams/default.json", Value: []byte("v1")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Save(ctx, store.Entry{Key: "teams/default.json", Value: []byte("v2")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := st.Load(ctx, "teams/default.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(entries[0].Value) != "v2" {
		t.Errorf("value after overwrite = %q, want %q", entries[0].Value, "v2")
	}
}

func TestFileStore_Save_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	st := store.NewFileStore(root)

	if err := st.Save(context.Background(), store.Entry{Key: "teams/default.json", Value: []byte("{}")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "teams"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("teams/ holds %d entries, want 1", len(entries))
	}
}

func TestFileStore_Delete(t *testing.T) {
	root := t.TempDir()
	st := store.NewFileStore(root)
	ctx := context.Background()

	if err := st.Save(ctx, store.Entry{Key: "teams/payments.json", Value: []byte("{}")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Delete(ctx, "teams/payments.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	keys, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() after delete returned %d keys, want 0", len(keys))
	}
}

func TestFileStore_Delete_MissingKey(t *testing.T) {
	st := store.NewFileStore(t.TempDir())

	if err := st.Delete(context.Background(), "teams/ghost.json"); err != nil {
		t.Errorf("Delete() of missing key error = %v, want nil", err)
	}
}
