package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func newTempFSStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return store
}

func TestFSStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempFSStore(t)

	info, err := store.Put(ctx, "runs/r1/de.csv", bytes.NewReader([]byte("feature,pval\n")), PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "runs/r1/de.csv" || info.Size != 13 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.ContentType != "text/csv" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}

	h, err := store.Head(ctx, "runs/r1/de.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.ETag != info.ETag {
		t.Fatalf("etag mismatch: %q vs %q", h.ETag, info.ETag)
	}

	g, rc, err := store.Get(ctx, "runs/r1/de.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "feature,pval\n" || g.Size != info.Size {
		t.Fatalf("unexpected get payload %q info %+v", b, g)
	}

	list, err := store.List(ctx, "runs/r1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "runs/r1/de.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	ok, err := store.Delete(ctx, "runs/r1/de.csv")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "runs/r1/de.csv")
	if err != nil || ok {
		t.Fatalf("second delete should report missing: ok=%v err=%v", ok, err)
	}
}

func TestFSStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTempFSStore(t)

	if _, err := store.Put(ctx, "runs/r2/out.csv", bytes.NewReader([]byte("v1")), PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "runs/r2/out.csv", bytes.NewReader([]byte("v2")), PutOptions{}); err != nil {
		t.Fatalf("overwrite put: %v", err)
	}
	_, rc, err := store.Get(ctx, "runs/r2/out.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "v2" {
		t.Fatalf("expected overwritten content, got %q", b)
	}
}

func TestFSStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempFSStore(t)
	for _, key := range []string{"", "  ", "/abs/path", "../escape", "a/../../b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, DriverFilesystem, t.TempDir())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %q", fsStore.Driver())
	}
	memStore, err := Open(ctx, DriverMemory, "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if memStore.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %q", memStore.Driver())
	}
	if _, err := Open(ctx, "bogus", ""); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
