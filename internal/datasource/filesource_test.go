package datasource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource_Open(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "page.json")
	if err := os.WriteFile(path, []byte(`{"records":[]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src := FileSource{Path: path}
	r, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != `{"records":[]}` {
		t.Errorf("body = %q", string(b))
	}
}

func TestFileSource_Open_MissingFile(t *testing.T) {
	t.Parallel()

	src := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	if _, err := src.Open(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFileSource_Open_RespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := FileSource{Path: filepath.Join(t.TempDir(), "unused.json")}
	if _, err := src.Open(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
