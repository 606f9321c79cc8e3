package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"golang.org/x/image/bmp"

	"dimlayer/internal/config"
)

func TestRunWritesScreenshot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shots", "dim.bmp")
	storage := fstest.MapFS{config.DefaultPath: {Data: []byte("brightness=0\n")}}

	if err := run(context.Background(), storage, out, 2); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1920 || b.Dy() != 1080 {
		t.Fatalf("expected 1920x1080, got %v", b)
	}
	if r, g, b, _ := img.At(42, 42).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected a fully dimmed screen, got %d %d %d", r, g, b)
	}
}

func TestOpenStorageWritesBrightness(t *testing.T) {
	storage, cleanup, err := openStorage("", 0)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	data, err := fs.ReadFile(storage, config.DefaultPath)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if string(data) != "brightness=0\n" {
		t.Fatalf("unexpected settings %q", data)
	}

	out := filepath.Join(t.TempDir(), "dim.bmp")
	if err := run(context.Background(), storage, out, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	cleanup()
	if _, err := fs.Stat(storage, config.DefaultPath); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected the volume removed, got %v", err)
	}
}

func TestOpenStorageRejectsFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.ini")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := openStorage(path, -1); err == nil {
		t.Fatal("expected a file root to be rejected")
	}
	if _, _, err := openStorage(filepath.Join(path, "missing"), -1); err == nil {
		t.Fatal("expected a missing root to be rejected")
	}
}
