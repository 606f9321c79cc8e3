// Command dimshot renders the overlay on the simulated screen and saves the
// result as a BMP image.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/bmp"

	"dimlayer/app"
	"dimlayer/hal"
	"dimlayer/internal/config"
)

const (
	defaultOutPath = "dimshot.bmp"
	defaultCycles  = 1
)

func main() {
	var root string
	var outPath string
	var brightness int
	var cycles int
	flag.StringVar(&root, "root", "sdmc", "Directory backing the storage volume.")
	flag.StringVar(&outPath, "out", defaultOutPath, "Output BMP path.")
	flag.IntVar(&brightness, "brightness", -1, "Render this brightness (0-100) instead of reading -root.")
	flag.IntVar(&cycles, "cycles", defaultCycles, "Frames to run before capturing.")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}
	if cycles <= 0 {
		fmt.Fprintln(os.Stderr, "error: -cycles must be positive")
		os.Exit(2)
	}

	storage, cleanup, err := openStorage(root, brightness)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	err = run(context.Background(), storage, outPath, cycles)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStorage returns the volume to read settings from. A non-negative
// brightness gets a temporary volume holding only that value.
func openStorage(root string, brightness int) (fs.FS, func(), error) {
	if brightness < 0 {
		st, err := os.Stat(root)
		if err != nil {
			return nil, nil, err
		}
		if !st.IsDir() {
			return nil, nil, fmt.Errorf("root %q is not a directory", root)
		}
		return os.DirFS(root), func() {}, nil
	}

	dir, err := os.MkdirTemp("", "dimshot")
	if err != nil {
		return nil, nil, fmt.Errorf("create volume: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	if err := writeSettings(dir, brightness); err != nil {
		cleanup()
		return nil, nil, err
	}
	return os.DirFS(dir), cleanup, nil
}

// writeSettings creates a settings file under root holding only brightness.
func writeSettings(root string, brightness int) error {
	path := filepath.Join(root, filepath.FromSlash(config.DefaultPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %q: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("brightness=%d\n", brightness)), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

func run(ctx context.Context, storage fs.FS, outPath string, cycles int) error {
	h := hal.NewHost(hal.HostConfig{Storage: storage, VsyncHz: 240})

	cfg := app.DefaultConfig()
	cfg.Interval = time.Millisecond
	cfg.Cycles = cycles
	if err := app.Run(ctx, h, cfg); err != nil {
		return fmt.Errorf("run overlay: %w", err)
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %q: %w", dir, err)
		}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", outPath, err)
	}
	if err := bmp.Encode(f, h.Screen().Snapshot()); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %q: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", outPath, err)
	}
	return nil
}
