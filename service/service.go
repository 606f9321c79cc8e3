// Package service brings the platform services the overlay depends on up
// and down around the display layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dimlayer/hal"
	"dimlayer/internal/logger"
)

// InnerHeapSize is the private heap the process runs in. It must hold two
// framebuffers plus working memory.
const InnerHeapSize = 0x400000

// StorageVolume is the volume holding the settings file.
const StorageVolume = "sdmc"

var ErrNotStarted = errors.New("service: not started")

// Lifecycle starts and stops the heap, service manager, filesystem, storage
// mount and input session, in that order.
type Lifecycle struct {
	h      hal.HAL
	tuning hal.Tuning

	heap    bool
	sm      bool
	fs      bool
	mounted bool
	input   bool
	storage fs.FS
}

func New(h hal.HAL, tuning hal.Tuning) *Lifecycle {
	return &Lifecycle{h: h, tuning: tuning}
}

// Storage returns the mounted storage volume.
func (l *Lifecycle) Storage() fs.FS { return l.storage }

// Init brings every service up. If a step fails, the services already
// started are stopped again before the error is returned.
func (l *Lifecycle) Init(ctx context.Context) error {
	log := logger.L(ctx).Named("service")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"heap", func() error {
			if err := l.h.Heap().Initialize(InnerHeapSize); err != nil {
				return err
			}
			l.heap = true
			return nil
		}},
		{"service manager", func() error {
			if err := l.h.Services().Initialize(l.tuning); err != nil {
				return err
			}
			l.sm = true
			return nil
		}},
		{"filesystem", func() error {
			if err := l.h.Filesystem().Initialize(); err != nil {
				return err
			}
			l.fs = true
			return nil
		}},
		{"mount storage", func() error {
			root, err := l.h.Filesystem().Mount(StorageVolume)
			if err != nil {
				return err
			}
			l.storage = root
			l.mounted = true
			return nil
		}},
		{"input", func() error {
			if err := l.h.Input().Initialize(); err != nil {
				return err
			}
			l.input = true
			return nil
		}},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			log.Error("init failed", zap.String("step", s.name), zap.Error(err))
			_ = l.Exit(ctx)
			return fmt.Errorf("service: %s: %w", s.name, err)
		}
		log.Debug("started", zap.String("step", s.name))
	}
	log.Info("services up", zap.Uint32("nvTransferMem", l.tuning.NvTransferMemSize))
	return nil
}

// Exit stops every started service in reverse order. Every step runs even
// when an earlier one fails; failures are logged and returned combined.
func (l *Lifecycle) Exit(ctx context.Context) error {
	log := logger.L(ctx).Named("service")
	if !l.heap && !l.sm && !l.fs && !l.mounted && !l.input {
		return ErrNotStarted
	}

	var errs error
	run := func(name string, held *bool, fn func() error) {
		if !*held {
			return
		}
		*held = false
		if err := fn(); err != nil {
			log.Warn("exit failed", zap.String("step", name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		log.Debug("stopped", zap.String("step", name))
	}

	run("input", &l.input, l.h.Input().Exit)
	run("unmount storage", &l.mounted, l.h.Filesystem().UnmountAll)
	run("filesystem", &l.fs, l.h.Filesystem().Exit)
	run("service manager", &l.sm, l.h.Services().Exit)
	run("heap", &l.heap, l.h.Heap().Exit)
	l.storage = nil
	return errs
}
