package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"dimlayer/app"
	"dimlayer/hal"
	"dimlayer/internal/buildinfo"
	"dimlayer/internal/config"
	"dimlayer/internal/logger"
)

func main() {
	root := flag.String("root", "sdmc", "directory backing the storage volume")
	window := flag.Bool("window", false, "show the simulated screen in a window")
	cycles := flag.Int("cycles", 0, "stop after N frames (0 = run until interrupted)")
	verbose := flag.Bool("v", false, "verbose logging")
	cfgPath := flag.String("config", config.DefaultPath, "settings file path inside the storage volume")
	flag.Parse()

	var err error
	var l *zap.Logger
	if *verbose || term.IsTerminal(int(os.Stderr.Fd())) {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	cfg := app.DefaultConfig()
	cfg.ConfigPath = *cfgPath
	cfg.Cycles = *cycles

	hcfg := hal.HostConfig{Root: *root}
	var preview *hal.Preview
	if *window {
		preview = hal.NewPreview("dimlayer "+buildinfo.Short(), hal.ScreenWidth/2, hal.ScreenHeight/2)
		hcfg.Sink = preview
	}
	h := hal.NewHost(hcfg)

	l.Info("starting", append(buildinfo.Fields(), zap.String("root", *root), zap.String("config", *cfgPath))...)
	run := func(ctx context.Context) error { return app.Run(ctx, h, cfg) }
	if preview != nil {
		err = hal.RunWindow(ctx, preview, run)
	} else {
		err = run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal("dimlayer stopped", zap.Error(err))
	}
	l.Info("stopped")
}
