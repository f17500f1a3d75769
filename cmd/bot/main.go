package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"visitbot/internal/app"
	"visitbot/internal/config"
	"visitbot/internal/logging"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		log.Error().Err(err).Msg("start failed")
		os.Exit(1)
	}

	// Only the log level is applied live; everything else needs a restart.
	if err := config.Watch(ctx, cfgPath, log, func(next *config.Config) {
		log = log.Level(logging.ParseLevel(next.Logging.Level))
	}); err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info().Str("config", cfgPath).Msg("visitbot running")

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	a.Stop(stopCtx)
}
