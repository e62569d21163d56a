// netplayd is the authoritative relay server: it accepts clients,
// allocates entity identities, rebroadcasts game traffic and persists
// match statistics.
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openduel/netplay"
)

func main() {
	configPath := flag.String("config", "config/netplayd.yml", "path to the YAML config")
	flag.Parse()

	cfg, err := netplay.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal(err)
		}
		cfg = netplay.DefaultConfig()
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	stats, err := netplay.OpenStats(cfg.StatsPath)
	if err != nil {
		logger.Fatal("stats db", zap.Error(err))
	}
	defer stats.Close()

	lnr, err := netplay.Listen(cfg, logger)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	defer lnr.Close()
	logger.Info("listening", zap.String("addr", lnr.Addr().String()))

	h := newRelay(lnr, stats, logger)
	lnr.DisconnectFunc = h.onDropped

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Second / time.Duration(cfg.TickRate))
	defer tick.Stop()
	for {
		select {
		case <-sig:
			logger.Info("shutting down")
			return
		case <-tick.C:
			if err := lnr.Drain(h); err != nil {
				logger.Error("drain", zap.Error(err))
			}
			if err := lnr.SendPending(); err != nil {
				logger.Error("send", zap.Error(err))
			}
		}
	}
}
