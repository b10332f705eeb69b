package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vpnswap/internal/config"
	"vpnswap/internal/directory"
	"vpnswap/internal/execx"
	"vpnswap/internal/failover"
	"vpnswap/internal/latency"
	"vpnswap/internal/logx"
	"vpnswap/internal/model"
	"vpnswap/internal/monitor"
	"vpnswap/internal/netcheck"
	"vpnswap/internal/settings"
	"vpnswap/internal/speedtest"
	"vpnswap/internal/tunnel"
)

// env is everything one invocation needs, built from the config file.
type env struct {
	cfg    config.Config
	log    *zap.Logger
	tunnel *tunnel.Controller
	deps   monitor.Deps
	close  func()
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setup(f *rootFlags) (*env, error) {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logx.New(logx.Options{
		Instance: cfg.SettingsPrefix(),
		File:     cfg.LogFile,
		Verbose:  f.verbose,
		Console:  os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	runner := execx.NewOSRunner(nil, nil)
	store, err := settings.Open(cfg.SettingsBackend, cfg.SettingsPath, runner)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}

	ctl := tunnel.NewController(store, runner, tunnel.Options{
		Prefix:         cfg.SettingsPrefix(),
		Interface:      cfg.TunnelInterface,
		RestartCommand: cfg.RestartCommand,
	}, log)

	pingTimeout := time.Duration(cfg.PingTimeoutSec) * time.Second
	check := netcheck.All{netcheck.NewPing(runner, cfg.TunnelInterface, cfg.TestDestinationIP, pingTimeout)}
	if cfg.VerifyEgress {
		check = append(check, netcheck.NewEgress(cfg.STUNServer, cfg.TunnelInterface, cfg.WANInterface, pingTimeout))
	}

	fo := failover.New(ctl, check, failover.Options{
		MaxAttempts: cfg.MaxFailoverAttempts,
		Settle:      time.Duration(cfg.SettleSec) * time.Second,
	}, log)

	deps := monitor.Deps{
		Config:   cfg,
		Fetcher:  directory.NewFetcher(cfg.WANInterface, time.Duration(cfg.FetchTimeoutSec)*time.Second),
		Prober:   latency.NewSampler(runner, cfg.SentinelLatencyMs, log),
		Speed:    speedtest.NewTester(runner, cfg.SpeedtestBin, time.Duration(cfg.SpeedtestTimeoutSec)*time.Second, log),
		Tunnel:   ctl,
		Failover: fo,
		Log:      log,
	}

	return &env{
		cfg:    cfg,
		log:    log,
		tunnel: ctl,
		deps:   deps,
		close:  func() { _ = closeLog() },
	}, nil
}
