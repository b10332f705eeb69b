package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vpnswap/internal/failover"
	"vpnswap/internal/lock"
	"vpnswap/internal/model"
)

// Mode selects what one invocation does. Flags combine: calibration runs
// first and always forces a speed test, and a forced update replaces the
// gate's conditional failover.
type Mode struct {
	SpeedTest bool
	Force     bool
	Calibrate bool
}

// Report summarises one invocation for the CLI.
type Report struct {
	ThresholdMbps float64
	Calibration   *Calibration
	Gate          *GateResult
	Failover      *failover.Result
}

// Run executes mode under the per-instance lock.
func Run(ctx context.Context, d Deps, mode Mode) (Report, error) {
	d.normalize()
	log := d.Log.Named("run")
	rep := Report{ThresholdMbps: d.Config.SpeedThresholdMbps}

	if path := d.Config.LockFile; path != "" {
		l, err := lock.Acquire(path)
		if err != nil {
			return rep, err
		}
		defer func() {
			if err := l.Release(); err != nil {
				log.Warn("release lock", zap.Error(err))
			}
		}()
	}

	enabled, err := d.Tunnel.Enabled(ctx)
	if err != nil {
		return rep, fmt.Errorf("read instance state: %w", err)
	}
	if !enabled {
		return rep, fmt.Errorf("%w: %s", model.ErrInstanceDisabled, d.Config.SettingsPrefix())
	}

	if !mode.SpeedTest && !mode.Force && !mode.Calibrate {
		mode.SpeedTest = true
	}

	if mode.Calibrate {
		cal, err := Calibrate(ctx, d)
		rep.Calibration = &cal
		if err != nil {
			return rep, err
		}
		rep.ThresholdMbps = cal.ThresholdMbps
		mode.SpeedTest = true
	}

	if mode.Force {
		log.Info("forced update")
		fo, err := Update(ctx, d)
		rep.Failover = &fo
		return rep, err
	}

	if mode.SpeedTest {
		g, err := Evaluate(ctx, d, rep.ThresholdMbps)
		rep.Gate = &g
		rep.Failover = g.Failover
		return rep, err
	}
	return rep, nil
}
