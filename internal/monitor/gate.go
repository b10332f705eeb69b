package monitor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vpnswap/internal/failover"
	"vpnswap/internal/model"
)

// GateResult is the outcome of one speed gate evaluation.
type GateResult struct {
	SpeedMbps     float64
	ThresholdMbps float64
	Updated       bool
	Failover      *failover.Result
}

// Evaluate measures tunnel throughput once and fails over when it is below
// threshold. A failed measurement is retried once without interface binding.
func Evaluate(ctx context.Context, d Deps, threshold float64) (GateResult, error) {
	d.normalize()
	log := d.Log.Named("gate")
	res := GateResult{ThresholdMbps: threshold}

	iface := d.Config.TunnelInterface
	speed, err := d.Speed.Measure(ctx, iface)
	if err != nil {
		if !errors.Is(err, model.ErrMeasurement) {
			return res, err
		}
		log.Warn("tunnel measurement failed, retrying unbound", zap.String("iface", iface), zap.Error(err))
		speed, err = d.Speed.Measure(ctx, "")
		if err != nil {
			return res, fmt.Errorf("speed gate: %w", err)
		}
	}
	res.SpeedMbps = speed

	active, err := d.Tunnel.Active(ctx)
	if err != nil {
		log.Warn("read active endpoint failed", zap.Error(err))
	}
	d.record(model.KindGate, active.Hostname, speed, threshold)

	if speed >= threshold {
		log.Info("speed ok", zap.Float64("mbps", speed), zap.Float64("threshold_mbps", threshold), zap.String("hostname", active.Hostname))
		return res, nil
	}

	log.Warn("speed below threshold, failing over", zap.Float64("mbps", speed), zap.Float64("threshold_mbps", threshold), zap.String("hostname", active.Hostname))
	fo, err := Update(ctx, d)
	res.Failover = &fo
	if err != nil {
		return res, err
	}
	res.Updated = true
	return res, nil
}

// Update ranks fresh candidates and runs failover over them.
func Update(ctx context.Context, d Deps) (failover.Result, error) {
	d.normalize()
	ordered, err := Candidates(ctx, d)
	if err != nil {
		return failover.Result{State: failover.Idle}, err
	}
	return d.Failover.Run(ctx, ordered)
}
