package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"vpnswap/internal/model"
)

// OverheadShare is the part of the WAN-to-tunnel gap accepted as normal
// tunnel overhead. The rest still counts as degradation.
const OverheadShare = 0.5

// Calibration carries the inputs and result of one calibration.
type Calibration struct {
	WANAvgMbps    float64
	TunnelAvgMbps float64
	Tunneled      int
	ThresholdMbps float64
}

// DynamicThreshold is tunnelAvg - (wanAvg - tunnelAvg) * OverheadShare.
func DynamicThreshold(wanAvg, tunnelAvg float64) float64 {
	overhead := wanAvg - tunnelAvg
	return tunnelAvg - overhead*OverheadShare
}

// Calibrate derives a new threshold by comparing untunneled WAN throughput
// with throughput through each candidate, restores the original endpoint, and
// persists the threshold.
//
// WAN samples that fail count as 0 against a fixed denominator, while the
// tunnel average only covers successful measurements.
func Calibrate(ctx context.Context, d Deps) (cal Calibration, err error) {
	d.normalize()
	log := d.Log.Named("calibrate")
	cfg := d.Config

	snapshot, err := d.Tunnel.Active(ctx)
	if err != nil {
		return cal, fmt.Errorf("%w: snapshot active endpoint: %w", model.ErrCalibration, err)
	}
	log.Info("calibration started", zap.String("snapshot", snapshot.Hostname), zap.String("address", snapshot.Address))

	var wanSum float64
	for i := 0; i < cfg.WANSampleCount; i++ {
		mbps, err := d.Speed.Measure(ctx, cfg.WANInterface)
		if err != nil {
			log.Warn("wan sample failed, counting as 0", zap.Int("sample", i+1), zap.Error(err))
			continue
		}
		log.Info("wan sample", zap.Int("sample", i+1), zap.Float64("mbps", mbps))
		d.record(model.KindWAN, "", mbps, 0)
		wanSum += mbps
	}
	cal.WANAvgMbps = wanSum / float64(cfg.WANSampleCount)

	eps, err := fetchEndpoints(ctx, d)
	if err != nil {
		return cal, fmt.Errorf("%w: %w", model.ErrCalibration, err)
	}

	applied := false
	var appliedHosts []string
	defer func() {
		if !applied {
			return
		}
		if snapshot.Address == "" {
			log.Warn("no original endpoint recorded, leaving last candidate active", zap.Strings("applied", appliedHosts))
			return
		}
		// Restore on a fresh context so a cancelled run still puts the original back.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()
		if rerr := d.Tunnel.Apply(rctx, snapshot); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("restore %s: %w", snapshot.Hostname, rerr))
			return
		}
		log.Info("original endpoint restored", zap.String("hostname", snapshot.Hostname))
	}()

	settle := time.Duration(cfg.SettleSec) * time.Second
	var tunnelSum float64
	for _, ep := range eps {
		if cerr := ctx.Err(); cerr != nil {
			return cal, cerr
		}
		applied = true
		appliedHosts = append(appliedHosts, ep.Hostname)
		if aerr := d.Tunnel.Apply(ctx, ep); aerr != nil {
			log.Warn("apply failed", zap.String("hostname", ep.Hostname), zap.Error(aerr))
			continue
		}
		if serr := d.Sleep(ctx, settle); serr != nil {
			return cal, serr
		}
		mbps, merr := d.Speed.Measure(ctx, cfg.TunnelInterface)
		if merr != nil {
			log.Warn("tunnel sample failed", zap.String("hostname", ep.Hostname), zap.Error(merr))
			continue
		}
		log.Info("tunnel sample", zap.String("hostname", ep.Hostname), zap.Float64("mbps", mbps))
		d.record(model.KindTunnel, ep.Hostname, mbps, 0)
		tunnelSum += mbps
		cal.Tunneled++
	}

	if cal.Tunneled == 0 {
		return cal, fmt.Errorf("%w: no tunneled measurement succeeded across %d candidates", model.ErrCalibration, len(eps))
	}
	cal.TunnelAvgMbps = tunnelSum / float64(cal.Tunneled)
	cal.ThresholdMbps = DynamicThreshold(cal.WANAvgMbps, cal.TunnelAvgMbps)

	log.Info("threshold computed",
		zap.Float64("wan_avg_mbps", cal.WANAvgMbps),
		zap.Float64("tunnel_avg_mbps", cal.TunnelAvgMbps),
		zap.Int("tunneled", cal.Tunneled),
		zap.Float64("threshold_mbps", cal.ThresholdMbps),
	)
	if cal.ThresholdMbps <= 0 {
		return cal, fmt.Errorf("%w: computed threshold %.2f Mbps is not positive", model.ErrCalibration, cal.ThresholdMbps)
	}
	if perr := d.SaveThreshold(cal.ThresholdMbps); perr != nil {
		return cal, fmt.Errorf("persist threshold: %w", perr)
	}
	return cal, nil
}
