// Package monitor holds the per-invocation decision logic: the speed gate,
// threshold calibration, and the coordinator that sequences them.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vpnswap/internal/config"
	"vpnswap/internal/failover"
	"vpnswap/internal/logx"
	"vpnswap/internal/metrics"
	"vpnswap/internal/model"
	"vpnswap/internal/rank"
)

// Fetcher returns candidate endpoints from the directory provider.
type Fetcher interface {
	Fetch(ctx context.Context, filterURL string) ([]model.Endpoint, error)
}

// Measurer returns download throughput in Mbps through iface ("" = unbound).
type Measurer interface {
	Measure(ctx context.Context, iface string) (float64, error)
}

// Tunnel is the tunnel control surface the monitor needs.
type Tunnel interface {
	Apply(ctx context.Context, ep model.Endpoint) error
	Active(ctx context.Context) (model.Endpoint, error)
	Enabled(ctx context.Context) (bool, error)
}

// Failover tries ordered candidates until one connects.
type Failover interface {
	Run(ctx context.Context, ordered []model.ScoredCandidate) (failover.Result, error)
}

// Deps wires the collaborators of one invocation.
type Deps struct {
	Config   config.Config
	Fetcher  Fetcher
	Prober   rank.Prober
	Speed    Measurer
	Tunnel   Tunnel
	Failover Failover
	// Sleep is used for the settle interval during calibration.
	Sleep failover.Sleeper
	// SaveThreshold persists a calibrated threshold.
	SaveThreshold func(mbps float64) error
	Log           *zap.Logger
	Now           func() time.Time
}

func (d *Deps) normalize() {
	d.Log = logx.OrNop(d.Log)
	if d.Sleep == nil {
		d.Sleep = failover.Sleep
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SaveThreshold == nil {
		path := d.Config.Path
		d.SaveThreshold = func(mbps float64) error { return config.SaveThreshold(path, mbps) }
	}
}

// Candidates runs fetch -> truncate -> probe -> score -> order.
func Candidates(ctx context.Context, d Deps) ([]model.ScoredCandidate, error) {
	d.normalize()
	log := d.Log.Named("candidates")
	eps, err := fetchEndpoints(ctx, d)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(d.Config.PingTimeoutSec) * time.Second
	scored := rank.Score(ctx, d.Prober, eps, d.Config.PingSampleCount, timeout)
	ordered := rank.Order(scored)
	for i, c := range ordered {
		log.Debug("ranked",
			zap.Int("rank", i+1),
			zap.String("hostname", c.Endpoint.Hostname),
			zap.Int("load", c.Endpoint.LoadPercent),
			zap.Float64("latency_ms", c.MeanLatency),
			zap.Int("weight", c.Weight),
		)
	}
	return ordered, nil
}

func fetchEndpoints(ctx context.Context, d Deps) ([]model.Endpoint, error) {
	eps, err := d.Fetcher.Fetch(ctx, d.Config.EndpointDirectory)
	if err != nil {
		return nil, err
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("%w: no endpoints returned", model.ErrFetch)
	}
	if limit := d.Config.MaxCandidateServers; limit > 0 && len(eps) > limit {
		eps = eps[:limit]
	}
	d.Log.Info("fetched candidates", zap.Int("count", len(eps)))
	return eps, nil
}

func (d Deps) record(kind, hostname string, mbps, threshold float64) {
	if d.Config.MetricsPath == "" {
		return
	}
	m := model.Measurement{
		Timestamp:     d.Now().UTC(),
		Instance:      d.Config.SettingsPrefix(),
		Kind:          kind,
		Hostname:      hostname,
		Mbps:          mbps,
		ThresholdMbps: threshold,
	}
	if err := metrics.AppendCSV(d.Config.MetricsPath, []model.Measurement{m}); err != nil {
		d.Log.Warn("append history failed", zap.String("path", d.Config.MetricsPath), zap.Error(err))
	}
}
