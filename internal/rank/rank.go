package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"vpnswap/internal/model"
)

// Weight scores an endpoint: floor((100 - load - latency) * 100). Higher is
// better. The result is not clamped and may be negative.
func Weight(loadPercent int, meanLatencyMs float64) int {
	x := (100 - float64(loadPercent) - meanLatencyMs) * 100
	// Whole-number results like 8185 come out as 8184.999...; nudge before flooring.
	return int(math.Floor(x + weightEpsilon))
}

const weightEpsilon = 1e-9

// Prober is the latency source used by Score.
type Prober interface {
	Probe(ctx context.Context, host string, count int, timeout time.Duration) model.LatencySample
}

// Score probes each endpoint in fetch order and attaches its weight.
func Score(ctx context.Context, p Prober, endpoints []model.Endpoint, count int, timeout time.Duration) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(endpoints))
	for i, ep := range endpoints {
		sample := p.Probe(ctx, ep.Hostname, count, timeout)
		out = append(out, model.ScoredCandidate{
			Endpoint:    ep,
			MeanLatency: sample.MeanMs,
			Weight:      Weight(ep.LoadPercent, sample.MeanMs),
			Index:       i,
		})
	}
	return out
}

// Order returns a copy sorted by weight descending. Equal weights keep fetch order.
func Order(cands []model.ScoredCandidate) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Index < out[j].Index
	})
	return out
}
