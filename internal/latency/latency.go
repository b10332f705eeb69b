package latency

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vpnswap/internal/execx"
	"vpnswap/internal/logx"
	"vpnswap/internal/model"
)

// DefaultSentinelMs is the mean latency reported when every probe fails.
const DefaultSentinelMs = 50.0

var rttPattern = regexp.MustCompile(`time[=<]\s*([0-9]+(?:\.[0-9]+)?)\s*ms`)

// Sampler measures round-trip time with the system ping tool.
type Sampler struct {
	r          execx.Runner
	sentinelMs float64
	log        *zap.Logger
}

func NewSampler(r execx.Runner, sentinelMs float64, log *zap.Logger) *Sampler {
	if sentinelMs <= 0 {
		sentinelMs = DefaultSentinelMs
	}
	return &Sampler{r: r, sentinelMs: sentinelMs, log: logx.OrNop(log).Named("latency")}
}

// Probe sends count single-packet pings to host one after another. It never
// fails: with zero replies the mean is the sentinel and Samples is empty.
func (s *Sampler) Probe(ctx context.Context, host string, count int, timeout time.Duration) model.LatencySample {
	waitSec := int(timeout / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}

	samples := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		pctx, cancel := context.WithTimeout(ctx, time.Duration(waitSec+1)*time.Second)
		out, err := s.r.Output(pctx, "ping", "-c", "1", "-W", strconv.Itoa(waitSec), host)
		cancel()
		if err != nil {
			s.log.Debug("probe failed", zap.String("host", host), zap.Int("probe", i+1), zap.Error(err))
			continue
		}
		rtt, ok := ParseRTT(out)
		if !ok {
			s.log.Debug("probe without rtt", zap.String("host", host), zap.Int("probe", i+1))
			continue
		}
		samples = append(samples, rtt)
	}

	if len(samples) == 0 {
		s.log.Warn("no ping replies, using sentinel latency", zap.String("host", host), zap.Float64("sentinel_ms", s.sentinelMs))
		return model.LatencySample{Samples: []float64{}, MeanMs: s.sentinelMs}
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	s.log.Debug("probed", zap.String("host", host), zap.Float64s("samples_ms", samples), zap.Float64("mean_ms", mean))
	return model.LatencySample{Samples: samples, MeanMs: mean}
}

// ParseRTT extracts the first reply time from ping output.
func ParseRTT(out string) (float64, bool) {
	m := rttPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
