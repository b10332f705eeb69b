package speedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vpnswap/internal/execx"
	"vpnswap/internal/logx"
	"vpnswap/internal/model"
)

// BytesPerMbps converts the tool's bytes/s bandwidth into Mbps (1e6 bits / 8).
const BytesPerMbps = 125000.0

// Tester runs the speed-test CLI and reports download throughput.
type Tester struct {
	r       execx.Runner
	bin     string
	timeout time.Duration
	log     *zap.Logger
}

func NewTester(r execx.Runner, bin string, timeout time.Duration, log *zap.Logger) *Tester {
	if bin == "" {
		bin = "speedtest"
	}
	return &Tester{r: r, bin: bin, timeout: timeout, log: logx.OrNop(log).Named("speedtest")}
}

// Measure returns download Mbps through iface. An empty iface lets the tool
// pick its own route. Missing or non-numeric output wraps model.ErrMeasurement.
func (t *Tester) Measure(ctx context.Context, iface string) (float64, error) {
	args := []string{"--format=json", "--accept-license", "--accept-gdpr"}
	if iface != "" {
		args = append(args, "-I", iface)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.r.Output(ctx, t.bin, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", model.ErrMeasurement, t.bin, err)
	}
	mbps, err := ParseMbps(out)
	if err != nil {
		return 0, err
	}
	t.log.Debug("measured", zap.String("iface", iface), zap.Float64("mbps", mbps), zap.Duration("took", time.Since(start)))
	return mbps, nil
}

type result struct {
	Type     string `json:"type"`
	Download *struct {
		Bandwidth *json.Number `json:"bandwidth"`
	} `json:"download"`
}

// ParseMbps reads the download bandwidth from the tool's JSON output. The
// tool may interleave log objects, so every line is inspected.
func ParseMbps(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var res result
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			continue
		}
		if res.Download == nil || res.Download.Bandwidth == nil {
			continue
		}
		bps, err := res.Download.Bandwidth.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: bandwidth %q", model.ErrMeasurement, res.Download.Bandwidth.String())
		}
		if bps < 0 {
			return 0, fmt.Errorf("%w: negative bandwidth %v", model.ErrMeasurement, bps)
		}
		return bps / BytesPerMbps, nil
	}
	return 0, fmt.Errorf("%w: no download bandwidth in output", model.ErrMeasurement)
}
