package failover

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vpnswap/internal/logx"
	"vpnswap/internal/model"
	"vpnswap/internal/netcheck"
)

// State is the applier's position in Idle -> Trying -> Connected|Exhausted.
type State int

const (
	Idle State = iota
	Trying
	Connected
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Trying:
		return "trying"
	case Connected:
		return "connected"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tunnel applies an endpoint and restarts the tunnel.
type Tunnel interface {
	Apply(ctx context.Context, ep model.Endpoint) error
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result reports how a run ended.
type Result struct {
	State    State
	Endpoint model.Endpoint // active endpoint after the run (last tried on exhaustion)
	Attempts int
}

// Applier tries candidates in order until one passes the connectivity check.
type Applier struct {
	tunnel      Tunnel
	check       netcheck.Checker
	settle      time.Duration
	maxAttempts int
	sleep       Sleeper
	log         *zap.Logger
}

// Options configures New.
type Options struct {
	MaxAttempts int
	Settle      time.Duration
	Sleep       Sleeper
}

func New(tunnel Tunnel, check netcheck.Checker, opts Options, log *zap.Logger) *Applier {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Applier{
		tunnel:      tunnel,
		check:       check,
		settle:      opts.Settle,
		maxAttempts: opts.MaxAttempts,
		sleep:       opts.Sleep,
		log:         logx.OrNop(log).Named("failover"),
	}
}

// Run applies ordered candidates one at a time. It stops at the first
// candidate that passes the check, or after maxAttempts candidates, or when
// the list runs out. Exhaustion wraps model.ErrFailoverExhausted and leaves
// the last tried endpoint active.
func (a *Applier) Run(ctx context.Context, ordered []model.ScoredCandidate) (Result, error) {
	res := Result{State: Idle}
	if len(ordered) == 0 {
		res.State = Exhausted
		return res, fmt.Errorf("%w: no candidates", model.ErrFailoverExhausted)
	}

	for _, cand := range ordered {
		if res.Attempts >= a.maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.State = Trying
		res.Attempts++
		ep := cand.Endpoint
		log := a.log.With(
			zap.Int("attempt", res.Attempts),
			zap.Int("max_attempts", a.maxAttempts),
			zap.String("hostname", ep.Hostname),
			zap.Int("weight", cand.Weight),
		)
		log.Info("applying candidate", zap.String("address", ep.Address), zap.Int("load", ep.LoadPercent), zap.Float64("latency_ms", cand.MeanLatency))

		if err := a.tunnel.Apply(ctx, ep); err != nil {
			res.Endpoint = ep
			log.Warn("apply failed", zap.Error(err))
			continue
		}
		res.Endpoint = ep

		if err := a.sleep(ctx, a.settle); err != nil {
			return res, err
		}
		if err := a.check.Check(ctx); err != nil {
			log.Warn("connectivity check failed", zap.Error(err))
			continue
		}

		res.State = Connected
		log.Info("connected")
		return res, nil
	}

	res.State = Exhausted
	a.log.Warn("failover exhausted", zap.Int("attempts", res.Attempts), zap.String("left_active", res.Endpoint.Hostname))
	return res, fmt.Errorf("%w: %d of %d candidates failed", model.ErrFailoverExhausted, res.Attempts, len(ordered))
}
