package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswap/internal/model"
	"vpnswap/internal/netcheck"
	"vpnswap/internal/rank"
)

type recordTunnel struct {
	applied []string
	fail    map[string]bool
}

func (r *recordTunnel) Apply(_ context.Context, ep model.Endpoint) error {
	r.applied = append(r.applied, ep.Hostname)
	if r.fail[ep.Hostname] {
		return errors.New("restart failed")
	}
	return nil
}

// scriptedCheck passes on the n-th call (1-based); 0 never passes.
type scriptedCheck struct {
	passOn int
	calls  int
}

func (s *scriptedCheck) Check(context.Context) error {
	s.calls++
	if s.passOn > 0 && s.calls == s.passOn {
		return nil
	}
	return netcheck.ErrUnreachable
}

func noSleep(context.Context, time.Duration) error { return nil }

func cands(ws ...int) []model.ScoredCandidate {
	names := []string{"A", "B", "C", "D", "E"}
	out := make([]model.ScoredCandidate, len(ws))
	for i, w := range ws {
		out[i] = model.ScoredCandidate{Endpoint: model.Endpoint{Hostname: names[i], Address: "10.0.0." + names[i]}, Weight: w, Index: i}
	}
	return out
}

func TestRun_StopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	check := &scriptedCheck{passOn: 2}
	a := New(tun, check, Options{MaxAttempts: 3, Sleep: noSleep}, nil)

	res, err := a.Run(context.Background(), rank.Order(cands(7500, 6200, 4800)))
	require.NoError(t, err)
	assert.Equal(t, Connected, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "B", res.Endpoint.Hostname)
	assert.Equal(t, []string{"A", "B"}, tun.applied)
}

func TestRun_ExhaustedAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	a := New(tun, &scriptedCheck{}, Options{MaxAttempts: 3, Sleep: noSleep}, nil)

	res, err := a.Run(context.Background(), rank.Order(cands(10, 50, 40, 30, 20)))
	require.ErrorIs(t, err, model.ErrFailoverExhausted)
	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{"B", "C", "D"}, tun.applied)
	assert.Equal(t, "D", res.Endpoint.Hostname, "last tried endpoint stays active")
}

func TestRun_ListShorterThanMaxAttempts(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	a := New(tun, &scriptedCheck{}, Options{MaxAttempts: 5, Sleep: noSleep}, nil)

	res, err := a.Run(context.Background(), cands(1, 0))
	require.ErrorIs(t, err, model.ErrFailoverExhausted)
	assert.Equal(t, 2, res.Attempts)
}

func TestRun_TieOrderIsFetchOrder(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	a := New(tun, &scriptedCheck{}, Options{MaxAttempts: 3, Sleep: noSleep}, nil)

	_, err := a.Run(context.Background(), rank.Order(cands(40, 50, 50)))
	require.Error(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, tun.applied)
}

func TestRun_ApplyFailureCountsAsAttempt(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{fail: map[string]bool{"A": true}}
	check := &scriptedCheck{passOn: 1}
	a := New(tun, check, Options{MaxAttempts: 2, Sleep: noSleep}, nil)

	res, err := a.Run(context.Background(), cands(9, 8, 7))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Endpoint.Hostname)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, check.calls)
}

func TestRun_NegativeWeightsStillEligible(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	a := New(tun, &scriptedCheck{passOn: 1}, Options{MaxAttempts: 3, Sleep: noSleep}, nil)

	res, err := a.Run(context.Background(), rank.Order(cands(-4000, -2000)))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Endpoint.Hostname)
}

func TestRun_SettlesBeforeCheck(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	a := New(&recordTunnel{}, &scriptedCheck{passOn: 2}, Options{MaxAttempts: 3, Settle: 10 * time.Second, Sleep: sleep}, nil)

	_, err := a.Run(context.Background(), cands(3, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, slept)
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()

	tun := &recordTunnel{}
	res, err := New(tun, &scriptedCheck{}, Options{}, nil).Run(context.Background(), nil)
	require.ErrorIs(t, err, model.ErrFailoverExhausted)
	assert.Equal(t, Exhausted, res.State)
	assert.Empty(t, tun.applied)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tun := &recordTunnel{}
	_, err := New(tun, &scriptedCheck{}, Options{}, nil).Run(ctx, cands(1))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tun.applied)
}

func TestSleep_HonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "exhausted", Exhausted.String())
}
