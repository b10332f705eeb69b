package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswap/internal/metrics"
	"vpnswap/internal/model"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(fmt.Errorf("%w: wgc1", model.ErrInstanceDisabled)))
	assert.Equal(t, 1, exitCode(fmt.Errorf("%w: empty", model.ErrFetch)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestRootFlags(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"-c", "-f", "-v", "--config", "/tmp/x.yaml"}))

	for _, name := range []string{"calibrate", "force", "verbose"} {
		v, err := root.Flags().GetBool(name)
		require.NoError(t, err)
		assert.True(t, v, name)
	}
	speed, err := root.Flags().GetBool("speedtest")
	require.NoError(t, err)
	assert.False(t, speed)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["stats"])
	assert.True(t, names["rank"])
}

func TestPrintCandidates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printCandidates(&buf, []model.ScoredCandidate{
		{Endpoint: model.Endpoint{Hostname: "us1.example", Address: "198.51.100.1", LoadPercent: 20}, MeanLatency: 5, Weight: 7500},
	})
	out := buf.String()
	assert.Contains(t, out, "HOSTNAME")
	assert.Contains(t, out, "us1.example")
	assert.Contains(t, out, "7500")
}

func TestPrintSummaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummaries(&buf, nil)
	assert.Equal(t, "no samples in window\n", buf.String())

	buf.Reset()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	printSummaries(&buf, []metrics.Summary{{Kind: model.KindGate, Count: 2, From: now, To: now, AvgMbps: 250, Below: 1}})
	assert.Contains(t, buf.String(), "gate samples=2")
	assert.Contains(t, buf.String(), "below_threshold=1")
}
