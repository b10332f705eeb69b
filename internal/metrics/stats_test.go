package metrics

import (
	"testing"
	"time"

	"vpnswap/internal/model"
)

func TestSummarize_ByKind(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	items := []model.Measurement{
		{Timestamp: now.Add(-2 * time.Hour), Kind: model.KindGate, Mbps: 10},
		{Timestamp: now.Add(-10 * time.Second), Kind: model.KindGate, Mbps: 300, ThresholdMbps: 280},
		{Timestamp: now.Add(-5 * time.Second), Kind: model.KindGate, Mbps: 150, ThresholdMbps: 280},
		{Timestamp: now.Add(-5 * time.Second), Kind: model.KindWAN, Mbps: 900},
	}
	sums := Summarize(items, now.Add(-1*time.Minute))
	if len(sums) != 2 {
		t.Fatalf("kinds=%d", len(sums))
	}
	gate := sums[0]
	if gate.Kind != model.KindGate {
		t.Fatalf("first kind=%s", gate.Kind)
	}
	if gate.Count != 2 {
		t.Fatalf("count=%d", gate.Count)
	}
	if gate.AvgMbps != 225 {
		t.Fatalf("avg=%.2f", gate.AvgMbps)
	}
	if gate.MinMbps != 150 || gate.MaxMbps != 300 {
		t.Fatalf("min/max=%.2f/%.2f", gate.MinMbps, gate.MaxMbps)
	}
	if gate.P95Mbps != 300 {
		t.Fatalf("p95=%.2f", gate.P95Mbps)
	}
	if gate.Below != 1 {
		t.Fatalf("below=%d", gate.Below)
	}
	if gate.LastMbps != 150 {
		t.Fatalf("last=%.2f", gate.LastMbps)
	}
	if sums[1].Kind != model.KindWAN || sums[1].Count != 1 {
		t.Fatalf("wan=%+v", sums[1])
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	if got := Summarize(nil, time.Time{}); len(got) != 0 {
		t.Fatalf("got=%+v", got)
	}
}
