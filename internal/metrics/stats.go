package metrics

import (
	"math"
	"sort"
	"time"

	"vpnswap/internal/model"
)

// Summary is a statistics snapshot for one measurement kind.
type Summary struct {
	Kind     string
	Count    int
	From     time.Time
	To       time.Time
	AvgMbps  float64
	P95Mbps  float64
	MinMbps  float64
	MaxMbps  float64
	Below    int // samples under the threshold recorded with them
	LastMbps float64
}

// Summarize groups items at or after since by kind. Kinds are returned sorted.
func Summarize(items []model.Measurement, since time.Time) []Summary {
	byKind := map[string][]model.Measurement{}
	for _, m := range items {
		if m.Timestamp.Before(since) {
			continue
		}
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	out := make([]Summary, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, summarizeKind(k, byKind[k]))
	}
	return out
}

func summarizeKind(kind string, items []model.Measurement) Summary {
	values := make([]float64, 0, len(items))
	var sum float64
	minV := math.MaxFloat64
	maxV := 0.0
	below := 0
	from := items[0].Timestamp
	to := items[0].Timestamp
	last := items[0]

	for _, m := range items {
		values = append(values, m.Mbps)
		sum += m.Mbps
		if m.Mbps < minV {
			minV = m.Mbps
		}
		if m.Mbps > maxV {
			maxV = m.Mbps
		}
		if m.ThresholdMbps > 0 && m.Mbps < m.ThresholdMbps {
			below++
		}
		if m.Timestamp.Before(from) {
			from = m.Timestamp
		}
		if !m.Timestamp.Before(to) {
			to = m.Timestamp
			last = m
		}
	}

	sort.Float64s(values)
	return Summary{
		Kind:     kind,
		Count:    len(items),
		From:     from,
		To:       to,
		AvgMbps:  sum / float64(len(items)),
		P95Mbps:  percentile(values, 0.95),
		MinMbps:  minV,
		MaxMbps:  maxV,
		Below:    below,
		LastMbps: last.Mbps,
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
