package model

import "time"

// Endpoint is one candidate VPN server returned by the directory provider.
type Endpoint struct {
	Hostname    string
	Address     string
	LoadPercent int
	PublicKey   string
}

// LatencySample holds the round-trip times collected for one endpoint in one probe round.
type LatencySample struct {
	Samples []float64
	MeanMs  float64
}

// ScoredCandidate is an endpoint with its mean latency and ranking weight.
// Index is the position the provider returned it at.
type ScoredCandidate struct {
	Endpoint    Endpoint
	MeanLatency float64
	Weight      int
	Index       int
}

// Measurement kinds recorded in the history file.
const (
	KindWAN    = "wan"
	KindTunnel = "tunnel"
	KindGate   = "gate"
)

// Measurement is a single throughput sample.
type Measurement struct {
	Timestamp     time.Time
	Instance      string
	Kind          string
	Hostname      string
	Mbps          float64
	ThresholdMbps float64
}
