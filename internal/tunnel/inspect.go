package tunnel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// Peer is one peer line of `wg show <iface> dump`.
type Peer struct {
	PublicKey     string
	Endpoint      string
	LastHandshake time.Time
	RxBytes       uint64
	TxBytes       uint64
}

// Peers returns the peers WireGuard currently has on the tunnel interface.
func (c *Controller) Peers(ctx context.Context) ([]Peer, error) {
	if c.iface == "" {
		return nil, fmt.Errorf("tunnel interface is required")
	}
	out, err := c.r.Output(ctx, "wg", "show", c.iface, "dump")
	if err != nil {
		return nil, err
	}
	return ParseDump(out), nil
}

// ParseDump parses wg dump output. The first line describes the interface
// and is skipped; peers without an endpoint are kept with Endpoint "".
func ParseDump(dump string) []Peer {
	lines := strings.Split(strings.TrimSpace(dump), "\n")
	if len(lines) < 2 {
		return nil
	}
	var peers []Peer
	for _, line := range lines[1:] {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 7 {
			continue
		}
		p := Peer{PublicKey: fields[0], Endpoint: fields[2]}
		if p.Endpoint == "(none)" {
			p.Endpoint = ""
		}
		if ts, err := strconv.ParseInt(fields[4], 10, 64); err == nil && ts > 0 {
			p.LastHandshake = time.Unix(ts, 0).UTC()
		}
		p.RxBytes, _ = strconv.ParseUint(fields[5], 10, 64)
		p.TxBytes, _ = strconv.ParseUint(fields[6], 10, 64)
		peers = append(peers, p)
	}
	return peers
}

// Counters are kernel byte counters of one interface.
type Counters struct {
	Name      string
	BytesRecv uint64
	BytesSent uint64
}

// InterfaceCounters looks iface up in the kernel's per-interface counters.
func InterfaceCounters(ctx context.Context, iface string) (Counters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return Counters{}, err
	}
	return findCounters(stats, iface)
}

func findCounters(stats []psnet.IOCountersStat, iface string) (Counters, error) {
	for _, s := range stats {
		if s.Name == iface {
			return Counters{Name: s.Name, BytesRecv: s.BytesRecv, BytesSent: s.BytesSent}, nil
		}
	}
	return Counters{}, fmt.Errorf("interface %s not found", iface)
}
