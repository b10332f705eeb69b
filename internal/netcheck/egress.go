package netcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pion/stun/v3"

	"vpnswap/internal/netbind"
)

// ErrLeak is returned when traffic on the tunnel interface leaves with the
// WAN's public address.
var ErrLeak = errors.New("tunnel egress matches WAN address")

// MappedFunc returns the public IP a STUN server sees for traffic sent from iface.
type MappedFunc func(ctx context.Context, server, iface string, timeout time.Duration) (string, error)

// Egress compares STUN-mapped addresses seen through the tunnel and the WAN.
type Egress struct {
	server      string
	tunnelIface string
	wanIface    string
	timeout     time.Duration
	mapped      MappedFunc
}

func NewEgress(server, tunnelIface, wanIface string, timeout time.Duration) *Egress {
	return &Egress{
		server:      server,
		tunnelIface: tunnelIface,
		wanIface:    wanIface,
		timeout:     timeout,
		mapped:      MappedIP,
	}
}

// WithMapped swaps the STUN lookup; used by tests.
func (e *Egress) WithMapped(fn MappedFunc) *Egress {
	e.mapped = fn
	return e
}

func (e *Egress) Check(ctx context.Context) error {
	tunnelIP, err := e.mapped(ctx, e.server, e.tunnelIface, e.timeout)
	if err != nil {
		return fmt.Errorf("%w: stun via %s: %v", ErrUnreachable, e.tunnelIface, err)
	}
	wanIP, err := e.mapped(ctx, e.server, e.wanIface, e.timeout)
	if err != nil {
		// Without a WAN reference the tunnel answer alone is accepted.
		return nil
	}
	if tunnelIP == wanIP {
		return fmt.Errorf("%w: %s", ErrLeak, tunnelIP)
	}
	return nil
}

// MappedIP sends a STUN binding request from a socket bound to iface and
// returns the IP of the XOR-mapped address.
func MappedIP(ctx context.Context, server, iface string, timeout time.Duration) (string, error) {
	addr := strings.TrimSpace(strings.TrimPrefix(server, "stun:"))
	if addr == "" {
		return "", fmt.Errorf("empty STUN server")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "3478")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := netbind.Dialer(iface, timeout).DialContext(ctx, "udp", addr)
	if err != nil {
		return "", err
	}
	client, err := stun.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	defer client.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	result := make(chan stun.XORMappedAddress, 1)
	fail := make(chan error, 2)

	go func() {
		var mapped stun.XORMappedAddress
		err := client.Do(msg, func(res stun.Event) {
			if res.Error != nil {
				fail <- res.Error
				return
			}
			if err := mapped.GetFrom(res.Message); err != nil {
				fail <- err
				return
			}
			result <- mapped
		})
		if err != nil {
			fail <- err
		}
	}()

	select {
	case mapped := <-result:
		return mapped.IP.String(), nil
	case err := <-fail:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
