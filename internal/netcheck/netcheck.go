package netcheck

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vpnswap/internal/execx"
)

// ErrUnreachable is returned when the test destination does not answer
// through the tunnel within the timeout.
var ErrUnreachable = errors.New("destination unreachable through tunnel")

// Checker decides whether the freshly applied tunnel passes traffic.
// A nil error means reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Ping pings a destination with the socket bound to the tunnel interface.
type Ping struct {
	r           execx.Runner
	iface       string
	destination string
	timeout     time.Duration
}

func NewPing(r execx.Runner, iface, destination string, timeout time.Duration) *Ping {
	return &Ping{r: r, iface: iface, destination: destination, timeout: timeout}
}

func (p *Ping) Check(ctx context.Context) error {
	waitSec := int(p.timeout / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(waitSec+1)*time.Second)
	defer cancel()

	args := []string{"-c", "1", "-W", strconv.Itoa(waitSec)}
	if p.iface != "" {
		args = append(args, "-I", p.iface)
	}
	args = append(args, p.destination)
	if _, err := p.r.Output(ctx, "ping", args...); err != nil {
		return fmt.Errorf("%w: %s via %s: %v", ErrUnreachable, p.destination, p.iface, err)
	}
	return nil
}

// All runs checkers in order and returns the first failure.
type All []Checker

func (a All) Check(ctx context.Context) error {
	for _, c := range a {
		if c == nil {
			continue
		}
		if err := c.Check(ctx); err != nil {
			return err
		}
	}
	return nil
}
