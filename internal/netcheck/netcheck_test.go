package netcheck

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswap/internal/execx"
)

func TestPing_BindsTunnelInterface(t *testing.T) {
	t.Parallel()

	r := &execx.Script{}
	err := NewPing(r, "wgc1", "8.8.8.8", 5*time.Second).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ping -c 1 -W 5 -I wgc1 8.8.8.8"}, r.Commands())
}

func TestPing_Unreachable(t *testing.T) {
	t.Parallel()

	r := &execx.Script{Handler: func(string) (string, error) { return "", errors.New("100% packet loss") }}
	err := NewPing(r, "wgc1", "8.8.8.8", time.Second).Check(context.Background())
	require.ErrorIs(t, err, ErrUnreachable)
}

type stubChecker struct {
	err   error
	calls int
}

func (s *stubChecker) Check(context.Context) error {
	s.calls++
	return s.err
}

func TestAll_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	a := &stubChecker{}
	b := &stubChecker{err: ErrUnreachable}
	c := &stubChecker{}
	err := All{a, nil, b, c}.Check(context.Background())
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls)
}

func mappedTable(m map[string]string) MappedFunc {
	return func(_ context.Context, _ string, iface string, _ time.Duration) (string, error) {
		ip, ok := m[iface]
		if !ok {
			return "", errors.New("timeout")
		}
		return ip, nil
	}
}

func TestEgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ok := NewEgress("stun.example.com", "wgc1", "eth0", time.Second).
		WithMapped(mappedTable(map[string]string{"wgc1": "185.0.0.9", "eth0": "203.0.113.4"}))
	require.NoError(t, ok.Check(ctx))

	leak := NewEgress("stun.example.com", "wgc1", "eth0", time.Second).
		WithMapped(mappedTable(map[string]string{"wgc1": "203.0.113.4", "eth0": "203.0.113.4"}))
	require.ErrorIs(t, leak.Check(ctx), ErrLeak)

	dead := NewEgress("stun.example.com", "wgc1", "eth0", time.Second).
		WithMapped(mappedTable(map[string]string{"eth0": "203.0.113.4"}))
	require.ErrorIs(t, dead.Check(ctx), ErrUnreachable)

	noWAN := NewEgress("stun.example.com", "wgc1", "eth0", time.Second).
		WithMapped(mappedTable(map[string]string{"wgc1": "185.0.0.9"}))
	require.NoError(t, noWAN.Check(ctx))
}

// startSTUN answers binding requests with the sender's address.
func startSTUN(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			req := new(stun.Message)
			req.Raw = append(req.Raw[:0], buf[:n]...)
			if err := req.Decode(); err != nil {
				continue
			}
			udp := from.(*net.UDPAddr)
			res, err := stun.Build(
				stun.NewTransactionIDSetter(req.TransactionID),
				stun.BindingSuccess,
				&stun.XORMappedAddress{IP: udp.IP, Port: udp.Port},
				stun.Fingerprint,
			)
			if err != nil {
				continue
			}
			_, _ = pc.WriteTo(res.Raw, from)
		}
	}()
	return pc.LocalAddr().String()
}

func TestMappedIP_LocalServer(t *testing.T) {
	t.Parallel()

	server := startSTUN(t)
	ip, err := MappedIP(context.Background(), "stun:"+server, "", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
}

func TestMappedIP_EmptyServer(t *testing.T) {
	t.Parallel()

	_, err := MappedIP(context.Background(), "  ", "", time.Second)
	require.Error(t, err)
}
