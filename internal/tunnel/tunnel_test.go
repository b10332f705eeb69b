package tunnel

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnswap/internal/execx"
	"vpnswap/internal/model"
	"vpnswap/internal/settings"
)

func newFileController(t *testing.T, r execx.Runner) (*Controller, *settings.File) {
	t.Helper()
	store, err := settings.OpenFile(filepath.Join(t.TempDir(), "wgc1.yaml"))
	require.NoError(t, err)
	c := NewController(store, r, Options{
		Prefix:         "wgc1",
		Interface:      "wgc1",
		RestartCommand: []string{"service", "restart_wgc 1"},
	}, nil)
	return c, store
}

func TestApply_SetsCommitsAndRestarts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := &execx.Script{}
	c, store := newFileController(t, r)

	ep := model.Endpoint{Hostname: "us1.example.com", Address: "10.0.0.1", PublicKey: "pub1="}
	require.NoError(t, c.Apply(ctx, ep))

	got, err := c.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Endpoint{Hostname: "us1.example.com", Address: "10.0.0.1", PublicKey: "pub1="}, got)

	v, _ := store.Get(ctx, "wgc1_ep_addr")
	assert.Equal(t, "10.0.0.1", v)
	assert.Equal(t, []string{"service restart_wgc 1"}, r.Commands())
}

func TestApply_NVRAMOrder(t *testing.T) {
	t.Parallel()

	r := &execx.Script{}
	c := NewController(settings.NewNVRAM(r), r, Options{Prefix: "wgc2", Interface: "wgc2", RestartCommand: []string{"service", "restart_wgc 2"}}, nil)

	require.NoError(t, c.Apply(context.Background(), model.Endpoint{Hostname: "h", Address: "1.2.3.4", PublicKey: "k"}))
	assert.Equal(t, []string{
		"nvram set wgc2_ep_addr=1.2.3.4",
		"nvram set wgc2_ppub=k",
		"nvram set wgc2_desc=h",
		"nvram commit",
		"service restart_wgc 2",
	}, r.Commands())
}

func TestApply_RestartFailure(t *testing.T) {
	t.Parallel()

	r := &execx.Script{Handler: func(cmd string) (string, error) {
		if strings.HasPrefix(cmd, "service") {
			return "", errors.New("exit status 1")
		}
		return "", nil
	}}
	c, _ := newFileController(t, r)
	err := c.Apply(context.Background(), model.Endpoint{Hostname: "h", Address: "1.2.3.4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart wgc1")
}

func TestApply_RejectsMissingAddress(t *testing.T) {
	t.Parallel()

	r := &execx.Script{}
	c, _ := newFileController(t, r)
	require.Error(t, c.Apply(context.Background(), model.Endpoint{Hostname: "h"}))
	assert.Empty(t, r.Commands())
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, store := newFileController(t, &execx.Script{})
	on, err := c.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, store.Set(ctx, "wgc1_enable", "1"))
	on, err = c.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestParseDump(t *testing.T) {
	t.Parallel()

	dump := "" +
		"(priv)\t(pub)\t51820\toff\n" +
		"puba\t(none)\t39.1.2.3:51820\t0.0.0.0/0\t1760781600\t1024\t2048\toff\n" +
		"pubb\t(none)\t(none)\t10.7.0.3/32\t0\t0\t0\toff\n"

	peers := ParseDump(dump)
	require.Len(t, peers, 2)
	assert.Equal(t, "39.1.2.3:51820", peers[0].Endpoint)
	assert.Equal(t, time.Unix(1760781600, 0).UTC(), peers[0].LastHandshake)
	assert.Equal(t, uint64(1024), peers[0].RxBytes)
	assert.Equal(t, uint64(2048), peers[0].TxBytes)
	assert.Equal(t, "", peers[1].Endpoint)
	assert.True(t, peers[1].LastHandshake.IsZero())
}

func TestPeers_RunsWgDump(t *testing.T) {
	t.Parallel()

	r := &execx.Script{Handler: func(string) (string, error) {
		return "(priv)\t(pub)\t51820\toff\npuba\t(none)\t1.1.1.1:51820\t0.0.0.0/0\t0\t1\t2\toff", nil
	}}
	c, _ := newFileController(t, r)
	peers, err := c.Peers(context.Background())
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, []string{"wg show wgc1 dump"}, r.Commands())
}

func TestFindCounters(t *testing.T) {
	t.Parallel()

	stats := []psnet.IOCountersStat{
		{Name: "eth0", BytesRecv: 10, BytesSent: 20},
		{Name: "wgc1", BytesRecv: 30, BytesSent: 40},
	}
	c, err := findCounters(stats, "wgc1")
	require.NoError(t, err)
	assert.Equal(t, Counters{Name: "wgc1", BytesRecv: 30, BytesSent: 40}, c)

	_, err = findCounters(stats, "wgc5")
	require.Error(t, err)
}
