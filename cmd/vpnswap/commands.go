package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vpnswap/internal/metrics"
	"vpnswap/internal/model"
	"vpnswap/internal/monitor"
	"vpnswap/internal/tunnel"
)

func newStatusCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active endpoint, WireGuard peers, and interface counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(f)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			enabled, err := env.tunnel.Enabled(ctx)
			if err != nil {
				return err
			}
			active, err := env.tunnel.Active(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "instance=%s enabled=%t iface=%s\n", env.cfg.SettingsPrefix(), enabled, env.tunnel.Interface())
			fmt.Fprintf(out, "active hostname=%s address=%s\n", active.Hostname, active.Address)

			if peers, err := env.tunnel.Peers(ctx); err == nil {
				printPeers(out, peers)
			} else {
				fmt.Fprintf(out, "peers unavailable: %v\n", err)
			}
			if c, err := tunnel.InterfaceCounters(ctx, env.tunnel.Interface()); err == nil {
				fmt.Fprintf(out, "counters rx=%d tx=%d\n", c.BytesRecv, c.BytesSent)
			} else {
				fmt.Fprintf(out, "counters unavailable: %v\n", err)
			}
			return nil
		},
	}
}

func printPeers(out io.Writer, peers []tunnel.Peer) {
	if len(peers) == 0 {
		fmt.Fprintln(out, "no peers")
		return
	}
	fmt.Fprintf(out, "%-46s  %-24s  %-20s  %-12s  %-12s\n", "PUBLIC_KEY", "ENDPOINT", "LAST_HANDSHAKE", "RX", "TX")
	for _, p := range peers {
		hs := ""
		if !p.LastHandshake.IsZero() {
			hs = p.LastHandshake.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%-46s  %-24s  %-20s  %-12d  %-12d\n", p.PublicKey, p.Endpoint, hs, p.RxBytes, p.TxBytes)
	}
}

func newStatsCmd(f *rootFlags) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded throughput measurements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f.config)
			if err != nil {
				return err
			}
			if cfg.MetricsPath == "" {
				return fmt.Errorf("%w: metrics_path is not set", model.ErrConfig)
			}
			items, err := metrics.ReadCSV(cfg.MetricsPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintln(cmd.OutOrStdout(), "no samples recorded")
					return nil
				}
				return err
			}
			printSummaries(cmd.OutOrStdout(), metrics.Summarize(items, time.Now().UTC().Add(-window)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "time window")
	return cmd
}

func printSummaries(out io.Writer, sums []metrics.Summary) {
	if len(sums) == 0 {
		fmt.Fprintln(out, "no samples in window")
		return
	}
	for _, s := range sums {
		fmt.Fprintf(out, "%s samples=%d from=%s to=%s\n", s.Kind, s.Count, s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
		fmt.Fprintf(out, "  mbps avg=%.2f p95=%.2f min=%.2f max=%.2f last=%.2f below_threshold=%d\n",
			s.AvgMbps, s.P95Mbps, s.MinMbps, s.MaxMbps, s.LastMbps, s.Below)
	}
}

func newRankCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Fetch, probe, and print ranked candidates without applying any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(f)
			if err != nil {
				return err
			}
			defer env.close()

			ordered, err := monitor.Candidates(cmd.Context(), env.deps)
			if err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), ordered)
			return nil
		},
	}
}

func printCandidates(out io.Writer, ordered []model.ScoredCandidate) {
	fmt.Fprintf(out, "%-4s  %-28s  %-24s  %-5s  %-10s  %-8s\n", "RANK", "HOSTNAME", "ADDRESS", "LOAD", "LATENCY", "WEIGHT")
	for i, c := range ordered {
		fmt.Fprintf(out, "%-4d  %-28s  %-24s  %-5d  %-10.2f  %-8d\n",
			i+1, c.Endpoint.Hostname, c.Endpoint.Address, c.Endpoint.LoadPercent, c.MeanLatency, c.Weight)
	}
}
