package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vpnswap/internal/config"
	"vpnswap/internal/model"
	"vpnswap/internal/monitor"
)

type rootFlags struct {
	config    string
	speedTest bool
	force     bool
	calibrate bool
	verbose   bool
}

func main() {
	ctx, cancel := signalContext()
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "vpnswap",
		Short: "Measure VPN tunnel throughput and swap to a better endpoint when it degrades",
		Long: `vpnswap runs once per invocation, usually from cron. It measures download
throughput through one WireGuard client instance and, when it falls below the
configured threshold, ranks fresh endpoints by load and latency and fails over
to the first one that passes a connectivity check.

Without a mode flag it runs the speed test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", config.DefaultPath, "path to YAML config")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.Flags().BoolVarP(&f.speedTest, "speedtest", "s", false, "measure and fail over when below threshold")
	root.Flags().BoolVarP(&f.force, "force", "f", false, "rank and fail over regardless of throughput")
	root.Flags().BoolVarP(&f.calibrate, "calibrate", "c", false, "recompute the threshold from WAN and tunnel measurements, then run the speed test")

	root.AddCommand(newStatusCmd(f), newStatsCmd(f), newRankCmd(f))
	return root
}

func runMonitor(ctx context.Context, f *rootFlags) error {
	env, err := setup(f)
	if err != nil {
		return err
	}
	defer env.close()

	mode := monitor.Mode{SpeedTest: f.speedTest, Force: f.force, Calibrate: f.calibrate}
	rep, err := monitor.Run(ctx, env.deps, mode)
	if err != nil {
		if errors.Is(err, model.ErrInstanceDisabled) {
			env.log.Warn("instance disabled, nothing to do", zap.Error(err))
		} else {
			env.log.Warn("run failed", zap.Error(err))
		}
		return err
	}

	fields := []zap.Field{zap.Float64("threshold_mbps", rep.ThresholdMbps)}
	if rep.Gate != nil {
		fields = append(fields, zap.Float64("mbps", rep.Gate.SpeedMbps), zap.Bool("updated", rep.Gate.Updated))
	}
	if rep.Failover != nil {
		fields = append(fields, zap.Stringer("failover", rep.Failover.State), zap.String("active", rep.Failover.Endpoint.Hostname))
	}
	env.log.Info("run complete", fields...)
	return nil
}

// exitCode maps run errors onto the scheduler-visible exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrInstanceDisabled):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
