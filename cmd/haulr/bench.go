package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type benchConfig struct {
	Drivers     int
	Concurrency int
	Duration    time.Duration
	Seed        uint64
}

func newBenchCmd() *cobra.Command {
	var cfg benchConfig
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run in-process dispatch checks and a matching throughput run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Duration+30*time.Second)
			defer cancel()

			results := newBenchRunner(cfg, cmd.OutOrStdout()).RunAll(ctx)

			fail := 0
			for _, r := range results {
				if r.Status == statusFail {
					fail++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n== Summary ==\nPASS=%d FAIL=%d\n", len(results)-fail, fail)
			if fail > 0 {
				return fmt.Errorf("%d bench case(s) failed", fail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Drivers, "drivers", 2000, "synthetic driver pool size")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 20, "concurrent callers for race and load cases")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 5*time.Second, "duration of the throughput case")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "seed for the synthetic pool")
	return cmd
}
