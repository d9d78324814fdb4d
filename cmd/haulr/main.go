// README: Entry point; cobra root with serve and migrate subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "haulr",
		Short:         "Delivery marketplace dispatch API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (HAULR_* env vars override it)")
	root.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath), newBenchCmd())
	return root
}
