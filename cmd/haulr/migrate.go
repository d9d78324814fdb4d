package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"haulr/internal/config"
	"haulr/internal/infra"
	"haulr/internal/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New("haulr-migrate", cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if dir == "" {
				root, err := infra.RepoRoot()
				if err != nil {
					return err
				}
				dir = filepath.Join(root, "migrations")
			}
			db, err := infra.NewDB(cmd.Context(), cfg.DB.DSN, cfg.DB.MaxConns)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := infra.ApplyMigrations(cmd.Context(), db, dir); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("dir", dir))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to <repo>/migrations)")
	return cmd
}
