package main

import (
	"fmt"

	"github.com/dwidge/table-api/sietch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables and indexes if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
		db, err := sietch.NewPostgresPool(cmd.Context(), cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if err := createTables(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("tables created", zap.Int("count", len(tableDefs())))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
