// Command tableapi serves tenant-scoped project and task tables over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/dwidge/table-api/cfgmng"
	"github.com/dwidge/table-api/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	cfg       *cfgmng.ServerConfig
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tableapi",
	Short:         "Tenant-scoped record tables over HTTP",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = cfgmng.ReadServerConfig(configDir, "config"); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if logger, _, err = logging.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
