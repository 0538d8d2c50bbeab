// Package cli assembles the NLDS command tree: one subcommand per
// consumer, wiring that consumer's package (indexer/transfer/archive/
// router/catalog/monitor) to the shared rabbit.Consumer/Publisher pair,
// plus an admin one-shot command and a liveness endpoint, mirroring the
// teacher's cobra root-command-with-persistent-config-flag shape.
package cli

import (
	"fmt"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/config"
	"github.com/spf13/cobra"
)

var cfgFile string
var healthzAddr string

// RootCmd is the NLDS binary's entry point; each consumer is a
// subcommand so a deployment can run one process per consumer while
// sharing a single compiled binary.
var RootCmd = &cobra.Command{
	Use:   "nlds",
	Short: "Near-Line Data Store workflow engine",
	Long: `nlds runs one consumer of the NLDS bus-driven workflow engine per
invocation: router, indexer, catalog-*, transfer-*, archive-*, monitor,
log, or the admin send-archive-next one-shot.`,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the NLDS JSON configuration file (required)")
	RootCmd.PersistentFlags().StringVar(&healthzAddr, "healthz-addr", ":8080", "address the liveness endpoint listens on")

	RootCmd.AddCommand(routerCmd)
	RootCmd.AddCommand(indexerCmd)
	RootCmd.AddCommand(catalogPutCmd)
	RootCmd.AddCommand(transferPutCmd)
	RootCmd.AddCommand(transferGetCmd)
	RootCmd.AddCommand(archivePutCmd)
	RootCmd.AddCommand(monitorCmd)
	RootCmd.AddCommand(logCmd)
	RootCmd.AddCommand(sendArchiveNextCmd)
}

// loadConfig reads --config, failing fast since every consumer needs the
// full document (spec.md §6's required-key schema).
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(cfgFile)
}

// applyLogging configures common.Logger's level and formatter from the
// loaded document, the one piece of global mutable state every consumer
// shares (mirroring the teacher's NewLogger, but applied to the shared
// instance every ContextLogger wraps rather than a fresh one per call).
func applyLogging(cfg config.LoggingConfig) {
	level := common.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = common.LogLevelDebug
	case "warn":
		level = common.LogLevelWarn
	case "error":
		level = common.LogLevelError
	}
	configured := common.NewLogger(common.LoggerConfig{Level: level, Format: cfg.Format, TimeFormat: "2006-01-02T15:04:05Z07:00"})
	common.Logger.SetLevel(configured.Level)
	common.Logger.SetFormatter(configured.Formatter)
}
