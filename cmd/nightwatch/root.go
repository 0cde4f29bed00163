package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nightwatch/internal/infrastructure/config"
	"github.com/nerrad567/nightwatch/internal/infrastructure/logging"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nightwatch",
		Short: "Unattended observatory day-cycle engine",
		Long: `Night Watch drives one observing night per invocation: it waits for
dark, starts the mount and dome, checks readiness, executes the observation
plan and always returns the equipment to a safe state.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"configuration file (default $NIGHTWATCH_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(
		newRunCmd(opts),
		newShutdownCmd(opts),
		newPlanCmd(opts),
		newTokenCmd(opts),
		newBridgeCmd(opts),
	)
	return cmd
}

// getConfigPath returns the configuration file path: the --config flag,
// then NIGHTWATCH_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("NIGHTWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the configuration and builds the configured logger.
func (o *rootOptions) loadConfig() (*config.Config, *logging.Logger, error) {
	path := getConfigPath(o.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", path)
	return cfg, log, nil
}
