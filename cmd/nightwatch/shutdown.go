package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nightwatch/internal/shutdown"
)

func newShutdownCmd(root *rootOptions) *cobra.Command {
	var simulate bool
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Put the observatory into its safe state now",
		Long: `Run the shutdown sequence outside a cycle: stop the mount, disable
both axes, close the shutter if it is open or its state is unknown, and turn
the camera cooler off. Every step is attempted even if earlier ones fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.loadConfig()
			if err != nil {
				return err
			}

			mqttClient, err := connectMQTT(cfg.MQTT, log, simulate)
			if err != nil {
				return err
			}
			if mqttClient != nil {
				defer mqttClient.Close() //nolint:errcheck // best effort on exit
			}

			devs, err := openDevices(cfg.Observatory, log, simulate, bridgeTransport(mqttClient))
			if err != nil {
				return err
			}
			defer devs.Close() //nolint:errcheck // best effort on exit

			seq := shutdown.NewSequencer(shutdown.Config{
				Session:       devs.session,
				DisableCooler: true,
				Timeout:       shutdownTimeout,
			})
			seq.SetLogger(log)

			// A signal must not cut the safe-state sequence short.
			sum := seq.Shutdown(context.WithoutCancel(cmd.Context()))
			printSummary(cmd, sum)
			if len(sum.Failures) > 0 {
				return fmt.Errorf("shutdown finished with %d failed steps: %w", len(sum.Failures), errors.Join(sum.Failures...))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false, "use simulated hardware")
	return cmd
}

func printSummary(cmd *cobra.Command, sum shutdown.Summary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "axes disabled:  %t\n", sum.AxesDisabled)
	fmt.Fprintf(w, "shutter closed: %t\n", sum.ShutterClosed)
	fmt.Fprintf(w, "commands sent:  %d\n", sum.CommandsSent)
	for _, err := range sum.Failures {
		fmt.Fprintf(w, "failed: %v\n", err)
	}
}
