package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nightwatch/internal/bridge"
	"github.com/nerrad567/nightwatch/internal/observatory/sim"
)

// errNoDrivers is returned when bridge is run without --simulate; vendor
// drivers ship as separate bridge processes.
var errNoDrivers = errors.New("no vendor drivers are built in; run with --simulate or start the vendor bridge")

func newBridgeCmd(root *rootOptions) *cobra.Command {
	var simulate bool
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve simulated mount, dome and camera bridges over MQTT",
		Long: `Answer core requests on nightwatch/request/{device}/+ with simulated
hardware, so a full cycle can be exercised end to end through the broker.
Each bridge announces itself retained on nightwatch/health/{device}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !simulate {
				return errNoDrivers
			}
			cfg, log, err := root.loadConfig()
			if err != nil {
				return err
			}
			client, err := connectMQTT(cfg.MQTT, log, false)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck // best effort on exit

			servers := []*bridge.Server{
				bridge.NewMountServer(client, sim.NewMount(simTelemetry)),
				bridge.NewDomeServer(client, sim.NewDome()),
				bridge.NewCameraServer(client, sim.NewCamera(true)),
			}
			ctx := cmd.Context()
			for _, s := range servers {
				s.SetLogger(log)
				if err := s.Start(ctx); err != nil {
					return err
				}
				defer s.Stop()
				log.Info("bridge serving", "device", s.Device())
			}

			<-ctx.Done()
			log.Info("bridges stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false, "serve simulated hardware")
	return cmd
}
