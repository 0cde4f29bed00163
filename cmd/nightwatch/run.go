package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/nightwatch/migrations"

	"github.com/nerrad567/nightwatch/internal/api"
	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/executor"
	"github.com/nerrad567/nightwatch/internal/health"
	"github.com/nerrad567/nightwatch/internal/infrastructure/config"
	"github.com/nerrad567/nightwatch/internal/infrastructure/database"
	"github.com/nerrad567/nightwatch/internal/infrastructure/logging"
	"github.com/nerrad567/nightwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/nightwatch/internal/journal"
	"github.com/nerrad567/nightwatch/internal/metrics"
	"github.com/nerrad567/nightwatch/internal/observatory"
	"github.com/nerrad567/nightwatch/internal/observatory/sim"
	"github.com/nerrad567/nightwatch/internal/reporting"
	"github.com/nerrad567/nightwatch/internal/shutdown"
	"github.com/nerrad567/nightwatch/internal/suntimes"
)

type runOptions struct {
	*rootOptions
	simulate bool
	planFile string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one observing cycle",
		Long: `Run one cycle: wait until after sunset, start up, health-check,
execute the plan and shut down. Exits 0 when the cycle completed, 2 when it
was aborted, 1 on configuration or infrastructure errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := runCycle(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %s %s: %s\n", out.CycleID, out.State, out.Reason)
			if out.State != daycycle.Completed {
				return &abortedError{cycleID: out.CycleID, reason: out.Reason}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.simulate, "simulate", false,
		"use simulated hardware and a sun clock that makes it dark now")
	cmd.Flags().StringVar(&opts.planFile, "plan", "", "plan file (overrides observatory.plan_file)")
	return cmd
}

// runCycle wires every component and runs one cycle.
//
// Parameters:
//   - ctx: Cancelling it aborts the cycle; shutdown still runs
//   - opts: Command options
//
// Returns:
//   - daycycle.Outcome: The finished cycle
//   - error: Configuration or infrastructure failure before the cycle started
func runCycle(ctx context.Context, opts *runOptions) (daycycle.Outcome, error) { //nolint:gocognit,gocyclo // linear wiring
	cfg, log, err := opts.loadConfig()
	if err != nil {
		return daycycle.Outcome{}, err
	}
	if opts.planFile != "" {
		cfg.Observatory.PlanFile = opts.planFile
	}
	log.Info("starting Night Watch",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", cfg.Site.ID,
		"simulate", opts.simulate,
	)

	// Journal
	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return daycycle.Outcome{}, fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return daycycle.Outcome{}, fmt.Errorf("running migrations: %w", err)
	}
	repo := journal.NewSQLiteRepository(db.DB, cfg.Site.ID)

	// Transport and time series
	mqttClient, err := connectMQTT(cfg.MQTT, log, opts.simulate)
	if err != nil {
		return daycycle.Outcome{}, err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if err != nil {
		return daycycle.Outcome{}, err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Hardware
	devs, err := openDevices(cfg.Observatory, log, opts.simulate, bridgeTransport(mqttClient))
	if err != nil {
		return daycycle.Outcome{}, err
	}
	defer func() {
		if closeErr := devs.Close(); closeErr != nil {
			log.Warn("error closing device callers", "error", closeErr)
		}
	}()

	// Reporting
	collector := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log)
	reporters := reporting.Fanout{collector, hub}
	if mqttClient != nil {
		pub := reporting.NewMQTTPublisher(mqttClient, mqttClient.QoS())
		pub.SetLogger(log)
		reporters = append(reporters, pub)
	}
	if influxClient != nil {
		reporters = append(reporters, reporting.NewInfluxRecorder(influxClient))
	}
	journalSink := journal.NewSink(repo)
	journalSink.SetLogger(log)

	controller := newController(cfg, log, devs.session, sunProvider(cfg, opts.simulate), reporters,
		daycycle.MultiSink{journalSink, reporters})

	if mqttClient != nil {
		if err := subscribeAbort(mqttClient, controller, log); err != nil {
			return daycycle.Outcome{}, err
		}
	}

	var server *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Cycle:    controller,
			Journal:  repo,
			Metrics:  collector.Handler(),
			DB:       db.DB,
			Hub:      hub,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, err = api.New(deps)
		if err != nil {
			return daycycle.Outcome{}, fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return daycycle.Outcome{}, fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// The hub lives exactly as long as the cycle.
	var out daycycle.Outcome
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	g := new(errgroup.Group)
	g.Go(func() error {
		hub.Run(hubCtx)
		return nil
	})
	g.Go(func() error {
		defer stopHub()
		out = controller.RunCycle(ctx)
		return nil
	})
	_ = g.Wait()

	if influxClient != nil {
		influxClient.Flush()
	}
	log.Info("Night Watch stopped", "cycle_id", out.CycleID, "state", out.State)
	return out, nil
}

// newController builds the cycle controller and its collaborators.
func newController(
	cfg *config.Config,
	log *logging.Logger,
	session *observatory.Session,
	sun observatory.SunTimesProvider,
	rec reporting.Reporter,
	sink daycycle.EventSink,
) *daycycle.Controller {
	monitor := health.NewMonitor(health.Config{
		Mount:       session.Mount(),
		Dome:        session.Dome(),
		MaxAttempts: cfg.Health.MaxAttempts,
		Interval:    cfg.Health.Interval,
		Recorder:    rec,
	})
	monitor.SetLogger(log)

	exec := executor.New(executor.Config{
		Session:           session,
		OutputDir:         cfg.Observatory.OutputDir,
		ExposureSeconds:   cfg.Observatory.ExposureSeconds,
		PollInterval:      cfg.Observatory.PollInterval,
		ReadyPollInterval: cfg.Observatory.ReadyPollInterval,
		ReadyTimeout:      cfg.Observatory.ReadyTimeout,
		StopTimeout:       cfg.Observatory.CommandTimeout,
		Recorder:          rec,
	})
	exec.SetLogger(log)

	seq := shutdown.NewSequencer(shutdown.Config{
		Session:       session,
		DisableCooler: true,
		Timeout:       shutdownTimeout,
	})
	seq.SetLogger(log)

	controller := daycycle.NewController(daycycle.Config{
		Session:               session,
		SunTimes:              sun,
		Health:                monitor,
		Executor:              exec,
		Shutdown:              seq,
		Sink:                  sink,
		PlanFile:              cfg.Observatory.PlanFile,
		Location:              cfg.Location(),
		Latitude:              cfg.Site.Location.Latitude,
		Longitude:             cfg.Site.Location.Longitude,
		BlackoutBuffer:        cfg.Schedule.BlackoutBuffer,
		StartOffset:           cfg.Schedule.StartOffset,
		ShutdownBeforeSunrise: cfg.Schedule.ShutdownBeforeSunrise,
		ReadyTimeout:          cfg.Observatory.ConnectTimeout,
		HomeTimeout:           cfg.Observatory.HomeTimeout,
		DomeOpenAttempts:      cfg.Observatory.DomeOpenAttempts,
		DomeSettle:            cfg.Observatory.DomeSettle,
		PollInterval:          cfg.Observatory.PollInterval,
	})
	controller.SetLogger(log)
	return controller
}

// sunProvider returns the sunrise-sunset client, or with simulate a fixed
// clock on which sunset has just passed so the cycle starts at once.
func sunProvider(cfg *config.Config, simulate bool) observatory.SunTimesProvider {
	if !simulate {
		return suntimes.New(suntimes.Config{
			BaseURL:  cfg.SunTimes.BaseURL,
			Timeout:  cfg.SunTimes.Timeout,
			Attempts: cfg.SunTimes.Attempts,
		})
	}
	return simulatedSun(time.Now(), cfg.Location(), cfg.Schedule.BlackoutBuffer, cfg.Schedule.StartOffset)
}

// simulatedSun places today's sunrise and sunset before now, each clear of
// its blackout buffer, and sunset earlier than now by more than the start
// offset. Tomorrow's sunrise falls the same distance before now's time of
// day, close to a day away.
func simulatedSun(now time.Time, loc *time.Location, buffer, startOffset time.Duration) *sim.SunTimes {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	sinceMidnight := local.Sub(midnight)
	return sim.NewSunTimes(loc,
		sinceMidnight-buffer-time.Hour,
		sinceMidnight-max(buffer, startOffset)-time.Minute,
	)
}

// subscribeAbort lets an operator abort the cycle by publishing a reason on
// the system abort topic.
func subscribeAbort(client *mqtt.Client, controller *daycycle.Controller, log *logging.Logger) error {
	topic := mqtt.Topics{}.SystemAbort()
	err := client.Subscribe(topic, client.QoS(), func(_ string, payload []byte) error {
		reason := strings.TrimSpace(string(payload))
		if reason == "" {
			reason = "requested via MQTT"
		}
		if err := controller.Abort(reason); err != nil {
			if errors.Is(err, daycycle.ErrNotRunning) {
				log.Info("ignoring abort request, no cycle running")
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("listening for abort requests", "topic", topic)
	return nil
}
