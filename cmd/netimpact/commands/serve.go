package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-netimpact/pkg/api"
	"github.com/dd0wney/cluso-netimpact/pkg/events"
	"github.com/dd0wney/cluso-netimpact/pkg/jobs"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/telemetry"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and GraphQL API",
		Long: `Serves the analyses over HTTP until interrupted. Jobs publish progress
on the event bus and, when events.nng_url is set, on a nanomsg PUB socket
that "netimpact events" can follow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve wires the long-lived components and blocks until ctx is done.
func (a *app) serve(ctx context.Context) error {
	log := a.logger.With(logging.Component("serve"))
	cfg := a.cfg

	tcfg := cfg.Telemetry
	if tcfg.ServiceVersion == "" {
		tcfg.ServiceVersion = Version
	}
	if tcfg.Endpoint == "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		log.Debug("no OTLP endpoint configured, spans are discarded")
	}
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", logging.Error(err))
		}
	}()

	reg := metrics.NewRegistry()

	bus := events.NewBus(a.logger)
	defer bus.Shutdown()
	if cfg.Events.NNGURL != "" {
		pub, err := events.NewNNGPublisher(cfg.Events.NNGURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		bus.AddSink(pub)
		log.Info("publishing job events", logging.String("url", cfg.Events.NNGURL))
	}

	pool, err := a.newPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	manager := jobs.NewManager(jobs.Options{
		Retention:  cfg.Jobs.Retention,
		MaxRunning: cfg.Jobs.MaxRunning,
		Bus:        bus,
		Logger:     a.logger,
		Metrics:    reg,
	})
	defer manager.Close()

	store, err := a.openInstrumentedStore(ctx, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("scenario store close failed", logging.Error(err))
		}
	}()

	srv, err := api.NewServer(api.Options{
		Config:    cfg,
		Jobs:      manager,
		Scenarios: store,
		Metrics:   reg,
		Logger:    a.logger,
		Pool:      pool,
		Version:   Version,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Info("starting",
		logging.String("addr", cfg.Server.Addr),
		logging.String("scenario_backend", cfg.Scenarios.Backend),
		logging.Int("workers", pool.Workers()))
	return srv.Start(ctx)
}
