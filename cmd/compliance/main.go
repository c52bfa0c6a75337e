package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fleet-monitor/compliance/internal/auth"
	"fleet-monitor/compliance/internal/config"
	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/events"
	"fleet-monitor/compliance/internal/geofence"
	"fleet-monitor/compliance/internal/logger"
	"fleet-monitor/compliance/internal/pipeline"
	"fleet-monitor/compliance/internal/ratelimit"
	"fleet-monitor/compliance/internal/service"
	"fleet-monitor/compliance/internal/store"
	httptransport "fleet-monitor/compliance/internal/transport/http"
	"fleet-monitor/compliance/internal/transport/ws"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "compliance",
		Short: "Fleet compliance engine - geofence arrivals, SLA, fuel theft and risk",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(riskBatchCmd())
	rootCmd.AddCommand(sweepMissedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps holds the connections every command needs.
type deps struct {
	cfg    *config.Config
	db     *store.TimescaleStore
	redis  *store.RedisStore
	events events.Publisher
	svc    *service.Service
}

func connect(ctx context.Context) (*deps, error) {
	cfg := config.Load()
	logger.Setup(os.Stdout, "compliance", cfg.LogLevel)

	db, err := store.NewTimescaleStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rdb, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var pub events.Publisher
	switch cfg.EventBroker {
	case "amqp":
		p, err := events.DialAMQP(cfg.AMQPURL, 5)
		if err != nil {
			db.Close()
			rdb.Close()
			return nil, err
		}
		pub = p
	case "none":
		pub = events.NopPublisher{}
	default:
		pub = events.NewRedisPublisher(rdb.Client())
	}

	var states geofence.StateStore
	if cfg.GeofenceStateStore == "memory" {
		states = geofence.NewMemoryStateStore()
	} else {
		states = rdb.GeofenceStates(cfg.GeofenceStateTTL)
	}

	svc := service.New(db, states, pub, service.OptionsFromConfig(cfg))
	return &deps{cfg: cfg, db: db, redis: rdb, events: pub, svc: svc}, nil
}

func (d *deps) close() {
	d.events.Close()
	d.redis.Close()
	d.db.Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, ingest pipeline and risk scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()
			return serve(ctx, d)
		},
	}
}

func serve(ctx context.Context, d *deps) error {
	cfg := d.cfg
	var wg sync.WaitGroup
	spawn := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitBackend == "memory" {
		ml := ratelimit.NewMemoryLimiter(cfg.RateLimitInterval())
		spawn(ml.Run)
		limiter = ml
	} else {
		limiter = d.redis.Limiter(cfg.RateLimitInterval())
	}

	dispatcher := pipeline.NewDispatcher(cfg.DBChannelSize, cfg.StateChannelSize, cfg.ArrivalChannelSize, cfg.ArrivalWorkers)

	var workers sync.WaitGroup
	work := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(ctx)
		}()
	}
	for i := 0; i < cfg.DBWriterWorkers; i++ {
		work(pipeline.NewDBWriter(dispatcher.DBChan, d.db, cfg.DBBatchSize, cfg.DBFlushIntervalMS, cfg.StoreTimeout()).Run)
	}
	for i := 0; i < cfg.StateWriterWorkers; i++ {
		work(pipeline.NewStateWriter(dispatcher.StateChan, d.redis, cfg.StoreTimeout()).Run)
	}
	for _, ch := range dispatcher.ArrivalChans {
		work(pipeline.NewArrivalWorker(ch, d.svc, cfg.StoreTimeout()).Run)
	}

	spawn(pipeline.NewRiskScheduler(d.svc, cfg.RiskBatchInterval).Run)

	hub := ws.NewHub()
	sub := d.redis.SubscribeTelemetry(ctx)
	defer sub.Close()
	spawn(func(ctx context.Context) { hub.Consume(ctx, sub.Channel()) })

	authn := auth.NewAuthenticator(cfg, d.redis)
	api := httptransport.NewServer(d.svc, pipeline.NewGateway(limiter, dispatcher), httptransport.NewAuthMiddleware(authn),
		httptransport.WithLive(hub),
		httptransport.WithHealthCheck("timescale", d.db.Ping),
		httptransport.WithHealthCheck("redis", d.redis.Ping),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_start", "Compliance API listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("server_stop", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_stop", "HTTP shutdown failed", err)
	}

	// No more Dispatch calls after Shutdown; writers drain what is queued.
	dispatcher.Close()
	workers.Wait()
	wg.Wait()
	return nil
}

func riskBatchCmd() *cobra.Command {
	var vehicleID string

	cmd := &cobra.Command{
		Use:   "risk-batch",
		Short: "Score one vehicle, or every vehicle, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			var target *string
			if vehicleID != "" {
				target = &vehicleID
			}
			res, err := d.svc.RunRiskBatch(ctx, target)
			if err != nil {
				return err
			}
			fmt.Printf("processed %d vehicles, %d failed\n", res.Processed, len(res.Errors))
			for _, ra := range res.Assessments {
				fmt.Printf("  %-20s score=%d level=%s\n", ra.VehicleID, ra.RiskScore, ra.RiskLevel)
			}
			for _, e := range res.Errors {
				fmt.Printf("  %-20s error: %s\n", e.VehicleID, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "Vehicle id (default: all vehicles)")
	return cmd
}

func sweepMissedCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "sweep-missed",
		Short: "Record MISSED arrivals for windows that closed without an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.close()

			when, err := domain.ParseDay(day, time.Now(), d.svc.Location())
			if err != nil {
				return err
			}
			res, err := d.svc.SweepMissed(ctx, when)
			if err != nil {
				return err
			}
			fmt.Printf("%s: checked %d assignments, %d missed, %d errors\n", res.Day, res.Checked, res.Missed, len(res.Errors))
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "Day as YYYY-MM-DD (default: today)")
	return cmd
}
