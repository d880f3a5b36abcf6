package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sawtooth/internal/config"
	"sawtooth/internal/http/handlers"
	"sawtooth/internal/images"
	applog "sawtooth/internal/log"
	"sawtooth/internal/metrics"
	"sawtooth/internal/payments"
	"sawtooth/internal/ratelimit"
	"sawtooth/internal/repos"
	"sawtooth/internal/services"
	"sawtooth/internal/sourcing"
	"sawtooth/internal/telemetry"
)

const usage = `usage: sawtooth <command>

commands:
  serve     run the HTTP API (default)
  sweep     archive products sold out for 7 days and exit
  migrate   create or upgrade the schema and exit
`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := applog.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "sweep":
		err = sweep(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+".fail", zap.Error(err))
		os.Exit(1)
	}
}

func migrate(_ context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("migrate.done")
	return nil
}

// sweep runs one archival pass and prints the summary as JSON for the
// scheduler.
func sweep(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := imageStore(ctx, cfg)
	if err != nil {
		return err
	}
	svc := services.NewArchiveService(db, repos.NewProductRepo(db), store, nil)
	svc.Log = log
	res, err := svc.RunSweep(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		log.Warn("telemetry.init.fail", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repos.SeedIfEmpty(ctx, db, time.Now()); err != nil {
		return err
	}

	col := handlers.Collaborators{Metrics: metrics.New(), Generator: sourcing.FallbackGenerator{}}
	if cfg.StripeSecretKey != "" {
		col.Payments = payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		log.Warn("stripe.unconfigured")
	}
	if col.Images, err = imageStore(ctx, cfg); err != nil {
		return err
	}
	if cfg.OpenAIKey != "" {
		col.Generator = sourcing.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel)
	}
	if cfg.RedisURL != "" {
		rs, err := ratelimit.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		col.RateStorage = rs
	}

	deps := handlers.NewDeps(db, cfg, col)
	deps.Archive.Log = log
	if !deps.Auth.Configured() {
		log.Warn("admin.auth.unconfigured")
	}
	if cfg.SweepOnServe && cfg.SweepInterval > 0 {
		go deps.Archive.RunEvery(ctx, cfg.SweepInterval)
	}

	app := handlers.NewApp(deps)
	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("server.start", zap.String("port", cfg.Port), zap.String("site_url", cfg.SiteURL))
	if err := app.Listen(":" + cfg.Port); err != nil {
		return err
	}
	return nil
}

func imageStore(ctx context.Context, cfg config.Config) (images.Store, error) {
	if cfg.S3Bucket != "" {
		client, err := images.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return images.NewS3Store(client, cfg.S3Bucket), nil
	}
	return images.NewDirStore(cfg.MediaDir)
}
