package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-optimizer/internal/config"
	"github.com/ignite/campaign-optimizer/internal/optimization/archive"
	"github.com/ignite/campaign-optimizer/internal/optimization/engine"
	"github.com/ignite/campaign-optimizer/internal/optimization/executor"
	"github.com/ignite/campaign-optimizer/internal/optimization/methods"
	"github.com/ignite/campaign-optimizer/internal/optimization/monitor"
	"github.com/ignite/campaign-optimizer/internal/optimization/notify"
	"github.com/ignite/campaign-optimizer/internal/optimization/platform"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
	"github.com/ignite/campaign-optimizer/internal/optimization/verifier"
	"github.com/ignite/campaign-optimizer/internal/optimization/warehouse"
	"github.com/ignite/campaign-optimizer/internal/pkg/distlock"
	"github.com/ignite/campaign-optimizer/internal/repository/postgres"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting optimization cycle worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Worker.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Worker.RedisURL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Worker.RedisURL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — falling back to PG advisory locks", cfg.Worker.RedisURL, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (distributed locking enabled)", cfg.Worker.RedisURL)
		}
		pingCancel()
	} else {
		log.Println("WORKER_REDIS_URL not set — using PG advisory locks for distributed locking")
	}

	campaigns := postgres.NewCampaignRepo(db)
	snapshots := postgres.NewSnapshotRepo(db)
	rawMetrics := postgres.NewRawMetricRepo(db)
	derivedKPIs := postgres.NewDerivedKPIRepo(db)
	trends := postgres.NewTrendIndicatorRepo(db)
	methodStore := postgres.NewMethodRepo(db)
	proposals := postgres.NewProposalRepo(db)
	executions := postgres.NewExecutionRepo(db)
	learnings := postgres.NewLearningRepo(db)
	monitorRuns := postgres.NewMonitorRunRepo(db)

	registry := methods.BuildDefaultRegistry()
	engineCfg := engine.Config{
		AutoApproveThreshold:   cfg.Optimization.AutoApproveThreshold,
		MaxProposalsPerHour:    cfg.Optimization.MaxProposalsPerHour,
		MaxBudgetChangePct:     cfg.Optimization.MaxBudgetChangePct,
		MinChannelFloorPct:     cfg.Optimization.MinChannelFloorPct,
		DefaultCooldownMinutes: cfg.Optimization.DefaultCooldownMinutes,
		ProposalTTL:            24 * time.Hour,
	}
	eng := engine.New(registry, campaigns, snapshots, rawMetrics, derivedKPIs, trends, methodStore, proposals, engineCfg)

	var metaAdapter *platform.MetaAdapter
	if cfg.Platform.MetaAppID != "" {
		metaAdapter = platform.NewMetaAdapter(platform.MetaConfig{
			AppID:       cfg.Platform.MetaAppID,
			AppSecret:   cfg.Platform.MetaAppSecret,
			AdAccountID: cfg.Platform.MetaAdAccountID,
			PageID:      cfg.Platform.MetaPageID,
		})
	}
	factory := platform.NewFactory(cfg.Optimization.UseDryRunExecution, metaAdapter)
	exec := executor.New(proposals, executions, factory)

	verif := verifier.New(proposals, learnings, methodStore, snapshots, rawMetrics, derivedKPIs, cfg.Optimization.VerificationDelayHours)

	mon := monitor.New(eng, exec, verif, proposals, monitorRuns)

	notifier := notify.New()

	archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	archiver, err := archive.New(archiveCtx, cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.S3Prefix)
	archiveCancel()
	if err != nil {
		log.Printf("Warning: archive init failed, monitor runs won't be archived to S3: %v", err)
	} else if archiver != nil {
		log.Printf("MonitorRun archiving enabled (bucket: %s)", cfg.Archive.S3Bucket)
	}

	export, err := warehouse.New(warehouse.Config{
		Account:   cfg.Warehouse.Account,
		User:      cfg.Warehouse.User,
		Password:  cfg.Warehouse.Password,
		Database:  cfg.Warehouse.Database,
		Schema:    cfg.Warehouse.Schema,
		Warehouse: cfg.Warehouse.Warehouse,
	})
	if err != nil {
		log.Printf("Warning: Snowflake warehouse export disabled: %v", err)
	} else if export != nil {
		defer export.Close()
		log.Printf("Snowflake KPI/trend export enabled (account: %s)", cfg.Warehouse.Account)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollInterval := cfg.Worker.PollInterval()
	if pollInterval == 0 {
		pollInterval = 5 * time.Minute
	}
	lockTTL := cfg.Worker.LockTTL()
	if lockTTL == 0 {
		lockTTL = 2 * time.Minute
	}

	runCycles := func(ctx context.Context) {
		active, err := campaigns.ListActive(ctx)
		if err != nil {
			log.Printf("Failed to list active campaigns: %v", err)
			return
		}
		for _, c := range active {
			lock := distlock.NewLock(redisClient, db, "optimization-cycle:"+c.ID, lockTTL)
			acquired, err := lock.Acquire(ctx)
			if err != nil {
				log.Printf("Campaign %s: lock acquire error: %v", c.ID, err)
				continue
			}
			if !acquired {
				log.Printf("Campaign %s: cycle already running elsewhere, skipping", c.ID)
				continue
			}

			result := mon.RunCycle(ctx, c.ID)
			if result.Success {
				log.Printf("Campaign %s: cycle completed (run %s)", c.ID, result.MonitorRunID)
			} else {
				log.Printf("Campaign %s: cycle completed with errors (run %s): %v", c.ID, result.MonitorRunID, result.Errors)
			}

			if archiver != nil && result.MonitorRunID != "" {
				if run, err := monitorRuns.Get(ctx, result.MonitorRunID); err == nil {
					if err := archiver.Put(ctx, run); err != nil {
						log.Printf("Campaign %s: archive failed: %v", c.ID, err)
					}
				}
			}

			if export != nil {
				if kpis, err := derivedKPIs.List(ctx, c.ID, store.Window{}); err == nil {
					if err := export.ExportDerivedKPIs(ctx, kpis); err != nil {
						log.Printf("Campaign %s: warehouse KPI export failed: %v", c.ID, err)
					}
				}
				if trendRows, err := trends.List(ctx, c.ID); err == nil {
					if err := export.ExportTrendIndicators(ctx, trendRows); err != nil {
						log.Printf("Campaign %s: warehouse trend export failed: %v", c.ID, err)
					}
				}
			}

			if executed, err := proposals.ListExecutedSince(ctx, c.ID, time.Now().Add(-pollInterval)); err == nil {
				for i := range executed {
					p := &executed[i]
					if msg, err := notifier.RenderApproval(p, ""); err == nil {
						log.Printf("notify: %s", msg)
					}
				}
			}

			if err := lock.Release(ctx); err != nil {
				log.Printf("Campaign %s: lock release error: %v", c.ID, err)
			}
		}
	}

	log.Printf("Optimization cycle worker running (poll interval: %s)", pollInterval)
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		runCycles(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCycles(ctx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	if redisClient != nil {
		redisClient.Close()
	}
	time.Sleep(1 * time.Second)
	log.Println("Worker stopped")
}
