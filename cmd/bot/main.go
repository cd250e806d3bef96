// Package main is the entry point for the cultivation bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"cultivation-bot/internal/bot"
	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/pkg/db"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/pkg/logging"
	"cultivation-bot/internal/repository"
	"cultivation-bot/internal/scheduler"
	"cultivation-bot/internal/service"
)

const shutdownTimeout = 10 * time.Second

var errPollingStopped = errors.New("telegram polling stopped unexpectedly")

type poller interface {
	Start()
	Stop()
}

type jobRunner interface {
	Start()
	Stop(ctx context.Context) error
}

// run polls Telegram and runs scheduled jobs until ctx is cancelled or
// polling ends on its own, then shuts both down.
func run(ctx context.Context, b poller, sched jobRunner) error {
	g, gctx := errgroup.WithContext(ctx)
	polling := make(chan struct{})

	g.Go(func() error {
		defer close(polling)
		b.Start()
		if gctx.Err() == nil {
			return errPollingStopped
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		<-gctx.Done()

		log.Info().Msg("Received shutdown signal")
		// Stop blocks forever once polling has already returned.
		select {
		case <-polling:
		default:
			b.Stop()
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return sched.Stop(stopCtx)
	})

	return g.Wait()
}

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closer := logging.Setup(cfg.Log)
	defer closer.Close()

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	items, err := catalog.Load(cfg.Content.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Content.Dir).Msg("Failed to load game content")
	}
	nItems, nMonsters, nBosses := items.Counts()
	log.Info().
		Int("items", nItems).
		Int("monsters", nMonsters).
		Int("bosses", nBosses).
		Msg("Game content loaded")

	// Initialize repositories
	stores := service.Stores{
		Players:   repository.NewPlayerRepository(dbPool.Pool),
		Ledger:    repository.NewLedgerRepository(dbPool.Pool),
		Bag:       repository.NewBagRepository(dbPool.Pool),
		Equipment: repository.NewEquipmentRepository(dbPool.Pool),
		Sects:     repository.NewSectRepository(dbPool.Pool),
		Bosses:    repository.NewBossRepository(dbPool.Pool),
	}

	// One lock per player shared by every service
	playerLock := lock.New[int64]()

	// Initialize services
	playerService := service.NewPlayerService(stores, items, cfg.Player, playerLock)
	equipmentService := service.NewEquipmentService(stores, items, cfg.Forge, playerLock)
	huntService := service.NewHuntService(stores, items, cfg.Hunt, playerLock)
	bossService := service.NewBossService(stores, items, cfg.Boss, playerLock)
	sectService := service.NewSectService(stores, items, cfg.Sect, playerLock)
	shopService := service.NewShopService(stores, items, playerLock)
	rankingService := service.NewRankingService(stores, cfg.Scheduler.Location())

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:           cfg,
		Items:            items,
		PlayerService:    playerService,
		EquipmentService: equipmentService,
		HuntService:      huntService,
		BossService:      bossService,
		SectService:      sectService,
		ShopService:      shopService,
		RankingService:   rankingService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sched, err := scheduler.New(cfg.Scheduler, cfg.Boss.AnnounceChats, sectService, bossService, telegramBot)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	if err := run(ctx, telegramBot, sched); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with error")
		return
	}
	log.Info().Msg("Bot stopped gracefully")
}
