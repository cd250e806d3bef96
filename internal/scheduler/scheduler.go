// Package scheduler runs the periodic game jobs: the daily reset and the
// world boss respawn sweep.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
)

// Default job specs.
const (
	DefaultDailyReset = "0 0 * * *"
	DefaultBossSweep  = "@every 1m"
)

// jobTimeout bounds a single job run.
const jobTimeout = time.Minute

// Resetter clears the per-day counters.
type Resetter interface {
	ResetDaily(ctx context.Context) (players, pruned int64, err error)
}

// Sweeper respawns due world bosses.
type Sweeper interface {
	Sweep(ctx context.Context) ([]*catalog.BossDef, error)
}

// Announcer broadcasts a message to chats.
type Announcer interface {
	Announce(chatIDs []int64, text string) error
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron      *cron.Cron
	resetter  Resetter
	sweeper   Sweeper
	announcer Announcer
	chats     []int64
}

// New registers the jobs described by cfg. announcer may be nil, in which
// case respawns are only logged.
func New(cfg config.SchedulerConfig, chats []int64, resetter Resetter, sweeper Sweeper, announcer Announcer) (*Scheduler, error) {
	s := &Scheduler{
		resetter:  resetter,
		sweeper:   sweeper,
		announcer: announcer,
		chats:     chats,
	}

	logger := cronLogger{log.Logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	dailySpec := cfg.DailyReset
	if dailySpec == "" {
		dailySpec = DefaultDailyReset
	}
	sweepSpec := cfg.BossSweep
	if sweepSpec == "" {
		sweepSpec = DefaultBossSweep
	}

	if _, err := s.cron.AddFunc(dailySpec, s.job("daily_reset", s.RunDailyReset)); err != nil {
		return nil, fmt.Errorf("invalid daily_reset spec %q: %w", dailySpec, err)
	}
	if _, err := s.cron.AddFunc(sweepSpec, s.job("boss_sweep", s.RunBossSweep)); err != nil {
		return nil, fmt.Errorf("invalid boss_sweep spec %q: %w", sweepSpec, err)
	}

	return s, nil
}

// job wraps fn with a timeout and duration logging.
func (s *Scheduler) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		ev := log.Debug()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("job", name).Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	}
}

// RunDailyReset clears daily sect counters and prunes empty bag rows.
func (s *Scheduler) RunDailyReset(ctx context.Context) error {
	players, pruned, err := s.resetter.ResetDaily(ctx)
	if err != nil {
		return fmt.Errorf("daily reset: %w", err)
	}
	log.Info().Int64("players", players).Int64("pruned", pruned).Msg("Daily reset done")
	return nil
}

// RunBossSweep respawns due bosses and announces them.
func (s *Scheduler) RunBossSweep(ctx context.Context) error {
	spawned, err := s.sweeper.Sweep(ctx)
	if len(spawned) > 0 {
		names := make([]string, 0, len(spawned))
		for _, def := range spawned {
			names = append(names, def.Name)
		}
		log.Info().Strs("bosses", names).Msg("Bosses respawned")

		if s.announcer != nil && len(s.chats) > 0 {
			if aerr := s.announcer.Announce(s.chats, FormatRespawn(spawned)); aerr != nil {
				log.Warn().Err(aerr).Msg("Failed to announce respawn")
			}
		}
	}
	if err != nil {
		return fmt.Errorf("boss sweep: %w", err)
	}
	return nil
}

// FormatRespawn renders the respawn announcement.
func FormatRespawn(spawned []*catalog.BossDef) string {
	var b strings.Builder
	b.WriteString("🐉 世界首领降临！\n")
	for _, def := range spawned {
		fmt.Fprintf(&b, "👹 %s 气血 %s\n", def.Name, catalog.FormatNumber(def.HP))
	}
	b.WriteString("使用 /boss_attack <首领> 讨伐")
	return b.String()
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting scheduler...")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping scheduler...")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	zl zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zl.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
