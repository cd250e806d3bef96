package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/boss"
	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/repository"
)

// Errors for world bosses.
var (
	ErrUnknownBoss = errors.New("unknown boss")
	ErrBossDead    = errors.New("boss is dead")
)

// BossDeadError carries the time until the boss returns.
type BossDeadError struct {
	RespawnIn time.Duration
}

func (e *BossDeadError) Error() string {
	return fmt.Sprintf("boss respawns in %s", e.RespawnIn.Round(time.Second))
}

// Is makes errors.Is(err, ErrBossDead) match.
func (e *BossDeadError) Is(target error) bool {
	return target == ErrBossDead
}

// BossStatus is a boss definition with its live state.
type BossStatus struct {
	Def       *catalog.BossDef
	State     *model.BossState
	RespawnIn time.Duration
}

// AttackReport describes one hit on a boss.
type AttackReport struct {
	Boss   *catalog.BossDef
	Damage int64
	Killed bool
	State  *model.BossState
	Shares []boss.Share
	Player *model.Player
}

// BossService runs world bosses shared by all players.
type BossService struct {
	base
	cfg       config.BossConfig
	bossLocks *lock.KeyLock[string]

	cooldowns map[int64]time.Time // player_id -> last attack
	mu        sync.Mutex
}

// NewBossService creates a new BossService instance.
func NewBossService(
	stores Stores,
	items *catalog.Catalog,
	cfg config.BossConfig,
	locks *lock.KeyLock[int64],
	opts ...Option,
) *BossService {
	return &BossService{
		base:      newBase(stores, items, locks, opts),
		cfg:       cfg,
		bossLocks: lock.New[string](),
		cooldowns: make(map[int64]time.Time),
	}
}

// FindBoss resolves a boss id or display name.
func (s *BossService) FindBoss(ref string) (*catalog.BossDef, bool) {
	if def, ok := s.items.Boss(ref); ok {
		return def, true
	}
	for _, def := range s.items.Bosses() {
		if def.Name == ref {
			return def, true
		}
	}
	return nil, false
}

// Cooldown returns the time left before the player may attack again.
func (s *BossService) Cooldown(playerID int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.cooldowns[playerID]
	if !ok {
		return 0
	}
	return max(last.Add(s.cfg.AttackCooldown).Sub(s.now()), 0)
}

// load returns the boss state, spawning it when it has never existed or is
// due to return. The boss lock must be held.
func (s *BossService) load(ctx context.Context, def *catalog.BossDef) (*model.BossState, bool, error) {
	now := s.now()
	st, err := s.Bosses.Get(ctx, def.ID)
	switch {
	case errors.Is(err, repository.ErrBossNotFound):
	case err != nil:
		return nil, false, err
	case !boss.ShouldRespawn(st, def, now):
		return st, false, nil
	}

	st = boss.Spawn(def, now)
	if err := s.Bosses.Save(ctx, st); err != nil {
		return nil, false, err
	}
	log.Info().Str("boss", def.ID).Int64("hp", st.HP).Msg("Boss spawned")
	return st, true, nil
}

// Status returns the current state of one boss.
func (s *BossService) Status(ctx context.Context, ref string) (*BossStatus, error) {
	def, ok := s.FindBoss(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoss, ref)
	}
	s.bossLocks.Lock(def.ID)
	defer s.bossLocks.Unlock(def.ID)

	st, _, err := s.load(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to load boss: %w", err)
	}
	return &BossStatus{Def: def, State: st, RespawnIn: boss.RespawnIn(st, def, s.now())}, nil
}

// List returns the status of every boss.
func (s *BossService) List(ctx context.Context) ([]*BossStatus, error) {
	defs := s.items.Bosses()
	out := make([]*BossStatus, 0, len(defs))
	for _, def := range defs {
		st, err := s.Status(ctx, def.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Attack hits a boss once. The killing blow splits the stone pool among
// everyone who dealt damage.
func (s *BossService) Attack(ctx context.Context, playerID int64, ref string) (*AttackReport, error) {
	def, ok := s.FindBoss(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoss, ref)
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	if left := s.Cooldown(playerID); left > 0 {
		return nil, &CooldownError{Remaining: left}
	}
	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Realm < def.Realm {
		return nil, ErrRealmTooLow
	}
	stats, _, err := s.stats(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load gear: %w", err)
	}

	s.bossLocks.Lock(def.ID)
	defer s.bossLocks.Unlock(def.ID)

	st, _, err := s.load(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to load boss: %w", err)
	}
	now := s.now()
	if !st.Alive() {
		return nil, &BossDeadError{RespawnIn: boss.RespawnIn(st, def, now)}
	}

	rep := &AttackReport{Boss: def, State: st, Player: p}
	rep.Damage, rep.Killed = boss.Hit(st, playerID, boss.RollDamage(stats, def, s.rng), now)
	if err := s.Bosses.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save boss: %w", err)
	}

	s.mu.Lock()
	s.cooldowns[playerID] = now
	s.mu.Unlock()

	if _, err := s.Equipment.WearEquipped(ctx, playerID, 1); err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Msg("Failed to wear equipment")
	}

	if rep.Killed {
		rep.Shares = s.reward(ctx, def, st, playerID)
		if updated, err := s.Players.GetByID(ctx, playerID); err == nil {
			rep.Player = updated
		}
	}
	return rep, nil
}

// reward pays out a dead boss and records the kill.
func (s *BossService) reward(ctx context.Context, def *catalog.BossDef, st *model.BossState, killerID int64) []boss.Share {
	shares := boss.Split(def, st.Damage, killerID)
	for _, sh := range shares {
		desc := "讨伐 " + def.Name
		if sh.Killer {
			desc += " (最后一击)"
		}
		if _, err := s.earn(ctx, sh.PlayerID, sh.Stones, model.LedgerBoss, desc); err != nil {
			log.Error().Err(err).Int64("player_id", sh.PlayerID).Str("boss", def.ID).Msg("Failed to pay boss reward")
		}
		if sh.TopDrop != "" {
			if _, err := s.grant(ctx, sh.PlayerID, sh.TopDrop, 1); err != nil {
				log.Error().Err(err).Int64("player_id", sh.PlayerID).Str("item", sh.TopDrop).Msg("Failed to grant boss drop")
			}
		}
	}

	kill := &model.BossKill{
		BossID:       def.ID,
		KillerID:     killerID,
		Participants: len(shares),
		KilledAt:     *st.KilledAt,
	}
	if len(shares) > 0 {
		kill.TopDamageID = shares[0].PlayerID
	}
	if err := s.Bosses.RecordKill(ctx, kill); err != nil {
		log.Error().Err(err).Str("boss", def.ID).Msg("Failed to record boss kill")
	}

	log.Info().
		Str("boss", def.ID).
		Int64("killer_id", killerID).
		Int("participants", len(shares)).
		Msg("Boss killed")
	return shares
}

// Sweep respawns every boss that is due and returns them.
func (s *BossService) Sweep(ctx context.Context) ([]*catalog.BossDef, error) {
	var spawned []*catalog.BossDef
	for _, def := range s.items.Bosses() {
		s.bossLocks.Lock(def.ID)
		_, fresh, err := s.load(ctx, def)
		s.bossLocks.Unlock(def.ID)
		if err != nil {
			return spawned, fmt.Errorf("failed to sweep boss %s: %w", def.ID, err)
		}
		if fresh {
			spawned = append(spawned, def)
		}
	}
	return spawned, nil
}

// ForceRespawn resets a boss to full health, dropping its damage ledger.
func (s *BossService) ForceRespawn(ctx context.Context, ref string) (*catalog.BossDef, error) {
	def, ok := s.FindBoss(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoss, ref)
	}
	s.bossLocks.Lock(def.ID)
	defer s.bossLocks.Unlock(def.ID)

	if err := s.Bosses.Save(ctx, boss.Spawn(def, s.now())); err != nil {
		return nil, fmt.Errorf("failed to respawn boss: %w", err)
	}
	log.Info().Str("boss", def.ID).Str("operation", "force_respawn").Msg("Boss respawned by admin")
	return def, nil
}

// RecentKills returns the latest kills of a boss.
func (s *BossService) RecentKills(ctx context.Context, ref string, limit int) ([]*model.BossKill, error) {
	def, ok := s.FindBoss(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoss, ref)
	}
	return s.Bosses.RecentKills(ctx, def.ID, limit)
}
