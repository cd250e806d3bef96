package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/realm"
)

// Errors for hunting.
var (
	ErrUnknownMonster = errors.New("unknown monster")
	ErrNoMonsters     = errors.New("no monsters for this realm")
	ErrMonsterTooHigh = errors.New("monster realm above player realm")
)

// DropResult is one item received from a hunt.
type DropResult struct {
	Item *catalog.ItemDef
	Qty  int
}

// HuntReport describes one fight.
type HuntReport struct {
	Monster     *catalog.MonsterDef
	Won         bool
	Rounds      int
	DamageDealt int64
	DamageTaken int64
	Exp         int64
	Stones      int64
	Drops       []DropResult
	Player      *model.Player
}

// HuntService runs fights against ordinary monsters.
type HuntService struct {
	base
	cfg config.HuntConfig

	cooldowns map[int64]time.Time // player_id -> last hunt
	mu        sync.Mutex
}

// NewHuntService creates a new HuntService instance.
func NewHuntService(
	stores Stores,
	items *catalog.Catalog,
	cfg config.HuntConfig,
	locks *lock.KeyLock[int64],
	opts ...Option,
) *HuntService {
	return &HuntService{
		base:      newBase(stores, items, locks, opts),
		cfg:       cfg,
		cooldowns: make(map[int64]time.Time),
	}
}

// Cooldown returns the time left before the player may hunt again.
func (s *HuntService) Cooldown(playerID int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.cooldowns[playerID]
	if !ok {
		return 0
	}
	return max(last.Add(s.cfg.Cooldown).Sub(s.now()), 0)
}

// Monsters lists what a player of realm r may hunt.
func (s *HuntService) Monsters(r realm.Realm) []*catalog.MonsterDef {
	return s.items.MonstersForRealm(r)
}

// Fight plays out a duel between the player and a monster. Both sides hit
// for max(1, atk-def) each round, the player first.
func Fight(player realm.Stats, m *catalog.MonsterDef, maxRounds int) (won bool, rounds int, dealt, taken int64) {
	if maxRounds <= 0 {
		maxRounds = 1
	}
	ms := m.Stats()
	hit := max(player.Attack-ms.Defense, 1)
	suffer := max(ms.Attack-player.Defense, 1)
	monsterHP, playerHP := ms.HP, player.HP

	for rounds = 1; rounds <= maxRounds; rounds++ {
		d := min(hit, monsterHP)
		monsterHP -= d
		dealt += d
		if monsterHP == 0 {
			return true, rounds, dealt, taken
		}
		t := min(suffer, playerHP)
		playerHP -= t
		taken += t
		if playerHP == 0 {
			return false, rounds, dealt, taken
		}
	}
	return false, maxRounds, dealt, taken
}

// Hunt fights monsterRef, or a random monster of the player's realm when
// it is empty.
func (s *HuntService) Hunt(ctx context.Context, playerID int64, monsterRef string) (*HuntReport, error) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	if left := s.Cooldown(playerID); left > 0 {
		return nil, &CooldownError{Remaining: left}
	}

	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	var m *catalog.MonsterDef
	if monsterRef != "" {
		m = s.findMonster(monsterRef)
		if m == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMonster, monsterRef)
		}
		if m.Realm > p.Realm {
			return nil, ErrMonsterTooHigh
		}
	} else {
		m = s.items.RandomMonster(p.Realm, s.rng.Intn)
		if m == nil {
			return nil, ErrNoMonsters
		}
	}

	stats, _, err := s.stats(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load gear: %w", err)
	}

	s.mu.Lock()
	s.cooldowns[playerID] = s.now()
	s.mu.Unlock()

	rep := &HuntReport{Monster: m, Player: p}
	rep.Won, rep.Rounds, rep.DamageDealt, rep.DamageTaken = Fight(stats, m, s.cfg.MaxRounds)

	if _, err := s.Equipment.WearEquipped(ctx, playerID, 1); err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Msg("Failed to wear equipment")
	}

	if !rep.Won {
		return rep, nil
	}

	if m.Exp > 0 {
		if p, err = s.Players.AddExp(ctx, playerID, m.Exp); err != nil {
			return nil, fmt.Errorf("failed to add exp: %w", err)
		}
		rep.Exp = m.Exp
		rep.Player = p
	}
	if m.Stones > 0 {
		if p, err = s.earn(ctx, playerID, m.Stones, model.LedgerHunt, "击杀 "+m.Name); err != nil {
			return nil, fmt.Errorf("failed to add stones: %w", err)
		}
		rep.Stones = m.Stones
		rep.Player = p
	}

	for _, dr := range m.Drops {
		if s.rng.Intn(1000) >= dr.Chance {
			continue
		}
		qty := max(dr.Qty, 1)
		if _, err := s.grant(ctx, playerID, dr.Item, qty); err != nil {
			log.Warn().Err(err).Int64("player_id", playerID).Str("item", dr.Item).Msg("Failed to grant drop")
			continue
		}
		def, _ := s.items.Item(dr.Item)
		rep.Drops = append(rep.Drops, DropResult{Item: def, Qty: qty})
	}

	log.Debug().
		Int64("player_id", playerID).
		Str("monster", m.ID).
		Int("rounds", rep.Rounds).
		Int("drops", len(rep.Drops)).
		Msg("Hunt won")
	return rep, nil
}

func (s *HuntService) findMonster(ref string) *catalog.MonsterDef {
	if m, ok := s.items.Monster(ref); ok {
		return m
	}
	for r := realm.Realm(0); r <= realm.Max; r++ {
		for _, m := range s.items.MonstersForRealm(r) {
			if m.Name == ref {
				return m
			}
		}
	}
	return nil
}
