package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/sect"
)

// Errors for player operations.
var (
	ErrSelfGift     = errors.New("cannot gift to yourself")
	ErrMaxRealm     = errors.New("already at the highest realm")
	ErrNotEnoughExp = errors.New("not enough cultivation to break through")
	ErrNotUsable    = errors.New("item cannot be used")
	ErrItemNotInBag = errors.New("item not in bag")
	ErrNotEquipment = errors.New("item is not equipment")
	ErrRealmTooLow  = errors.New("realm too low")
)

// PlayerService handles cultivator progression and stones.
type PlayerService struct {
	base
	cfg config.PlayerConfig
}

// NewPlayerService creates a new PlayerService instance.
func NewPlayerService(
	stores Stores,
	items *catalog.Catalog,
	cfg config.PlayerConfig,
	locks *lock.KeyLock[int64],
	opts ...Option,
) *PlayerService {
	return &PlayerService{base: newBase(stores, items, locks, opts), cfg: cfg}
}

// EnsurePlayer returns the player, creating one with starting stones and the
// starter weapon equipped on first contact.
func (s *PlayerService) EnsurePlayer(ctx context.Context, telegramID int64, name string) (*model.Player, bool, error) {
	p, created, err := s.Players.GetOrCreate(ctx, telegramID, name, s.cfg.InitialStones)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure player: %w", err)
	}

	if !created {
		if name != "" && p.Name != name {
			if err := s.Players.UpdateName(ctx, telegramID, name); err != nil {
				log.Warn().Err(err).Int64("player_id", telegramID).Msg("Failed to update player name")
			}
			p.Name = name
		}
		return p, false, nil
	}

	s.record(ctx, telegramID, s.cfg.InitialStones, model.LedgerInitial, "初始灵石")
	if s.cfg.StarterWeapon != "" {
		if err := s.giveStarter(ctx, telegramID); err != nil {
			log.Warn().Err(err).Int64("player_id", telegramID).Msg("Failed to give starter weapon")
		}
	}
	log.Info().Int64("player_id", telegramID).Str("name", name).Msg("New cultivator created")
	return p, true, nil
}

func (s *PlayerService) giveStarter(ctx context.Context, telegramID int64) error {
	pieces, err := s.grant(ctx, telegramID, s.cfg.StarterWeapon, 1)
	if err != nil {
		return err
	}
	for _, eq := range pieces {
		def, _ := s.items.Item(eq.DefID)
		if err := s.Equipment.SetSlot(ctx, eq.ID, string(def.Slot)); err != nil {
			return err
		}
	}
	return nil
}

// GetPlayer retrieves a player.
func (s *PlayerService) GetPlayer(ctx context.Context, telegramID int64) (*model.Player, error) {
	return s.Players.GetByID(ctx, telegramID)
}

// Profile is everything /me shows.
type Profile struct {
	Player    *model.Player
	Stats     realm.Stats
	Gear      []*model.Equipment
	Sect      *model.Sect
	ExpToNext int64
	CanAscend bool
}

// Profile gathers a player's stats, gear and sect.
func (s *PlayerService) Profile(ctx context.Context, telegramID int64) (*Profile, error) {
	p, err := s.Players.GetByID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	stats, gear, err := s.stats(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load gear: %w", err)
	}
	sc, err := s.sectOf(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load sect: %w", err)
	}
	need, ok := realm.ExpToNext(p.Realm)
	return &Profile{
		Player:    p,
		Stats:     stats,
		Gear:      gear,
		Sect:      sc,
		ExpToNext: need,
		CanAscend: ok && p.Exp >= need,
	}, nil
}

// SignIn grants the daily reward, scaled by realm.
func (s *PlayerService) SignIn(ctx context.Context, telegramID int64) (int64, *model.Player, error) {
	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	p, err := s.Players.GetByID(ctx, telegramID)
	if err != nil {
		return 0, nil, err
	}
	if left := s.cooldownLeft(p.LastSignIn, s.cfg.SignInCooldown); left > 0 {
		return 0, nil, &CooldownError{Remaining: left}
	}

	reward := s.cfg.SignInReward * realm.Multiplier(p.Realm)
	p, err = s.earn(ctx, telegramID, reward, model.LedgerSignIn, "每日签到")
	if err != nil {
		return 0, nil, fmt.Errorf("failed to add sign-in reward: %w", err)
	}
	if err := s.Players.MarkSignIn(ctx, telegramID, s.now().Unix()); err != nil {
		return 0, nil, fmt.Errorf("failed to mark sign-in: %w", err)
	}
	return reward, p, nil
}

// CultivateExp returns the exp of one session at r with a library bonus.
func CultivateExp(r realm.Realm, bonusPercent int) int64 {
	return 100 * realm.Multiplier(r) * int64(100+bonusPercent) / 100
}

// Cultivate runs one cultivation session.
func (s *PlayerService) Cultivate(ctx context.Context, telegramID int64) (int64, *model.Player, error) {
	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	p, err := s.Players.GetByID(ctx, telegramID)
	if err != nil {
		return 0, nil, err
	}
	if left := s.cooldownLeft(p.LastCultivate, s.cfg.CultivateCooldown); left > 0 {
		return 0, nil, &CooldownError{Remaining: left}
	}

	bonus := 0
	if sc, err := s.sectOf(ctx, p); err != nil {
		log.Warn().Err(err).Int64("player_id", telegramID).Msg("Failed to load sect for cultivation bonus")
	} else if sc != nil {
		bonus = sect.CultivateBonusPercent(sc)
	}

	gained := CultivateExp(p.Realm, bonus)
	p, err = s.Players.AddExp(ctx, telegramID, gained)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to add exp: %w", err)
	}
	if err := s.Players.MarkCultivate(ctx, telegramID, s.now().Unix()); err != nil {
		return 0, nil, fmt.Errorf("failed to mark cultivation: %w", err)
	}
	return gained, p, nil
}

// BreakthroughResult describes a breakthrough attempt.
type BreakthroughResult struct {
	Success bool
	From    realm.Realm
	To      realm.Realm
	Rate    int
	ExpLost int64
	Player  *model.Player
}

// Breakthrough tries to advance to the next realm. Failure costs a fifth of
// the threshold.
func (s *PlayerService) Breakthrough(ctx context.Context, telegramID int64) (*BreakthroughResult, error) {
	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	p, err := s.Players.GetByID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	need, ok := realm.ExpToNext(p.Realm)
	if !ok {
		return nil, ErrMaxRealm
	}
	if p.Exp < need {
		return nil, fmt.Errorf("%w: %d/%d", ErrNotEnoughExp, p.Exp, need)
	}

	res := &BreakthroughResult{From: p.Realm, To: p.Realm, Rate: realm.BreakthroughRate(p.Realm)}
	if forge.Chance(s.rng, res.Rate) {
		res.Success = true
		res.To = p.Realm + 1
		p, err = s.Players.SetRealm(ctx, telegramID, res.To, p.Exp-need)
	} else {
		res.ExpLost = need / 5
		p, err = s.Players.SetRealm(ctx, telegramID, p.Realm, p.Exp-res.ExpLost)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store breakthrough: %w", err)
	}
	res.Player = p

	log.Info().
		Int64("player_id", telegramID).
		Bool("success", res.Success).
		Str("from", res.From.String()).
		Str("to", res.To.String()).
		Msg("Breakthrough attempted")
	return res, nil
}

// Gift moves stones from one player to another.
func (s *PlayerService) Gift(ctx context.Context, fromID, toID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfGift
	}

	unlock := s.locks.LockMany(fromID, toID)
	defer unlock()

	from, err := s.Players.GetByID(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := s.Players.GetByID(ctx, toID)
	if err != nil {
		return err
	}
	return s.Players.Transfer(ctx, fromID, toID, amount,
		fmt.Sprintf("赠予 %s", to.Name), fmt.Sprintf("来自 %s", from.Name))
}

// UseItem consumes one pill from the bag and returns the exp it gave.
func (s *PlayerService) UseItem(ctx context.Context, telegramID int64, itemRef string) (*catalog.ItemDef, int64, error) {
	def, ok := s.items.FindItem(itemRef)
	if !ok {
		return nil, 0, ErrUnknownItem
	}
	if def.Kind != catalog.KindConsumable || def.Exp <= 0 {
		return def, 0, ErrNotUsable
	}

	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	if err := s.Bag.Remove(ctx, telegramID, def.ID, 1); err != nil {
		return def, 0, err
	}
	if _, err := s.Players.AddExp(ctx, telegramID, def.Exp); err != nil {
		return def, 0, fmt.Errorf("failed to add exp: %w", err)
	}
	return def, def.Exp, nil
}

// History returns a player's latest ledger entries.
func (s *PlayerService) History(ctx context.Context, telegramID int64, limit int) ([]*model.LedgerEntry, error) {
	return s.Ledger.ListByPlayer(ctx, telegramID, limit)
}

// AdjustStones adds or, when negative, removes stones on behalf of an admin.
func (s *PlayerService) AdjustStones(ctx context.Context, telegramID, amount int64) (*model.Player, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	if amount > 0 {
		return s.earn(ctx, telegramID, amount, model.LedgerAdminAdjust, "管理员调整")
	}
	return s.spend(ctx, telegramID, -amount, model.LedgerAdminAdjust, "管理员调整")
}

// GiveItem grants items on behalf of an admin.
func (s *PlayerService) GiveItem(ctx context.Context, telegramID int64, itemRef string, qty int) (*catalog.ItemDef, error) {
	def, ok := s.items.FindItem(itemRef)
	if !ok {
		return nil, ErrUnknownItem
	}
	if _, err := s.Players.GetByID(ctx, telegramID); err != nil {
		return nil, err
	}

	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	if _, err := s.grant(ctx, telegramID, def.ID, qty); err != nil {
		return nil, err
	}
	return def, nil
}
