// Package service provides the game rules on top of the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/realm"
)

// Common errors shared by the services.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrUnknownItem   = errors.New("unknown item")
	ErrCooldown      = errors.New("action is on cooldown")
)

// CooldownError carries the time left before an action may be repeated.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown for %s", e.Remaining.Round(time.Second))
}

// Is makes errors.Is(err, ErrCooldown) match.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// PlayerStore persists player documents.
type PlayerStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, name string, stones int64) (*model.Player, bool, error)
	GetByID(ctx context.Context, telegramID int64) (*model.Player, error)
	UpdateName(ctx context.Context, telegramID int64, name string) error
	AddStones(ctx context.Context, telegramID, amount int64) (*model.Player, error)
	AddExp(ctx context.Context, telegramID, amount int64) (*model.Player, error)
	SetRealm(ctx context.Context, telegramID int64, r realm.Realm, exp int64) (*model.Player, error)
	MarkSignIn(ctx context.Context, telegramID, at int64) error
	MarkCultivate(ctx context.Context, telegramID, at int64) error
	Transfer(ctx context.Context, fromID, toID, amount int64, outDesc, inDesc string) error
	JoinSect(ctx context.Context, telegramID, sectID int64, role model.SectRole) error
	LeaveSect(ctx context.Context, telegramID int64) error
	ClearSect(ctx context.Context, sectID int64) (int64, error)
	SetSectRole(ctx context.Context, telegramID int64, role model.SectRole) error
	RecordDonation(ctx context.Context, telegramID, amount int64) error
	MarkSectSigned(ctx context.Context, telegramID, contribution int64) (bool, error)
	ResetDaily(ctx context.Context) (int64, error)
	Members(ctx context.Context, sectID int64) ([]*model.SectMember, error)
	CountMembers(ctx context.Context, sectID int64, role model.SectRole) (total, withRole int, err error)
	Top(ctx context.Context, limit int) ([]*model.PlayerRank, error)
}

// LedgerStore records stone movements.
type LedgerStore interface {
	Create(ctx context.Context, playerID, amount int64, entryType string, description *string) (*model.LedgerEntry, error)
	ListByPlayer(ctx context.Context, playerID int64, limit int) ([]*model.LedgerEntry, error)
	DailyEarners(ctx context.Context, date time.Time, limit int) ([]*model.EarnerRank, error)
}

// BagStore persists stackable items.
type BagStore interface {
	Add(ctx context.Context, playerID int64, itemID string, qty int) error
	Remove(ctx context.Context, playerID int64, itemID string, qty int) error
	Count(ctx context.Context, playerID int64, itemID string) (int, error)
	List(ctx context.Context, playerID int64) ([]*model.BagItem, error)
	Prune(ctx context.Context) (int64, error)
}

// EquipmentStore persists equipment documents.
type EquipmentStore interface {
	Create(ctx context.Context, e *model.Equipment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Equipment, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Equipment, error)
	Equipped(ctx context.Context, ownerID int64) ([]*model.Equipment, error)
	FindByPrefix(ctx context.Context, ownerID int64, prefix string) ([]*model.Equipment, error)
	Update(ctx context.Context, e *model.Equipment) error
	SetSlot(ctx context.Context, id uuid.UUID, slot string) error
	Delete(ctx context.Context, id uuid.UUID) error
	WearEquipped(ctx context.Context, ownerID int64, n int) (int64, error)
}

// SectStore persists sects and join applications.
type SectStore interface {
	Create(ctx context.Context, name string, leaderID int64) (*model.Sect, error)
	GetByID(ctx context.Context, id int64) (*model.Sect, error)
	GetByName(ctx context.Context, name string) (*model.Sect, error)
	AddFunds(ctx context.Context, id, amount int64) (*model.Sect, error)
	Save(ctx context.Context, s *model.Sect) error
	Delete(ctx context.Context, id int64) error
	Top(ctx context.Context, limit int) ([]*model.SectRank, error)
	Apply(ctx context.Context, sectID, playerID int64) error
	Applications(ctx context.Context, sectID int64) ([]*model.SectApplication, error)
	DeleteApplication(ctx context.Context, sectID, playerID int64) (bool, error)
	ClearApplications(ctx context.Context, playerID int64) error
}

// BossStore persists world boss states and kills.
type BossStore interface {
	Get(ctx context.Context, bossID string) (*model.BossState, error)
	Save(ctx context.Context, st *model.BossState) error
	RecordKill(ctx context.Context, k *model.BossKill) error
	RecentKills(ctx context.Context, bossID string, limit int) ([]*model.BossKill, error)
}

// Stores groups the persistence dependencies of the services.
type Stores struct {
	Players   PlayerStore
	Ledger    LedgerStore
	Bag       BagStore
	Equipment EquipmentStore
	Sects     SectStore
	Bosses    BossStore
}

// Option customises a service.
type Option func(*base)

// WithRoller replaces the random source.
func WithRoller(r forge.Roller) Option {
	return func(b *base) { b.rng = r }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base holds what every service shares.
type base struct {
	Stores
	items *catalog.Catalog
	locks *lock.KeyLock[int64]
	rng   forge.Roller
	now   func() time.Time
}

func newBase(stores Stores, items *catalog.Catalog, locks *lock.KeyLock[int64], opts []Option) base {
	b := base{
		Stores: stores,
		items:  items,
		locks:  locks,
		rng:    forge.DefaultRoller,
		now:    time.Now,
	}
	if b.locks == nil {
		b.locks = lock.New[int64]()
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// record writes a ledger entry. The stone change has already happened, so a
// failure is logged rather than returned.
func (b *base) record(ctx context.Context, playerID, amount int64, entryType, desc string) {
	if amount == 0 {
		return
	}
	if _, err := b.Ledger.Create(ctx, playerID, amount, entryType, &desc); err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Str("type", entryType).Msg("Failed to record ledger entry")
	}
}

// spend takes stones from a player and records it.
func (b *base) spend(ctx context.Context, playerID, amount int64, entryType, desc string) (*model.Player, error) {
	if amount <= 0 {
		return b.Players.GetByID(ctx, playerID)
	}
	p, err := b.Players.AddStones(ctx, playerID, -amount)
	if err != nil {
		return nil, err
	}
	b.record(ctx, playerID, -amount, entryType, desc)
	return p, nil
}

// earn gives stones to a player and records it.
func (b *base) earn(ctx context.Context, playerID, amount int64, entryType, desc string) (*model.Player, error) {
	if amount <= 0 {
		return b.Players.GetByID(ctx, playerID)
	}
	p, err := b.Players.AddStones(ctx, playerID, amount)
	if err != nil {
		return nil, err
	}
	b.record(ctx, playerID, amount, entryType, desc)
	return p, nil
}

// grant puts qty of an item into a player's possession: equipment becomes
// new pieces, everything else stacks in the bag.
func (b *base) grant(ctx context.Context, playerID int64, itemID string, qty int) ([]*model.Equipment, error) {
	if qty <= 0 {
		return nil, ErrInvalidAmount
	}
	def, ok := b.items.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if !def.Kind.IsEquipment() {
		if err := b.Bag.Add(ctx, playerID, itemID, qty); err != nil {
			return nil, err
		}
		return nil, nil
	}

	pieces := make([]*model.Equipment, 0, qty)
	for range qty {
		eq := &model.Equipment{
			ID:            uuid.New(),
			OwnerID:       playerID,
			DefID:         def.ID,
			Durability:    def.Durability,
			MaxDurability: def.Durability,
			Sockets:       make([]string, def.Quality.Sockets()),
		}
		if err := b.Equipment.Create(ctx, eq); err != nil {
			return pieces, err
		}
		pieces = append(pieces, eq)
	}
	return pieces, nil
}

// stats returns a player's combat stats with worn gear.
func (b *base) stats(ctx context.Context, p *model.Player) (realm.Stats, []*model.Equipment, error) {
	gear, err := b.Equipment.Equipped(ctx, p.TelegramID)
	if err != nil {
		return realm.Stats{}, nil, err
	}
	return forge.CharacterStats(p.Realm, gear, b.items), gear, nil
}

// sectOf returns the player's sect, nil when they have none.
func (b *base) sectOf(ctx context.Context, p *model.Player) (*model.Sect, error) {
	if !p.InSect() {
		return nil, nil
	}
	return b.Sects.GetByID(ctx, *p.SectID)
}

// cooldownLeft returns how long remains of cooldown since the unix time
// last, or 0 when it has passed.
func (b *base) cooldownLeft(last int64, cooldown time.Duration) time.Duration {
	if last == 0 {
		return 0
	}
	return max(time.Unix(last, 0).Add(cooldown).Sub(b.now()), 0)
}
