package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
)

// Shop service errors
var (
	ErrNotForSale  = errors.New("item is not for sale")
	ErrMaxPurchase = errors.New("too many items in one purchase")
)

// MaxPurchaseQty bounds a single purchase.
const MaxPurchaseQty = 99

// Purchase describes a completed purchase.
type Purchase struct {
	Item   *catalog.ItemDef
	Qty    int
	Cost   int64
	Pieces []*model.Equipment
	Player *model.Player
}

// ShopService sells catalog items for spirit stones.
type ShopService struct {
	base
}

// NewShopService creates a new ShopService instance.
func NewShopService(stores Stores, items *catalog.Catalog, locks *lock.KeyLock[int64], opts ...Option) *ShopService {
	return &ShopService{base: newBase(stores, items, locks, opts)}
}

// Items returns everything on sale in display order.
func (s *ShopService) Items() []*catalog.ItemDef {
	return s.items.ShopItems()
}

// Item returns one item on sale.
func (s *ShopService) Item(ref string) (*catalog.ItemDef, error) {
	def, ok := s.items.FindItem(ref)
	if !ok {
		return nil, ErrUnknownItem
	}
	if def.Price <= 0 {
		return def, ErrNotForSale
	}
	return def, nil
}

// Balance returns the player's stones.
func (s *ShopService) Balance(ctx context.Context, playerID int64) (int64, error) {
	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return p.Stones, nil
}

// Buy spends stones on qty of an item. Stones are refunded when the items
// cannot be delivered.
func (s *ShopService) Buy(ctx context.Context, playerID int64, ref string, qty int) (*Purchase, error) {
	if qty <= 0 {
		return nil, ErrInvalidAmount
	}
	if qty > MaxPurchaseQty {
		return nil, ErrMaxPurchase
	}
	def, err := s.Item(ref)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	cost := def.Price * int64(qty)
	desc := fmt.Sprintf("购买 %s x%d", def.Name, qty)
	p, err := s.spend(ctx, playerID, cost, model.LedgerShopPurchase, desc)
	if err != nil {
		return nil, err
	}

	pieces, err := s.grant(ctx, playerID, def.ID, qty)
	if err != nil {
		// Pieces already created stay with the player; refund the rest.
		refund := def.Price * int64(qty-len(pieces))
		if _, refundErr := s.earn(ctx, playerID, refund, model.LedgerShopPurchase, "购买失败退还"); refundErr != nil {
			log.Error().Err(refundErr).Int64("player_id", playerID).Msg("Failed to refund purchase")
		}
		return nil, fmt.Errorf("failed to deliver %s: %w", def.ID, err)
	}

	log.Info().
		Int64("player_id", playerID).
		Str("item", def.ID).
		Int("qty", qty).
		Int64("cost", cost).
		Msg("Shop purchase")
	return &Purchase{Item: def, Qty: qty, Cost: cost, Pieces: pieces, Player: p}, nil
}
