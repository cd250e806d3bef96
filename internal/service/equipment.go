package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/repository"
	"cultivation-bot/internal/sect"
)

// Errors for equipment operations.
var (
	ErrAmbiguousID     = errors.New("equipment id prefix matches several pieces")
	ErrShortID         = errors.New("equipment id prefix too short")
	ErrBadRef          = errors.New("equipment id may only hold hex digits and dashes")
	ErrAlreadyEquipped = errors.New("equipment already worn")
	ErrEquipped        = errors.New("equipment is worn")
	ErrSlotEmpty       = errors.New("nothing equipped in that slot")
	ErrNoProtection    = errors.New("no protection talisman in bag")
	ErrNoRefineStones  = errors.New("not enough refine stones")
)

// MinRefLen is the shortest id prefix accepted in commands.
const MinRefLen = 4

// EquipmentService handles the bag and everything done to gear.
type EquipmentService struct {
	base
	cfg config.ForgeConfig
}

// NewEquipmentService creates a new EquipmentService instance.
func NewEquipmentService(
	stores Stores,
	items *catalog.Catalog,
	cfg config.ForgeConfig,
	locks *lock.KeyLock[int64],
	opts ...Option,
) *EquipmentService {
	return &EquipmentService{base: newBase(stores, items, locks, opts), cfg: cfg}
}

// Bag lists a player's stackable items.
func (s *EquipmentService) Bag(ctx context.Context, ownerID int64) ([]*model.BagItem, error) {
	return s.Stores.Bag.List(ctx, ownerID)
}

// Gear lists every piece a player owns, worn first.
func (s *EquipmentService) Gear(ctx context.Context, ownerID int64) ([]*model.Equipment, error) {
	return s.Equipment.ListByOwner(ctx, ownerID)
}

// Resolve finds one of the owner's pieces by id prefix.
func (s *EquipmentService) Resolve(ctx context.Context, ownerID int64, ref string) (*model.Equipment, *catalog.ItemDef, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if len(ref) < MinRefLen {
		return nil, nil, ErrShortID
	}
	if strings.TrimLeft(ref, "0123456789abcdef-") != "" {
		return nil, nil, ErrBadRef
	}
	found, err := s.Equipment.FindByPrefix(ctx, ownerID, ref)
	if err != nil {
		return nil, nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil, repository.ErrEquipmentNotFound
	case 1:
	default:
		return nil, nil, ErrAmbiguousID
	}
	eq := found[0]
	def, ok := s.items.Item(eq.DefID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownItem, eq.DefID)
	}
	return eq, def, nil
}

// Equip wears a piece, taking off whatever occupied its slot. It returns the
// piece taken off, if any.
func (s *EquipmentService) Equip(ctx context.Context, ownerID int64, ref string) (*model.Equipment, *catalog.ItemDef, *model.Equipment, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, nil, nil, err
	}
	if eq.Equipped() {
		return nil, nil, nil, ErrAlreadyEquipped
	}
	p, err := s.Players.GetByID(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Realm < def.Realm {
		return nil, nil, nil, ErrRealmTooLow
	}

	worn, err := s.Equipment.Equipped(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, err
	}
	var replaced *model.Equipment
	for _, w := range worn {
		if w.EquippedSlot == string(def.Slot) {
			replaced = w
			if err := s.Equipment.SetSlot(ctx, w.ID, ""); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to take off %s: %w", w.ShortID(), err)
			}
			break
		}
	}
	if err := s.Equipment.SetSlot(ctx, eq.ID, string(def.Slot)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to equip: %w", err)
	}
	eq.EquippedSlot = string(def.Slot)
	return eq, def, replaced, nil
}

// Unequip takes off whatever is worn in slot.
func (s *EquipmentService) Unequip(ctx context.Context, ownerID int64, slot catalog.Slot) (*model.Equipment, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	worn, err := s.Equipment.Equipped(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, w := range worn {
		if w.EquippedSlot == string(slot) {
			if err := s.Equipment.SetSlot(ctx, w.ID, ""); err != nil {
				return nil, err
			}
			w.EquippedSlot = ""
			return w, nil
		}
	}
	return nil, ErrSlotEmpty
}

// RefineReport describes a refinement attempt and what it cost.
type RefineReport struct {
	Equipment *model.Equipment
	Def       *catalog.ItemDef
	Result    forge.RefineResult
	Cost      forge.Cost
}

func (s *EquipmentService) maxRefine() int {
	if s.cfg.MaxRefineLevel > 0 {
		return min(s.cfg.MaxRefineLevel, forge.MaxLevel)
	}
	return forge.MaxLevel
}

// Refine pays for and rolls one refinement. With protect set, a protection
// talisman is spent only if it saves the piece from shattering.
func (s *EquipmentService) Refine(ctx context.Context, ownerID int64, ref string, protect bool) (*RefineReport, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	if eq.RefineLevel >= s.maxRefine() {
		return nil, forge.ErrMaxLevel
	}
	if eq.Broken() {
		return nil, forge.ErrBroken
	}

	protected := false
	if protect && forge.FailureOutcome(eq.RefineLevel, false) == forge.OutcomeShatter {
		n, err := s.Stores.Bag.Count(ctx, ownerID, s.cfg.ProtectionItem)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNoProtection
		}
		protected = true
	}

	cost := forge.RefineCost(eq.RefineLevel, def.Realm)
	if err := s.Stores.Bag.Remove(ctx, ownerID, s.cfg.RefineStoneItem, cost.RefineStones); err != nil {
		if errors.Is(err, repository.ErrInsufficientItems) {
			return nil, ErrNoRefineStones
		}
		return nil, err
	}
	desc := fmt.Sprintf("炼器 %s +%d", def.Name, eq.RefineLevel)
	if _, err := s.spend(ctx, ownerID, cost.Stones, model.LedgerRefine, desc); err != nil {
		if refundErr := s.Stores.Bag.Add(ctx, ownerID, s.cfg.RefineStoneItem, cost.RefineStones); refundErr != nil {
			log.Error().Err(refundErr).Int64("player_id", ownerID).Msg("Failed to refund refine stones")
		}
		return nil, err
	}

	bonus := 0
	if p, err := s.Players.GetByID(ctx, ownerID); err == nil {
		if sc, err := s.sectOf(ctx, p); err == nil && sc != nil {
			bonus = sect.RefineBonus(sc)
		}
	}

	res, err := forge.Refine(eq, s.rng, forge.RefineOptions{
		MaxLevel:  s.maxRefine(),
		Bonus:     bonus,
		Protected: protected,
	})
	if err != nil {
		return nil, err
	}

	if res.ProtectionUsed {
		if err := s.Stores.Bag.Remove(ctx, ownerID, s.cfg.ProtectionItem, 1); err != nil {
			s.refundRefine(ctx, ownerID, cost)
			if errors.Is(err, repository.ErrInsufficientItems) {
				return nil, ErrNoProtection
			}
			return nil, err
		}
	}
	if res.Outcome == forge.OutcomeShatter {
		err = s.Equipment.Delete(ctx, eq.ID)
	} else {
		err = s.Equipment.Update(ctx, eq)
	}
	if err != nil {
		if res.ProtectionUsed {
			if refundErr := s.Stores.Bag.Add(ctx, ownerID, s.cfg.ProtectionItem, 1); refundErr != nil {
				log.Error().Err(refundErr).Int64("player_id", ownerID).Msg("Failed to refund protection talisman")
			}
		}
		s.refundRefine(ctx, ownerID, cost)
		return nil, fmt.Errorf("failed to store refine result: %w", err)
	}

	log.Info().
		Int64("player_id", ownerID).
		Str("equipment", eq.ShortID()).
		Str("def", def.ID).
		Int("from", res.From).
		Int("to", res.To).
		Int("rate", res.Rate).
		Str("outcome", res.Outcome.String()).
		Msg("Refine attempted")

	return &RefineReport{Equipment: eq, Def: def, Result: res, Cost: cost}, nil
}

// refundRefine gives back what a refinement charged when its result could
// not be kept.
func (s *EquipmentService) refundRefine(ctx context.Context, ownerID int64, cost forge.Cost) {
	if err := s.Stores.Bag.Add(ctx, ownerID, s.cfg.RefineStoneItem, cost.RefineStones); err != nil {
		log.Error().Err(err).Int64("player_id", ownerID).Msg("Failed to refund refine stones")
	}
	if _, err := s.earn(ctx, ownerID, cost.Stones, model.LedgerRefine, "炼器失败退还"); err != nil {
		log.Error().Err(err).Int64("player_id", ownerID).Msg("Failed to refund refine fee")
	}
}

// SocketReport describes a socketing attempt.
type SocketReport struct {
	Equipment *model.Equipment
	Def       *catalog.ItemDef
	Gem       *catalog.ItemDef
	Result    forge.SocketResult
	Cost      int64
}

// Socket pays for and rolls setting a gem from the bag into a socket. A
// negative index picks the first free socket. The gem is spent either way.
func (s *EquipmentService) Socket(ctx context.Context, ownerID int64, ref, gemRef string, index int) (*SocketReport, error) {
	gem, ok := s.items.FindItem(gemRef)
	if !ok {
		return nil, ErrUnknownItem
	}
	if gem.Gem == nil {
		return nil, forge.ErrNotAGem
	}

	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		if index, err = forge.FreeSocket(eq, def); err != nil {
			return nil, err
		}
	}
	forge.NormalizeSockets(eq, def)
	if index >= len(eq.Sockets) {
		return nil, forge.ErrNoSuchSocket
	}
	if eq.Sockets[index] != "" {
		return nil, forge.ErrSocketOccupied
	}

	if err := s.Stores.Bag.Remove(ctx, ownerID, gem.ID, 1); err != nil {
		if errors.Is(err, repository.ErrInsufficientItems) {
			return nil, ErrItemNotInBag
		}
		return nil, err
	}
	cost := forge.SocketCost(gem.Gem.Tier, def.Realm)
	if _, err := s.spend(ctx, ownerID, cost, model.LedgerSocket, "镶嵌 "+gem.Name); err != nil {
		if refundErr := s.Stores.Bag.Add(ctx, ownerID, gem.ID, 1); refundErr != nil {
			log.Error().Err(refundErr).Int64("player_id", ownerID).Msg("Failed to refund gem")
		}
		return nil, err
	}

	res, err := forge.Socket(eq, def, gem, index, s.rng)
	if err != nil {
		return nil, err
	}
	if res.Success {
		if err := s.Equipment.Update(ctx, eq); err != nil {
			return nil, fmt.Errorf("failed to store socket: %w", err)
		}
	}

	log.Info().
		Int64("player_id", ownerID).
		Str("equipment", eq.ShortID()).
		Str("gem", gem.ID).
		Bool("success", res.Success).
		Msg("Socket attempted")

	return &SocketReport{Equipment: eq, Def: def, Gem: gem, Result: res, Cost: cost}, nil
}

// Unsocket pays to take a gem out of a socket and returns it to the bag.
func (s *EquipmentService) Unsocket(ctx context.Context, ownerID int64, ref string, index int) (*catalog.ItemDef, int64, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, 0, err
	}
	forge.NormalizeSockets(eq, def)
	if index < 0 || index >= len(eq.Sockets) {
		return nil, 0, forge.ErrNoSuchSocket
	}
	gemID := eq.Sockets[index]
	if gemID == "" {
		return nil, 0, forge.ErrSocketEmpty
	}
	gem, ok := s.items.Item(gemID)
	if !ok || gem.Gem == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownItem, gemID)
	}

	if _, err := forge.Unsocket(eq, def, index); err != nil {
		return nil, 0, err
	}
	cost := forge.UnsocketCost(gem.Gem.Tier)
	if _, err := s.spend(ctx, ownerID, cost, model.LedgerSocket, "拆除 "+gem.Name); err != nil {
		return nil, 0, err
	}
	refund := func() {
		if _, err := s.earn(ctx, ownerID, cost, model.LedgerSocket, "拆除失败退还"); err != nil {
			log.Error().Err(err).Int64("player_id", ownerID).Msg("Failed to refund unsocket fee")
		}
	}
	if err := s.Equipment.Update(ctx, eq); err != nil {
		refund()
		return nil, 0, fmt.Errorf("failed to store unsocket: %w", err)
	}
	if err := s.Stores.Bag.Add(ctx, ownerID, gem.ID, 1); err != nil {
		// Put the gem back in its socket so it is not lost.
		eq.Sockets[index] = gem.ID
		if restoreErr := s.Equipment.Update(ctx, eq); restoreErr != nil {
			log.Error().Err(restoreErr).Int64("player_id", ownerID).Str("gem", gem.ID).Msg("Failed to restore socketed gem")
		}
		refund()
		return nil, 0, fmt.Errorf("failed to return gem: %w", err)
	}
	return gem, cost, nil
}

func (s *EquipmentService) repairOne(ctx context.Context, ownerID int64, eq *model.Equipment, def *catalog.ItemDef) (int64, error) {
	missing := forge.Missing(eq)
	if missing == 0 {
		return 0, forge.ErrNothingToRepair
	}
	cost := forge.RepairCost(missing, eq.RefineLevel, def.Realm, s.cfg.RepairPricePoint)
	if _, err := s.spend(ctx, ownerID, cost, model.LedgerRepair, "修理 "+def.Name); err != nil {
		return 0, err
	}
	if _, err := forge.Repair(eq); err != nil {
		return 0, err
	}
	if err := s.Equipment.Update(ctx, eq); err != nil {
		return 0, fmt.Errorf("failed to store repair: %w", err)
	}
	return cost, nil
}

// Repair restores one piece to full durability and returns the fee.
func (s *EquipmentService) Repair(ctx context.Context, ownerID int64, ref string) (*model.Equipment, *catalog.ItemDef, int64, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, nil, 0, err
	}
	cost, err := s.repairOne(ctx, ownerID, eq, def)
	if err != nil {
		return nil, nil, 0, err
	}
	return eq, def, cost, nil
}

// RepairAll repairs every worn piece the player can afford, in slot order,
// and returns how many were repaired and the total fee.
func (s *EquipmentService) RepairAll(ctx context.Context, ownerID int64) (int, int64, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	worn, err := s.Equipment.Equipped(ctx, ownerID)
	if err != nil {
		return 0, 0, err
	}
	var (
		count int
		total int64
	)
	for _, eq := range worn {
		def, ok := s.items.Item(eq.DefID)
		if !ok || forge.Missing(eq) == 0 {
			continue
		}
		cost, err := s.repairOne(ctx, ownerID, eq, def)
		if err != nil {
			if count == 0 {
				return 0, 0, err
			}
			break
		}
		count++
		total += cost
	}
	if count == 0 {
		return 0, 0, forge.ErrNothingToRepair
	}
	return count, total, nil
}

// Discard destroys an unworn piece.
func (s *EquipmentService) Discard(ctx context.Context, ownerID int64, ref string) (*catalog.ItemDef, error) {
	s.locks.Lock(ownerID)
	defer s.locks.Unlock(ownerID)

	eq, def, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	if eq.Equipped() {
		return nil, ErrEquipped
	}
	if err := s.Equipment.Delete(ctx, eq.ID); err != nil {
		return nil, err
	}
	return def, nil
}
