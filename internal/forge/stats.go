package forge

import (
	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

// ItemLookup resolves item definitions; *catalog.Catalog satisfies it.
type ItemLookup interface {
	Item(id string) (*catalog.ItemDef, bool)
}

// RefineBonusPercent is the stat gain per refine level.
const RefineBonusPercent = 8

// Scale applies the refine multiplier to base.
func Scale(base int64, refineLevel int) int64 {
	return base * int64(100+RefineBonusPercent*refineLevel) / 100
}

// PieceStats returns what one piece contributes. Broken pieces give nothing.
func PieceStats(eq *model.Equipment, items ItemLookup) realm.Stats {
	if eq.Broken() {
		return realm.Stats{}
	}
	def, ok := items.Item(eq.DefID)
	if !ok {
		return realm.Stats{}
	}
	base := def.BaseStats()
	s := realm.Stats{
		Attack:  Scale(base.Attack, eq.RefineLevel),
		Defense: Scale(base.Defense, eq.RefineLevel),
		HP:      Scale(base.HP, eq.RefineLevel),
	}
	for _, gemID := range eq.Sockets {
		if gemID == "" {
			continue
		}
		if g, ok := items.Item(gemID); ok && g.Gem != nil {
			s = s.Add(g.Gem.Bonus())
		}
	}
	return s
}

// GearStats sums the stats of every equipped piece in gear.
func GearStats(gear []*model.Equipment, items ItemLookup) realm.Stats {
	var total realm.Stats
	for _, eq := range gear {
		if eq.Equipped() {
			total = total.Add(PieceStats(eq, items))
		}
	}
	return total
}

// CharacterStats returns realm base stats plus worn gear.
func CharacterStats(r realm.Realm, gear []*model.Equipment, items ItemLookup) realm.Stats {
	return realm.BaseStats(r).Add(GearStats(gear, items))
}
