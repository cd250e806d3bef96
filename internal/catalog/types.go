// Package catalog holds the static game content: item, monster and boss
// definitions loaded from YAML, plus the display tables for them.
package catalog

import (
	"time"

	"cultivation-bot/internal/realm"
)

// Kind is the broad category of an item.
type Kind string

const (
	KindWeapon     Kind = "weapon"
	KindArmor      Kind = "armor"
	KindAccessory  Kind = "accessory"
	KindMaterial   Kind = "material"
	KindGem        Kind = "gem"
	KindConsumable Kind = "consumable"
)

// IsEquipment reports whether items of this kind are worn.
func (k Kind) IsEquipment() bool {
	return k == KindWeapon || k == KindArmor || k == KindAccessory
}

// Slot is an equipment position on a cultivator.
type Slot string

const (
	SlotWeapon Slot = "weapon"
	SlotHead   Slot = "head"
	SlotBody   Slot = "body"
	SlotLegs   Slot = "legs"
	SlotFeet   Slot = "feet"
	SlotRing   Slot = "ring"
	SlotAmulet Slot = "amulet"
)

// Slots lists every slot in display order.
var Slots = []Slot{SlotWeapon, SlotHead, SlotBody, SlotLegs, SlotFeet, SlotRing, SlotAmulet}

// ParseSlot accepts either the slot key or its display name.
func ParseSlot(s string) (Slot, bool) {
	for _, slot := range Slots {
		if string(slot) == s || slotNames[slot] == s {
			return slot, true
		}
	}
	return "", false
}

// Quality is the grade of a piece of equipment; it decides socket count.
type Quality int

const (
	QualityCommon    Quality = iota // 凡品
	QualitySpirit                   // 灵品
	QualityTreasure                 // 宝品
	QualityImmortal                 // 仙品
	QualityDivine                   // 神品
)

// Sockets returns how many gem sockets equipment of quality q carries.
func (q Quality) Sockets() int {
	switch {
	case q < QualityCommon:
		return 0
	case q > QualityDivine:
		return int(QualityDivine)
	}
	return int(q)
}

// Stat is the attribute a gem raises.
type Stat string

const (
	StatAttack  Stat = "attack"
	StatDefense Stat = "defense"
	StatHP      Stat = "hp"
)

// GemDef describes the socketable part of a gem item.
type GemDef struct {
	Tier  int   `yaml:"tier"`
	Stat  Stat  `yaml:"stat"`
	Value int64 `yaml:"value"`
}

// Bonus converts the gem into flat stats.
func (g GemDef) Bonus() realm.Stats {
	switch g.Stat {
	case StatAttack:
		return realm.Stats{Attack: g.Value}
	case StatDefense:
		return realm.Stats{Defense: g.Value}
	case StatHP:
		return realm.Stats{HP: g.Value}
	}
	return realm.Stats{}
}

// ItemDef is one entry of items.yaml.
type ItemDef struct {
	ID          string      `yaml:"-"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Kind        Kind        `yaml:"kind"`
	Slot        Slot        `yaml:"slot,omitempty"`
	Quality     Quality     `yaml:"quality,omitempty"`
	Realm       realm.Realm `yaml:"realm,omitempty"`
	Attack      int64       `yaml:"attack,omitempty"`
	Defense     int64       `yaml:"defense,omitempty"`
	HP          int64       `yaml:"hp,omitempty"`
	Durability  int         `yaml:"durability,omitempty"`
	Price       int64       `yaml:"price,omitempty"`
	Exp         int64       `yaml:"exp,omitempty"` // consumables
	Gem         *GemDef     `yaml:"gem,omitempty"`
}

// BaseStats returns the unrefined stats of an equipment definition.
func (d *ItemDef) BaseStats() realm.Stats {
	return realm.Stats{Attack: d.Attack, Defense: d.Defense, HP: d.HP}
}

// Drop is a chance, in per mille, to receive Qty of Item.
type Drop struct {
	Item   string `yaml:"item"`
	Chance int    `yaml:"chance"`
	Qty    int    `yaml:"qty"`
}

// MonsterDef is one entry of monsters.yaml.
type MonsterDef struct {
	ID      string      `yaml:"-"`
	Name    string      `yaml:"name"`
	Realm   realm.Realm `yaml:"realm"`
	HP      int64       `yaml:"hp"`
	Attack  int64       `yaml:"attack"`
	Defense int64       `yaml:"defense"`
	Exp     int64       `yaml:"exp"`
	Stones  int64       `yaml:"stones"`
	Drops   []Drop      `yaml:"drops,omitempty"`
}

// Stats returns the monster's combat numbers.
func (m *MonsterDef) Stats() realm.Stats {
	return realm.Stats{Attack: m.Attack, Defense: m.Defense, HP: m.HP}
}

// BossDef is one entry of bosses.yaml.
type BossDef struct {
	MonsterDef  `yaml:",inline"`
	Respawn     time.Duration `yaml:"respawn"`
	StonePool   int64         `yaml:"stone_pool"`
	KillerBonus int64         `yaml:"killer_bonus"`
	TopDrop     string        `yaml:"top_drop,omitempty"`
}
