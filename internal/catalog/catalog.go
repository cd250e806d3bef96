package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"cultivation-bot/internal/realm"
)

// Catalog is the read-only set of content definitions.
type Catalog struct {
	items    map[string]*ItemDef
	monsters map[string]*MonsterDef
	bosses   map[string]*BossDef
}

// New builds a catalog from definition maps keyed by id. The id of every
// definition is set from its key.
func New(items map[string]*ItemDef, monsters map[string]*MonsterDef, bosses map[string]*BossDef) *Catalog {
	c := &Catalog{
		items:    make(map[string]*ItemDef, len(items)),
		monsters: make(map[string]*MonsterDef, len(monsters)),
		bosses:   make(map[string]*BossDef, len(bosses)),
	}
	for id, d := range items {
		d.ID = id
		c.items[id] = d
	}
	for id, d := range monsters {
		d.ID = id
		c.monsters[id] = d
	}
	for id, d := range bosses {
		d.ID = id
		c.bosses[id] = d
	}
	return c
}

// Item returns the item definition with the given id.
func (c *Catalog) Item(id string) (*ItemDef, bool) {
	d, ok := c.items[id]
	return d, ok
}

// Monster returns the monster definition with the given id.
func (c *Catalog) Monster(id string) (*MonsterDef, bool) {
	d, ok := c.monsters[id]
	return d, ok
}

// Boss returns the boss definition with the given id.
func (c *Catalog) Boss(id string) (*BossDef, bool) {
	d, ok := c.bosses[id]
	return d, ok
}

// FindItem resolves an id or display name.
func (c *Catalog) FindItem(idOrName string) (*ItemDef, bool) {
	if d, ok := c.items[idOrName]; ok {
		return d, true
	}
	for _, d := range c.items {
		if d.Name == idOrName {
			return d, true
		}
	}
	return nil, false
}

var kindOrder = map[Kind]int{
	KindWeapon: 0, KindArmor: 1, KindAccessory: 2, KindMaterial: 3, KindGem: 4, KindConsumable: 5,
}

// ShopItems returns items with a price, grouped by kind then cheapest first.
func (c *Catalog) ShopItems() []*ItemDef {
	var out []*ItemDef
	for _, d := range c.items {
		if d.Price > 0 {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b *ItemDef) int {
		return cmp.Or(
			cmp.Compare(kindOrder[a.Kind], kindOrder[b.Kind]),
			cmp.Compare(a.Price, b.Price),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

// Bosses returns every boss sorted by realm then id.
func (c *Catalog) Bosses() []*BossDef {
	out := make([]*BossDef, 0, len(c.bosses))
	for _, d := range c.bosses {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *BossDef) int {
		return cmp.Or(cmp.Compare(a.Realm, b.Realm), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// MonstersForRealm returns the monsters a cultivator of r may hunt: those
// of r itself, or the highest lower realm that has any.
func (c *Catalog) MonstersForRealm(r realm.Realm) []*MonsterDef {
	for cur := realm.Clamp(r); cur >= realm.QiRefining; cur-- {
		var out []*MonsterDef
		for _, m := range c.monsters {
			if m.Realm == cur {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			slices.SortFunc(out, func(a, b *MonsterDef) int { return cmp.Compare(a.ID, b.ID) })
			return out
		}
	}
	return nil
}

// RandomMonster picks one monster for r using intn, or nil when none exist.
func (c *Catalog) RandomMonster(r realm.Realm, intn func(int) int) *MonsterDef {
	if intn == nil {
		intn = rand.Intn
	}
	pool := c.MonstersForRealm(r)
	if len(pool) == 0 {
		return nil
	}
	return pool[intn(len(pool))]
}

// Validate checks cross references and value ranges.
func (c *Catalog) Validate() error {
	var errs []error
	for id, d := range c.items {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("item %s: missing name", id))
		}
		if d.Kind.IsEquipment() {
			if _, ok := ParseSlot(string(d.Slot)); !ok {
				errs = append(errs, fmt.Errorf("item %s: equipment needs a valid slot, got %q", id, d.Slot))
			}
			if d.Durability <= 0 {
				errs = append(errs, fmt.Errorf("item %s: equipment needs positive durability", id))
			}
		}
		if d.Kind == KindGem {
			if d.Gem == nil {
				errs = append(errs, fmt.Errorf("item %s: gem without gem block", id))
			} else if d.Gem.Tier < 1 || d.Gem.Tier > 5 {
				errs = append(errs, fmt.Errorf("item %s: gem tier %d out of range 1..5", id, d.Gem.Tier))
			}
		}
	}
	checkDrops := func(owner string, drops []Drop) {
		for _, dr := range drops {
			if _, ok := c.items[dr.Item]; !ok {
				errs = append(errs, fmt.Errorf("%s: unknown drop item %q", owner, dr.Item))
			}
			if dr.Chance < 0 || dr.Chance > 1000 {
				errs = append(errs, fmt.Errorf("%s: drop chance %d out of range 0..1000", owner, dr.Chance))
			}
		}
	}
	for id, m := range c.monsters {
		if m.HP <= 0 {
			errs = append(errs, fmt.Errorf("monster %s: hp must be positive", id))
		}
		checkDrops("monster "+id, m.Drops)
	}
	for id, b := range c.bosses {
		if b.HP <= 0 {
			errs = append(errs, fmt.Errorf("boss %s: hp must be positive", id))
		}
		if b.Respawn <= 0 {
			errs = append(errs, fmt.Errorf("boss %s: respawn must be positive", id))
		}
		if b.TopDrop != "" {
			if _, ok := c.items[b.TopDrop]; !ok {
				errs = append(errs, fmt.Errorf("boss %s: unknown top drop %q", id, b.TopDrop))
			}
		}
		checkDrops("boss "+id, b.Drops)
	}
	for id := range c.bosses {
		if _, dup := c.monsters[id]; dup {
			errs = append(errs, fmt.Errorf("id %s is both a monster and a boss", id))
		}
	}
	return errors.Join(errs...)
}

// Counts returns the number of items, monsters and bosses.
func (c *Catalog) Counts() (items, monsters, bosses int) {
	return len(c.items), len(c.monsters), len(c.bosses)
}
