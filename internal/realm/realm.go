// Package realm defines cultivation realms, the power tiers that key every
// scaling formula in the game.
package realm

// Realm is a cultivation tier, 0 (练气) through 8 (渡劫).
type Realm int

const (
	QiRefining Realm = iota
	Foundation
	GoldenCore
	NascentSoul
	SpiritSevering
	VoidRefining
	Integration
	Mahayana
	Tribulation
)

// Max is the highest realm.
const Max = Tribulation

var names = [...]string{"练气", "筑基", "金丹", "元婴", "化神", "炼虚", "合体", "大乘", "渡劫"}

var multipliers = [...]int64{1, 2, 4, 8, 15, 25, 40, 60, 100}

// expToNext[r] is the cultivation needed to break through from r to r+1.
var expToNext = [...]int64{1000, 5000, 20000, 80000, 250000, 700000, 2000000, 5000000}

// breakthroughRates[r] is the percent chance of breaking through from r.
var breakthroughRates = [...]int{90, 80, 70, 60, 50, 40, 30, 20}

// Clamp forces r into the valid range.
func Clamp(r Realm) Realm {
	switch {
	case r < QiRefining:
		return QiRefining
	case r > Max:
		return Max
	}
	return r
}

// Name returns the display name of r.
func Name(r Realm) string {
	return names[Clamp(r)]
}

// String implements fmt.Stringer.
func (r Realm) String() string {
	return Name(r)
}

// Multiplier returns the scaling factor for r.
func Multiplier(r Realm) int64 {
	return multipliers[Clamp(r)]
}

// ExpToNext returns the cultivation required to leave r, and false at the
// top realm.
func ExpToNext(r Realm) (int64, bool) {
	r = Clamp(r)
	if r == Max {
		return 0, false
	}
	return expToNext[r], true
}

// BreakthroughRate returns the percent success chance of leaving r.
func BreakthroughRate(r Realm) int {
	r = Clamp(r)
	if r == Max {
		return 0
	}
	return breakthroughRates[r]
}

// Stats are the flat combat numbers of a character or monster.
type Stats struct {
	Attack  int64
	Defense int64
	HP      int64
}

// Add returns the component-wise sum.
func (s Stats) Add(o Stats) Stats {
	return Stats{Attack: s.Attack + o.Attack, Defense: s.Defense + o.Defense, HP: s.HP + o.HP}
}

// Power is the single number shown on leaderboards and profiles.
func (s Stats) Power() int64 {
	return s.Attack*2 + s.Defense*3 + s.HP/10
}

// BaseStats returns the unequipped stats of a cultivator at r.
func BaseStats(r Realm) Stats {
	m := Multiplier(r)
	return Stats{Attack: 10 * m, Defense: 5 * m, HP: 100 * m}
}
