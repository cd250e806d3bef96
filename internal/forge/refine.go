package forge

import (
	"errors"

	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

var (
	ErrMaxLevel = errors.New("equipment already at max refine level")
	ErrBroken   = errors.New("equipment is broken")
)

// successRates[l] is the percent chance of refining from +l to +l+1.
var successRates = [...]int{100, 100, 95, 90, 80, 70, 60, 50, 40, 30, 25, 20, 15, 10, 5}

// MaxLevel is the highest refine level the table supports.
const MaxLevel = len(successRates)

// Failure tiers by current level.
const (
	downgradeFrom = 5
	shatterFrom   = 10
)

// Outcome is the result of one refinement attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFail
	OutcomeDowngrade
	OutcomeShatter
)

var outcomeNames = [...]string{"成功", "失败", "降级", "碎裂"}

// String returns the display name of the outcome.
func (o Outcome) String() string {
	if o < OutcomeSuccess || int(o) >= len(outcomeNames) {
		return "未知"
	}
	return outcomeNames[o]
}

// SuccessRate returns the percent chance of refining from level, raised by
// bonus and clamped to [0, 100].
func SuccessRate(level, bonus int) int {
	if level < 0 {
		level = 0
	}
	if level >= len(successRates) {
		return 0
	}
	return min(max(successRates[level]+bonus, 0), 100)
}

// Cost is the material price of one refinement attempt.
type Cost struct {
	RefineStones int
	Stones       int64
}

// RefineCost returns the price of refining from level on an item of
// realm requirement r.
func RefineCost(level int, r realm.Realm) Cost {
	if level < 0 {
		level = 0
	}
	return Cost{
		RefineStones: 1 + level/3,
		Stones:       100 * int64(level+1) * realm.Multiplier(r),
	}
}

// FailureOutcome returns what a failed attempt from level does, with or
// without a protection talisman.
func FailureOutcome(level int, protected bool) Outcome {
	switch {
	case level >= shatterFrom:
		if protected {
			return OutcomeDowngrade
		}
		return OutcomeShatter
	case level >= downgradeFrom:
		return OutcomeDowngrade
	}
	return OutcomeFail
}

// RefineOptions tunes one attempt.
type RefineOptions struct {
	// MaxLevel caps refinement below the table length when positive.
	MaxLevel int
	// Bonus is added to the success rate, usually the sect forge level.
	Bonus int
	// Protected means a protection talisman is available to stop a shatter.
	Protected bool
}

// RefineResult describes an attempt.
type RefineResult struct {
	Outcome        Outcome
	From           int
	To             int
	Rate           int
	DurabilityLost int
	// ProtectionUsed is set when the talisman turned a shatter into a downgrade.
	ProtectionUsed bool
}

// FailureWear returns the durability a failed attempt costs.
func FailureWear(maxDurability int) int {
	return max(1, maxDurability/10)
}

// Refine rolls one attempt and applies it to eq. On OutcomeShatter the caller
// destroys the piece; eq is left as it was before the attempt.
func Refine(eq *model.Equipment, r Roller, opts RefineOptions) (RefineResult, error) {
	limit := MaxLevel
	if opts.MaxLevel > 0 && opts.MaxLevel < limit {
		limit = opts.MaxLevel
	}
	if eq.RefineLevel >= limit {
		return RefineResult{}, ErrMaxLevel
	}
	if eq.Broken() {
		return RefineResult{}, ErrBroken
	}

	res := RefineResult{
		From: eq.RefineLevel,
		To:   eq.RefineLevel,
		Rate: SuccessRate(eq.RefineLevel, opts.Bonus),
	}
	if Chance(r, res.Rate) {
		eq.RefineLevel++
		res.Outcome = OutcomeSuccess
		res.To = eq.RefineLevel
		return res, nil
	}

	res.Outcome = FailureOutcome(eq.RefineLevel, opts.Protected)
	res.ProtectionUsed = opts.Protected && eq.RefineLevel >= shatterFrom
	if res.Outcome == OutcomeShatter {
		res.To = 0
		return res, nil
	}
	if res.Outcome == OutcomeDowngrade {
		eq.RefineLevel--
		res.To = eq.RefineLevel
	}
	res.DurabilityLost = Wear(eq, FailureWear(eq.MaxDurability))
	return res, nil
}
