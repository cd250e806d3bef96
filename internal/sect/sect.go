// Package sect holds the rules of player sects: level thresholds, member
// caps, facilities and role permissions.
package sect

import (
	"errors"
	"unicode/utf8"

	"cultivation-bot/internal/model"
)

var (
	ErrFacilityUnknown = errors.New("unknown facility")
	ErrFacilityCapped  = errors.New("facility level cannot exceed sect level")
	ErrNameLength      = errors.New("sect name must be 2 to 12 characters")
	ErrPermission      = errors.New("insufficient sect rank")
)

// MaxLevel is the highest sect level.
const MaxLevel = 10

// thresholds[n-1] is the total exp needed to reach level n.
var thresholds = [MaxLevel]int64{0, 1000, 3000, 8000, 20000, 50000, 120000, 300000, 700000, 1500000}

// Threshold returns the total exp required for level, clamped to 1..MaxLevel.
func Threshold(level int) int64 {
	level = min(max(level, 1), MaxLevel)
	return thresholds[level-1]
}

// LevelFor returns the level reached with total exp.
func LevelFor(exp int64) int {
	level := 1
	for level < MaxLevel && exp >= thresholds[level] {
		level++
	}
	return level
}

// AddExp adds gained exp to s and raises its level across as many
// thresholds as the new total passes. It returns the levels gained.
func AddExp(s *model.Sect, gained int64) int {
	if gained <= 0 {
		return 0
	}
	s.Exp += gained
	before := max(s.Level, 1)
	s.Level = max(LevelFor(s.Exp), before)
	return s.Level - before
}

// MemberCap returns how many members a sect of level may hold.
func MemberCap(level int) int {
	return 10 + 5*(max(level, 1)-1)
}

// ElderCap returns how many elders a sect of level may appoint.
func ElderCap(level int) int {
	return 2 + max(level, 1)/2
}

const (
	NameMinRunes = 2
	NameMaxRunes = 12
)

// ValidateName checks the rune length of a sect name.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < NameMinRunes || n > NameMaxRunes {
		return ErrNameLength
	}
	return nil
}
