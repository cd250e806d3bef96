package sect

import "cultivation-bot/internal/model"

// Facility is a sect building.
type Facility string

const (
	// Library raises member cultivation gains by 5% per level.
	Library Facility = "library"
	// Forge adds one percent of refine success per level.
	Forge Facility = "forge"
	// SpiritField pays stones on sect sign-in.
	SpiritField Facility = "spirit_field"
)

// Facilities lists every facility in display order.
var Facilities = []Facility{Library, Forge, SpiritField}

var facilityNames = map[Facility]string{
	Library:     "藏经阁",
	Forge:       "炼器房",
	SpiritField: "灵田",
}

// ParseFacility accepts the key or the display name.
func ParseFacility(s string) (Facility, bool) {
	for _, f := range Facilities {
		if string(f) == s || facilityNames[f] == s {
			return f, true
		}
	}
	return "", false
}

// Name returns the display name of f.
func (f Facility) Name() string {
	if n, ok := facilityNames[f]; ok {
		return n
	}
	return string(f)
}

// UpgradeCost returns the funds needed to raise a facility from current.
func UpgradeCost(current int) int64 {
	next := int64(current + 1)
	return 5000 * next * next
}

// CheckUpgrade validates raising f on s and returns the cost.
func CheckUpgrade(s *model.Sect, f Facility) (int64, error) {
	if _, ok := facilityNames[f]; !ok {
		return 0, ErrFacilityUnknown
	}
	cur := s.Facility(string(f))
	if cur+1 > s.Level {
		return 0, ErrFacilityCapped
	}
	return UpgradeCost(cur), nil
}

// ApplyUpgrade raises f on s by one level.
func ApplyUpgrade(s *model.Sect, f Facility) {
	if s.Facilities == nil {
		s.Facilities = make(map[string]int)
	}
	s.Facilities[string(f)]++
}

// CultivateBonusPercent is the library bonus for cultivation.
func CultivateBonusPercent(s *model.Sect) int {
	return 5 * s.Facility(string(Library))
}

// RefineBonus is the forge bonus added to refine success rates.
func RefineBonus(s *model.Sect) int {
	return s.Facility(string(Forge))
}

// SignInStones is the stone reward of a sect sign-in.
func SignInStones(s *model.Sect) int64 {
	return 50 * int64(s.Facility(string(SpiritField)))
}
