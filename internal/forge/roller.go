// Package forge implements equipment refinement, gem socketing, repair and
// the stat formulas for worn gear.
package forge

import "math/rand"

// Roller draws uniform integers in [0, n).
type Roller interface {
	Intn(n int) int
}

// RollerFunc adapts a function to Roller.
type RollerFunc func(n int) int

// Intn implements Roller.
func (f RollerFunc) Intn(n int) int { return f(n) }

// DefaultRoller uses the process-wide math/rand source.
var DefaultRoller Roller = RollerFunc(rand.Intn)

// Chance reports whether a roll against percent succeeds.
func Chance(r Roller, percent int) bool {
	switch {
	case percent <= 0:
		return false
	case percent >= 100:
		return true
	}
	return r.Intn(100) < percent
}
