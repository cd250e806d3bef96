package forge

import (
	"errors"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/realm"
)

var (
	ErrNoSuchSocket   = errors.New("no such socket")
	ErrSocketOccupied = errors.New("socket already holds a gem")
	ErrSocketEmpty    = errors.New("socket is empty")
	ErrNoFreeSocket   = errors.New("no free socket")
	ErrNotAGem        = errors.New("item is not a gem")
)

// gemRates[t-1] is the percent chance of setting a tier t gem.
var gemRates = [...]int{100, 90, 75, 60, 45}

// GemRate returns the success chance for a gem tier, 0 for unknown tiers.
func GemRate(tier int) int {
	if tier < 1 || tier > len(gemRates) {
		return 0
	}
	return gemRates[tier-1]
}

// SocketCost returns the stone fee to set a gem of tier into an item of
// realm requirement r.
func SocketCost(tier int, r realm.Realm) int64 {
	return 50 * int64(tier) * realm.Multiplier(r)
}

// UnsocketCost returns the stone fee to remove a gem of tier.
func UnsocketCost(tier int) int64 {
	return 200 * int64(tier)
}

// NormalizeSockets sizes eq.Sockets to the socket count of def, dropping
// gems beyond it and padding with empty sockets.
func NormalizeSockets(eq *model.Equipment, def *catalog.ItemDef) {
	n := def.Quality.Sockets()
	switch {
	case len(eq.Sockets) > n:
		eq.Sockets = eq.Sockets[:n]
	case len(eq.Sockets) < n:
		eq.Sockets = append(eq.Sockets, make([]string, n-len(eq.Sockets))...)
	}
}

// FreeSocket returns the first empty socket index.
func FreeSocket(eq *model.Equipment, def *catalog.ItemDef) (int, error) {
	NormalizeSockets(eq, def)
	for i, g := range eq.Sockets {
		if g == "" {
			return i, nil
		}
	}
	if len(eq.Sockets) == 0 {
		return 0, ErrNoSuchSocket
	}
	return 0, ErrNoFreeSocket
}

// SocketResult describes a socketing attempt. The gem is spent either way.
type SocketResult struct {
	Success bool
	Index   int
	Rate    int
}

// Socket rolls to set gem into socket index of eq.
func Socket(eq *model.Equipment, def, gem *catalog.ItemDef, index int, r Roller) (SocketResult, error) {
	if gem == nil || gem.Gem == nil {
		return SocketResult{}, ErrNotAGem
	}
	NormalizeSockets(eq, def)
	if index < 0 || index >= len(eq.Sockets) {
		return SocketResult{}, ErrNoSuchSocket
	}
	if eq.Sockets[index] != "" {
		return SocketResult{}, ErrSocketOccupied
	}

	res := SocketResult{Index: index, Rate: GemRate(gem.Gem.Tier)}
	if Chance(r, res.Rate) {
		eq.Sockets[index] = gem.ID
		res.Success = true
	}
	return res, nil
}

// Unsocket empties socket index and returns the gem item id it held.
func Unsocket(eq *model.Equipment, def *catalog.ItemDef, index int) (string, error) {
	NormalizeSockets(eq, def)
	if index < 0 || index >= len(eq.Sockets) {
		return "", ErrNoSuchSocket
	}
	gem := eq.Sockets[index]
	if gem == "" {
		return "", ErrSocketEmpty
	}
	eq.Sockets[index] = ""
	return gem, nil
}
