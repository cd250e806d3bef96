package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/forge"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/repository"
)

// fakeDB is an in-memory stand-in for every store. It returns the same
// sentinel errors as the PostgreSQL repositories.
type fakeDB struct {
	mu        sync.Mutex
	players   map[int64]*model.Player
	ledger    []*model.LedgerEntry
	bag       map[int64]map[string]int
	equipment map[uuid.UUID]*model.Equipment
	sects     map[int64]*model.Sect
	apps      map[[2]int64]time.Time
	bosses    map[string]*model.BossState
	kills     []*model.BossKill
	nextID    int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		players:   make(map[int64]*model.Player),
		bag:       make(map[int64]map[string]int),
		equipment: make(map[uuid.UUID]*model.Equipment),
		sects:     make(map[int64]*model.Sect),
		apps:      make(map[[2]int64]time.Time),
		bosses:    make(map[string]*model.BossState),
	}
}

func (db *fakeDB) stores() Stores {
	return Stores{
		Players:   fakePlayers{db},
		Ledger:    fakeLedger{db},
		Bag:       fakeBag{db},
		Equipment: fakeEquipment{db},
		Sects:     fakeSects{db},
		Bosses:    fakeBosses{db},
	}
}

func (db *fakeDB) id() int64 {
	db.nextID++
	return db.nextID
}

func clonePlayer(p *model.Player) *model.Player {
	c := *p
	if p.SectID != nil {
		id := *p.SectID
		c.SectID = &id
	}
	return &c
}

func cloneEquipment(e *model.Equipment) *model.Equipment {
	c := *e
	c.Sockets = slices.Clone(e.Sockets)
	return &c
}

func cloneSect(s *model.Sect) *model.Sect {
	c := *s
	c.Facilities = make(map[string]int, len(s.Facilities))
	for k, v := range s.Facilities {
		c.Facilities[k] = v
	}
	return &c
}

func cloneBoss(b *model.BossState) *model.BossState {
	c := *b
	if b.KilledAt != nil {
		t := *b.KilledAt
		c.KilledAt = &t
	}
	c.Damage = make(map[int64]int64, len(b.Damage))
	for k, v := range b.Damage {
		c.Damage[k] = v
	}
	return &c
}

// player is a test helper that reads a player without locking errors.
func (db *fakeDB) player(id int64) *model.Player {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.players[id]; ok {
		return clonePlayer(p)
	}
	return nil
}

func (db *fakeDB) addPlayer(id int64, name string, r realm.Realm, stones int64) *model.Player {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := &model.Player{TelegramID: id, Name: name, Realm: r, Stones: stones}
	db.players[id] = p
	return clonePlayer(p)
}

func (db *fakeDB) bagCount(playerID int64, itemID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bag[playerID][itemID]
}

func (db *fakeDB) ledgerTypes(playerID int64) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []string
	for _, e := range db.ledger {
		if e.PlayerID == playerID {
			out = append(out, e.Type)
		}
	}
	return out
}

func (db *fakeDB) gear(ownerID int64) []*model.Equipment {
	list, _ := fakeEquipment{db}.ListByOwner(context.Background(), ownerID)
	return list
}

// ---- players ----

type fakePlayers struct{ db *fakeDB }

func (f fakePlayers) GetOrCreate(_ context.Context, id int64, name string, stones int64) (*model.Player, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if p, ok := f.db.players[id]; ok {
		return clonePlayer(p), false, nil
	}
	p := &model.Player{TelegramID: id, Name: name, Stones: stones}
	f.db.players[id] = p
	return clonePlayer(p), true, nil
}

func (f fakePlayers) GetByID(_ context.Context, id int64) (*model.Player, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	return clonePlayer(p), nil
}

func (f fakePlayers) update(id int64, fn func(p *model.Player) error) (*model.Player, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return clonePlayer(p), nil
}

func (f fakePlayers) UpdateName(_ context.Context, id int64, name string) error {
	_, err := f.update(id, func(p *model.Player) error { p.Name = name; return nil })
	return err
}

func (f fakePlayers) AddStones(_ context.Context, id, amount int64) (*model.Player, error) {
	return f.update(id, func(p *model.Player) error {
		if p.Stones+amount < 0 {
			return repository.ErrInsufficientStones
		}
		p.Stones += amount
		return nil
	})
}

func (f fakePlayers) AddExp(_ context.Context, id, amount int64) (*model.Player, error) {
	return f.update(id, func(p *model.Player) error { p.Exp = max(p.Exp+amount, 0); return nil })
}

func (f fakePlayers) SetRealm(_ context.Context, id int64, r realm.Realm, exp int64) (*model.Player, error) {
	return f.update(id, func(p *model.Player) error { p.Realm, p.Exp = r, exp; return nil })
}

func (f fakePlayers) MarkSignIn(_ context.Context, id, at int64) error {
	_, err := f.update(id, func(p *model.Player) error { p.LastSignIn = at; return nil })
	return err
}

func (f fakePlayers) MarkCultivate(_ context.Context, id, at int64) error {
	_, err := f.update(id, func(p *model.Player) error { p.LastCultivate = at; return nil })
	return err
}

func (f fakePlayers) Transfer(_ context.Context, fromID, toID, amount int64, outDesc, inDesc string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	from, ok := f.db.players[fromID]
	if !ok {
		return repository.ErrPlayerNotFound
	}
	to, ok := f.db.players[toID]
	if !ok {
		return repository.ErrPlayerNotFound
	}
	if from.Stones < amount {
		return repository.ErrInsufficientStones
	}
	from.Stones -= amount
	to.Stones += amount
	f.db.ledger = append(f.db.ledger,
		&model.LedgerEntry{ID: f.db.id(), PlayerID: fromID, Amount: -amount, Type: model.LedgerGiftOut, Description: &outDesc},
		&model.LedgerEntry{ID: f.db.id(), PlayerID: toID, Amount: amount, Type: model.LedgerGiftIn, Description: &inDesc},
	)
	return nil
}

func (f fakePlayers) JoinSect(_ context.Context, id, sectID int64, role model.SectRole) error {
	_, err := f.update(id, func(p *model.Player) error {
		p.SectID, p.SectRole = &sectID, role
		p.Contribution, p.DailyDonated, p.SectSigned = 0, 0, false
		return nil
	})
	return err
}

func (f fakePlayers) LeaveSect(_ context.Context, id int64) error {
	_, err := f.update(id, func(p *model.Player) error {
		p.SectID, p.SectRole = nil, model.RoleNone
		p.Contribution, p.DailyDonated, p.SectSigned = 0, 0, false
		return nil
	})
	return err
}

func (f fakePlayers) ClearSect(_ context.Context, sectID int64) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, p := range f.db.players {
		if p.SectID != nil && *p.SectID == sectID {
			p.SectID, p.SectRole = nil, model.RoleNone
			p.Contribution, p.DailyDonated, p.SectSigned = 0, 0, false
			n++
		}
	}
	return n, nil
}

func (f fakePlayers) SetSectRole(_ context.Context, id int64, role model.SectRole) error {
	_, err := f.update(id, func(p *model.Player) error { p.SectRole = role; return nil })
	return err
}

func (f fakePlayers) RecordDonation(_ context.Context, id, amount int64) error {
	_, err := f.update(id, func(p *model.Player) error {
		p.Contribution += amount
		p.DailyDonated += amount
		return nil
	})
	return err
}

func (f fakePlayers) MarkSectSigned(_ context.Context, id, contribution int64) (bool, error) {
	signed := false
	_, err := f.update(id, func(p *model.Player) error {
		if p.SectSigned {
			return nil
		}
		p.SectSigned = true
		p.Contribution += contribution
		signed = true
		return nil
	})
	return signed, err
}

func (f fakePlayers) ResetDaily(context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, p := range f.db.players {
		if p.DailyDonated != 0 || p.SectSigned {
			p.DailyDonated, p.SectSigned = 0, false
			n++
		}
	}
	return n, nil
}

func (f fakePlayers) Members(_ context.Context, sectID int64) ([]*model.SectMember, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.SectMember
	for _, p := range f.db.players {
		if p.SectID != nil && *p.SectID == sectID {
			out = append(out, &model.SectMember{
				TelegramID: p.TelegramID, Name: p.Name, Realm: p.Realm,
				Role: p.SectRole, Contribution: p.Contribution,
			})
		}
	}
	slices.SortFunc(out, func(a, b *model.SectMember) int { return cmp.Compare(a.TelegramID, b.TelegramID) })
	return out, nil
}

func (f fakePlayers) CountMembers(_ context.Context, sectID int64, role model.SectRole) (int, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var total, withRole int
	for _, p := range f.db.players {
		if p.SectID != nil && *p.SectID == sectID {
			total++
			if p.SectRole == role {
				withRole++
			}
		}
	}
	return total, withRole, nil
}

func (f fakePlayers) Top(_ context.Context, limit int) ([]*model.PlayerRank, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.PlayerRank
	for _, p := range f.db.players {
		out = append(out, &model.PlayerRank{TelegramID: p.TelegramID, Name: p.Name, Realm: p.Realm, Exp: p.Exp})
	}
	slices.SortFunc(out, func(a, b *model.PlayerRank) int {
		return cmp.Or(cmp.Compare(b.Realm, a.Realm), cmp.Compare(b.Exp, a.Exp), cmp.Compare(a.TelegramID, b.TelegramID))
	})
	return out[:min(limit, len(out))], nil
}

// ---- ledger ----

type fakeLedger struct{ db *fakeDB }

func (f fakeLedger) Create(_ context.Context, playerID, amount int64, entryType string, desc *string) (*model.LedgerEntry, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e := &model.LedgerEntry{ID: f.db.id(), PlayerID: playerID, Amount: amount, Type: entryType, Description: desc, CreatedAt: time.Now()}
	f.db.ledger = append(f.db.ledger, e)
	return e, nil
}

func (f fakeLedger) ListByPlayer(_ context.Context, playerID int64, limit int) ([]*model.LedgerEntry, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.LedgerEntry
	for i := len(f.db.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if f.db.ledger[i].PlayerID == playerID {
			out = append(out, f.db.ledger[i])
		}
	}
	return out, nil
}

func (f fakeLedger) DailyEarners(_ context.Context, _ time.Time, limit int) ([]*model.EarnerRank, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	sums := make(map[int64]int64)
	for _, e := range f.db.ledger {
		switch e.Type {
		case model.LedgerHunt, model.LedgerBoss, model.LedgerSignIn, model.LedgerSectSignIn:
			sums[e.PlayerID] += e.Amount
		}
	}
	var out []*model.EarnerRank
	for id, sum := range sums {
		if sum > 0 {
			out = append(out, &model.EarnerRank{TelegramID: id, Name: f.db.players[id].Name, Earned: sum})
		}
	}
	slices.SortFunc(out, func(a, b *model.EarnerRank) int {
		return cmp.Or(cmp.Compare(b.Earned, a.Earned), cmp.Compare(a.TelegramID, b.TelegramID))
	})
	return out[:min(limit, len(out))], nil
}

// ---- bag ----

type fakeBag struct{ db *fakeDB }

func (f fakeBag) Add(_ context.Context, playerID int64, itemID string, qty int) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.bag[playerID] == nil {
		f.db.bag[playerID] = make(map[string]int)
	}
	f.db.bag[playerID][itemID] += qty
	return nil
}

func (f fakeBag) Remove(_ context.Context, playerID int64, itemID string, qty int) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if qty <= 0 {
		return nil
	}
	if f.db.bag[playerID][itemID] < qty {
		return repository.ErrInsufficientItems
	}
	f.db.bag[playerID][itemID] -= qty
	return nil
}

func (f fakeBag) Count(_ context.Context, playerID int64, itemID string) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.bag[playerID][itemID], nil
}

func (f fakeBag) List(_ context.Context, playerID int64) ([]*model.BagItem, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.BagItem
	for id, q := range f.db.bag[playerID] {
		if q > 0 {
			out = append(out, &model.BagItem{PlayerID: playerID, ItemID: id, Quantity: q})
		}
	}
	slices.SortFunc(out, func(a, b *model.BagItem) int { return cmp.Compare(a.ItemID, b.ItemID) })
	return out, nil
}

func (f fakeBag) Prune(context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, items := range f.db.bag {
		for id, q := range items {
			if q <= 0 {
				delete(items, id)
				n++
			}
		}
	}
	return n, nil
}

// ---- equipment ----

type fakeEquipment struct{ db *fakeDB }

func (f fakeEquipment) Create(_ context.Context, e *model.Equipment) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Sockets == nil {
		e.Sockets = []string{}
	}
	f.db.equipment[e.ID] = cloneEquipment(e)
	return nil
}

func (f fakeEquipment) GetByID(_ context.Context, id uuid.UUID) (*model.Equipment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.equipment[id]
	if !ok {
		return nil, repository.ErrEquipmentNotFound
	}
	return cloneEquipment(e), nil
}

func (f fakeEquipment) list(ownerID int64, keep func(*model.Equipment) bool) []*model.Equipment {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.Equipment
	for _, e := range f.db.equipment {
		if e.OwnerID == ownerID && keep(e) {
			out = append(out, cloneEquipment(e))
		}
	}
	slices.SortFunc(out, func(a, b *model.Equipment) int {
		if a.Equipped() != b.Equipped() {
			if a.Equipped() {
				return -1
			}
			return 1
		}
		return cmp.Or(cmp.Compare(a.EquippedSlot, b.EquippedSlot), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out
}

func (f fakeEquipment) ListByOwner(_ context.Context, ownerID int64) ([]*model.Equipment, error) {
	return f.list(ownerID, func(*model.Equipment) bool { return true }), nil
}

func (f fakeEquipment) Equipped(_ context.Context, ownerID int64) ([]*model.Equipment, error) {
	return f.list(ownerID, (*model.Equipment).Equipped), nil
}

func (f fakeEquipment) FindByPrefix(_ context.Context, ownerID int64, prefix string) ([]*model.Equipment, error) {
	return f.list(ownerID, func(e *model.Equipment) bool { return strings.HasPrefix(e.ID.String(), prefix) }), nil
}

func (f fakeEquipment) Update(_ context.Context, e *model.Equipment) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.equipment[e.ID]; !ok {
		return repository.ErrEquipmentNotFound
	}
	f.db.equipment[e.ID] = cloneEquipment(e)
	return nil
}

func (f fakeEquipment) SetSlot(_ context.Context, id uuid.UUID, slot string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.equipment[id]
	if !ok {
		return repository.ErrEquipmentNotFound
	}
	if slot != "" {
		for _, o := range f.db.equipment {
			if o.ID != id && o.OwnerID == e.OwnerID && o.EquippedSlot == slot {
				return repository.ErrSlotTaken
			}
		}
	}
	e.EquippedSlot = slot
	return nil
}

func (f fakeEquipment) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.equipment[id]; !ok {
		return repository.ErrEquipmentNotFound
	}
	delete(f.db.equipment, id)
	return nil
}

func (f fakeEquipment) WearEquipped(_ context.Context, ownerID int64, n int) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var count int64
	for _, e := range f.db.equipment {
		if e.OwnerID == ownerID && e.Equipped() && e.Durability > 0 {
			forge.Wear(e, n)
			count++
		}
	}
	return count, nil
}

// ---- sects ----

type fakeSects struct{ db *fakeDB }

func (f fakeSects) Create(_ context.Context, name string, leaderID int64) (*model.Sect, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.sects {
		if s.Name == name {
			return nil, repository.ErrSectNameTaken
		}
	}
	s := &model.Sect{ID: f.db.id(), Name: name, LeaderID: leaderID, Level: 1, Facilities: map[string]int{}}
	f.db.sects[s.ID] = s
	return cloneSect(s), nil
}

func (f fakeSects) GetByID(_ context.Context, id int64) (*model.Sect, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sects[id]
	if !ok {
		return nil, repository.ErrSectNotFound
	}
	return cloneSect(s), nil
}

func (f fakeSects) GetByName(_ context.Context, name string) (*model.Sect, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.sects {
		if s.Name == name {
			return cloneSect(s), nil
		}
	}
	return nil, repository.ErrSectNotFound
}

func (f fakeSects) AddFunds(_ context.Context, id, amount int64) (*model.Sect, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sects[id]
	if !ok {
		return nil, repository.ErrSectNotFound
	}
	if s.Funds+amount < 0 {
		return nil, repository.ErrInsufficientFunds
	}
	s.Funds += amount
	return cloneSect(s), nil
}

func (f fakeSects) Save(_ context.Context, s *model.Sect) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cur, ok := f.db.sects[s.ID]
	if !ok {
		return repository.ErrSectNotFound
	}
	funds := cur.Funds
	saved := cloneSect(s)
	saved.Funds = funds
	f.db.sects[s.ID] = saved
	return nil
}

func (f fakeSects) Delete(_ context.Context, id int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.sects[id]; !ok {
		return repository.ErrSectNotFound
	}
	delete(f.db.sects, id)
	for k := range f.db.apps {
		if k[0] == id {
			delete(f.db.apps, k)
		}
	}
	return nil
}

func (f fakeSects) Top(_ context.Context, limit int) ([]*model.SectRank, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.SectRank
	for _, s := range f.db.sects {
		r := &model.SectRank{ID: s.ID, Name: s.Name, Level: s.Level, Exp: s.Exp}
		for _, p := range f.db.players {
			if p.SectID != nil && *p.SectID == s.ID {
				r.Members++
			}
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *model.SectRank) int {
		return cmp.Or(cmp.Compare(b.Level, a.Level), cmp.Compare(b.Exp, a.Exp), cmp.Compare(a.ID, b.ID))
	})
	return out[:min(limit, len(out))], nil
}

func (f fakeSects) Apply(_ context.Context, sectID, playerID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	key := [2]int64{sectID, playerID}
	if _, ok := f.db.apps[key]; ok {
		return repository.ErrAlreadyApplied
	}
	f.db.apps[key] = time.Now()
	return nil
}

func (f fakeSects) Applications(_ context.Context, sectID int64) ([]*model.SectApplication, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.SectApplication
	for k, at := range f.db.apps {
		if k[0] == sectID {
			out = append(out, &model.SectApplication{SectID: sectID, PlayerID: k[1], Name: f.db.players[k[1]].Name, CreatedAt: at})
		}
	}
	slices.SortFunc(out, func(a, b *model.SectApplication) int { return cmp.Compare(a.PlayerID, b.PlayerID) })
	return out, nil
}

func (f fakeSects) DeleteApplication(_ context.Context, sectID, playerID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	key := [2]int64{sectID, playerID}
	_, ok := f.db.apps[key]
	delete(f.db.apps, key)
	return ok, nil
}

func (f fakeSects) ClearApplications(_ context.Context, playerID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for k := range f.db.apps {
		if k[1] == playerID {
			delete(f.db.apps, k)
		}
	}
	return nil
}

// ---- bosses ----

type fakeBosses struct{ db *fakeDB }

func (f fakeBosses) Get(_ context.Context, bossID string) (*model.BossState, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	st, ok := f.db.bosses[bossID]
	if !ok {
		return nil, repository.ErrBossNotFound
	}
	return cloneBoss(st), nil
}

func (f fakeBosses) Save(_ context.Context, st *model.BossState) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.bosses[st.BossID] = cloneBoss(st)
	return nil
}

func (f fakeBosses) RecordKill(_ context.Context, k *model.BossKill) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	k.ID = f.db.id()
	c := *k
	f.db.kills = append(f.db.kills, &c)
	return nil
}

func (f fakeBosses) RecentKills(_ context.Context, bossID string, limit int) ([]*model.BossKill, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*model.BossKill
	for i := len(f.db.kills) - 1; i >= 0 && len(out) < limit; i-- {
		if f.db.kills[i].BossID == bossID {
			out = append(out, f.db.kills[i])
		}
	}
	return out, nil
}

// ---- fixtures ----

// fixed always rolls v, clamped to the range asked for.
func fixed(v int) forge.Roller {
	return forge.RollerFunc(func(n int) int { return min(v, n-1) })
}

// clock is an adjustable time source.
type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testCatalog() *catalog.Catalog {
	return catalog.New(
		map[string]*catalog.ItemDef{
			"wooden_sword":        {Name: "木剑", Kind: catalog.KindWeapon, Slot: catalog.SlotWeapon, Quality: catalog.QualitySpirit, Attack: 10, Durability: 100, Price: 100},
			"iron_sword":          {Name: "铁剑", Kind: catalog.KindWeapon, Slot: catalog.SlotWeapon, Quality: catalog.QualityTreasure, Attack: 30, Durability: 100, Price: 800},
			"iron_armor":          {Name: "铁甲", Kind: catalog.KindArmor, Slot: catalog.SlotBody, Realm: realm.Foundation, Defense: 20, Durability: 100, Price: 500},
			"dragon_blade":        {Name: "龙刃", Kind: catalog.KindWeapon, Slot: catalog.SlotWeapon, Quality: catalog.QualityDivine, Realm: realm.GoldenCore, Attack: 100, Durability: 200},
			"refine_stone":        {Name: "炼器石", Kind: catalog.KindMaterial, Price: 50},
			"protection_talisman": {Name: "护器符", Kind: catalog.KindMaterial, Price: 1000},
			"ruby":                {Name: "红宝石", Kind: catalog.KindGem, Price: 300, Gem: &catalog.GemDef{Tier: 1, Stat: catalog.StatAttack, Value: 15}},
			"qi_pill":             {Name: "聚气丹", Kind: catalog.KindConsumable, Price: 100, Exp: 200},
		},
		map[string]*catalog.MonsterDef{
			"rabbit": {Name: "灵兔", HP: 20, Attack: 1, Exp: 50, Stones: 30, Drops: []catalog.Drop{{Item: "refine_stone", Chance: 1000, Qty: 2}}},
			"wolf":   {Name: "血狼", HP: 1_000_000, Attack: 500, Exp: 999, Stones: 999},
			"tiger":  {Name: "虎妖", Realm: realm.Foundation, HP: 500, Attack: 50, Defense: 10, Exp: 300, Stones: 200},
		},
		map[string]*catalog.BossDef{
			"ox_king": {
				MonsterDef:  catalog.MonsterDef{Name: "牛魔王", HP: 100},
				Respawn:     time.Hour,
				StonePool:   1000,
				KillerBonus: 100,
				TopDrop:     "ruby",
			},
		},
	)
}

// testEnv wires services to one fake database, a shared lock and a fixed
// clock.
type testEnv struct {
	db    *fakeDB
	items *catalog.Catalog
	clock *clock
	locks *lock.KeyLock[int64]
}

func newTestEnv() *testEnv {
	return &testEnv{db: newFakeDB(), items: testCatalog(), clock: newClock(), locks: lock.New[int64]()}
}

func (e *testEnv) opts(r forge.Roller) []Option {
	return []Option{WithRoller(r), WithClock(e.clock.Now)}
}

func testPlayerConfig() config.PlayerConfig {
	return config.PlayerConfig{
		InitialStones:     1000,
		StarterWeapon:     "wooden_sword",
		SignInReward:      300,
		SignInCooldown:    24 * time.Hour,
		CultivateCooldown: 30 * time.Minute,
	}
}

func testForgeConfig() config.ForgeConfig {
	return config.ForgeConfig{
		MaxRefineLevel:   15,
		RefineStoneItem:  "refine_stone",
		ProtectionItem:   "protection_talisman",
		RepairPricePoint: 2,
	}
}

// piece stores a piece of equipment in the fake database.
func (e *testEnv) piece(ownerID int64, defID string, level, durability int, slot catalog.Slot) *model.Equipment {
	def, _ := e.items.Item(defID)
	eq := &model.Equipment{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		DefID:         defID,
		RefineLevel:   level,
		Durability:    durability,
		MaxDurability: def.Durability,
		Sockets:       make([]string, def.Quality.Sockets()),
		EquippedSlot:  string(slot),
	}
	_ = fakeEquipment{e.db}.Create(context.Background(), eq)
	return eq
}

func (e *testEnv) give(playerID int64, itemID string, qty int) {
	_ = fakeBag{e.db}.Add(context.Background(), playerID, itemID, qty)
}
