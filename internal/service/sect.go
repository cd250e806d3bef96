package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/model"
	"cultivation-bot/internal/pkg/lock"
	"cultivation-bot/internal/realm"
	"cultivation-bot/internal/repository"
	"cultivation-bot/internal/sect"
)

// Errors for sect operations.
var (
	ErrAlreadyInSect       = errors.New("already in a sect")
	ErrNotInSect           = errors.New("not in a sect")
	ErrNotSameSect         = errors.New("target is not in your sect")
	ErrSectFull            = errors.New("sect is full")
	ErrElderCap            = errors.New("elder seats are full")
	ErrApplicationNotFound = errors.New("application not found")
	ErrLeaderMustTransfer  = errors.New("leader must transfer leadership before leaving")
	ErrDonationCap         = errors.New("daily donation cap reached")
	ErrAlreadySigned       = errors.New("already signed in to the sect today")
	ErrSelfTarget          = errors.New("cannot target yourself")
	ErrRoleUnchanged       = errors.New("member already holds that role")
	ErrAnnouncementLength  = errors.New("announcement too long")
)

// Sect sign-in rewards.
const (
	SignInContribution  = 10
	SignInSectExp       = 20
	DonationExpDivisor  = 10
	AnnouncementMaxRune = 200
)

// SectInfo is a sect with its roster.
type SectInfo struct {
	Sect    *model.Sect
	Members []*model.SectMember
	Leader  string
	Elders  int
}

// DonateResult describes a donation.
type DonateResult struct {
	Sect         *model.Sect
	LevelsGained int
	Player       *model.Player
}

// SectSignInResult describes a sect sign-in.
type SectSignInResult struct {
	Sect         *model.Sect
	Stones       int64
	LevelsGained int
}

// SectService runs sect membership, ranks and the sect economy. Player
// locks are always taken before the sect lock.
type SectService struct {
	base
	cfg       config.SectConfig
	sectLocks *lock.KeyLock[int64]
}

// NewSectService creates a new SectService instance.
func NewSectService(
	stores Stores,
	items *catalog.Catalog,
	cfg config.SectConfig,
	locks *lock.KeyLock[int64],
	opts ...Option,
) *SectService {
	return &SectService{
		base:      newBase(stores, items, locks, opts),
		cfg:       cfg,
		sectLocks: lock.New[int64](),
	}
}

// membership returns a player and their sect, or ErrNotInSect.
func (s *SectService) membership(ctx context.Context, playerID int64) (*model.Player, *model.Sect, error) {
	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	if !p.InSect() {
		return p, nil, ErrNotInSect
	}
	sc, err := s.Sects.GetByID(ctx, *p.SectID)
	if err != nil {
		return p, nil, err
	}
	return p, sc, nil
}

// lockSect takes the sect lock and reloads the sect, so a copy read before
// the lock is never saved over newer changes.
func (s *SectService) lockSect(ctx context.Context, sectID int64) (*model.Sect, func(), error) {
	s.sectLocks.Lock(sectID)
	sc, err := s.Sects.GetByID(ctx, sectID)
	if err != nil {
		s.sectLocks.Unlock(sectID)
		return nil, nil, err
	}
	return sc, func() { s.sectLocks.Unlock(sectID) }, nil
}

// colleague loads targetID and checks it belongs to sectID.
func (s *SectService) colleague(ctx context.Context, sectID, targetID int64) (*model.Player, error) {
	t, err := s.Players.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !t.InSect() || *t.SectID != sectID {
		return nil, ErrNotSameSect
	}
	return t, nil
}

// Find resolves a sect by name or numeric id.
func (s *SectService) Find(ctx context.Context, ref string) (*model.Sect, error) {
	sc, err := s.Sects.GetByName(ctx, ref)
	if err == nil || !errors.Is(err, repository.ErrSectNotFound) {
		return sc, err
	}
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		return s.Sects.GetByID(ctx, id)
	}
	return nil, err
}

// Create founds a sect led by the player.
func (s *SectService) Create(ctx context.Context, playerID int64, name string) (*model.Sect, error) {
	if err := sect.ValidateName(name); err != nil {
		return nil, err
	}

	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.InSect() {
		return nil, ErrAlreadyInSect
	}
	if p.Realm < realm.Realm(s.cfg.MinRealm) {
		return nil, ErrRealmTooLow
	}

	if _, err := s.spend(ctx, playerID, s.cfg.CreationCost, model.LedgerSectCreate, "创建宗门 "+name); err != nil {
		return nil, err
	}
	sc, err := s.Sects.Create(ctx, name, playerID)
	if err != nil {
		if _, refundErr := s.earn(ctx, playerID, s.cfg.CreationCost, model.LedgerSectCreate, "创建失败退还"); refundErr != nil {
			log.Error().Err(refundErr).Int64("player_id", playerID).Msg("Failed to refund sect creation")
		}
		return nil, err
	}
	if err := s.Players.JoinSect(ctx, playerID, sc.ID, model.RoleLeader); err != nil {
		return nil, fmt.Errorf("failed to seat leader: %w", err)
	}
	if err := s.Sects.ClearApplications(ctx, playerID); err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Msg("Failed to clear applications")
	}

	log.Info().Int64("player_id", playerID).Int64("sect_id", sc.ID).Str("name", name).Msg("Sect founded")
	return sc, nil
}

func (s *SectService) info(ctx context.Context, sc *model.Sect) (*SectInfo, error) {
	members, err := s.Players.Members(ctx, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	info := &SectInfo{Sect: sc, Members: members}
	for _, m := range members {
		switch m.Role {
		case model.RoleLeader:
			info.Leader = m.Name
		case model.RoleElder:
			info.Elders++
		}
	}
	return info, nil
}

// Mine returns the player's own sect.
func (s *SectService) Mine(ctx context.Context, playerID int64) (*SectInfo, error) {
	_, sc, err := s.membership(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, sc)
}

// Info returns a sect by name or id.
func (s *SectService) Info(ctx context.Context, ref string) (*SectInfo, error) {
	sc, err := s.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, sc)
}

// Top lists sects by level then exp.
func (s *SectService) Top(ctx context.Context, limit int) ([]*model.SectRank, error) {
	return s.Sects.Top(ctx, limit)
}

// Apply files a join request.
func (s *SectService) Apply(ctx context.Context, playerID int64, ref string) (*model.Sect, error) {
	p, err := s.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.InSect() {
		return nil, ErrAlreadyInSect
	}
	sc, err := s.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	total, _, err := s.Players.CountMembers(ctx, sc.ID, model.RoleNone)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if total >= sect.MemberCap(sc.Level) {
		return nil, ErrSectFull
	}
	if err := s.Sects.Apply(ctx, sc.ID, playerID); err != nil {
		return nil, err
	}
	return sc, nil
}

// Applications lists pending requests of the actor's sect.
func (s *SectService) Applications(ctx context.Context, actorID int64) (*model.Sect, []*model.SectApplication, error) {
	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !sect.CanManage(actor.SectRole) {
		return nil, nil, sect.ErrPermission
	}
	apps, err := s.Sects.Applications(ctx, sc.ID)
	if err != nil {
		return nil, nil, err
	}
	return sc, apps, nil
}

// Approve admits an applicant as a disciple.
func (s *SectService) Approve(ctx context.Context, actorID, applicantID int64) (*model.Player, error) {
	unlock := s.locks.LockMany(actorID, applicantID)
	defer unlock()

	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !sect.CanManage(actor.SectRole) {
		return nil, sect.ErrPermission
	}

	s.sectLocks.Lock(sc.ID)
	defer s.sectLocks.Unlock(sc.ID)

	applicant, err := s.Players.GetByID(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	total, _, err := s.Players.CountMembers(ctx, sc.ID, model.RoleNone)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if total >= sect.MemberCap(sc.Level) {
		return nil, ErrSectFull
	}
	found, err := s.Sects.DeleteApplication(ctx, sc.ID, applicantID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrApplicationNotFound
	}
	if applicant.InSect() {
		return nil, ErrAlreadyInSect
	}
	if err := s.Players.JoinSect(ctx, applicantID, sc.ID, model.RoleDisciple); err != nil {
		return nil, err
	}
	if err := s.Sects.ClearApplications(ctx, applicantID); err != nil {
		log.Warn().Err(err).Int64("player_id", applicantID).Msg("Failed to clear applications")
	}

	log.Info().Int64("sect_id", sc.ID).Int64("player_id", applicantID).Int64("by", actorID).Msg("Sect member admitted")
	return applicant, nil
}

// Reject drops a pending request.
func (s *SectService) Reject(ctx context.Context, actorID, applicantID int64) error {
	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return err
	}
	if !sect.CanManage(actor.SectRole) {
		return sect.ErrPermission
	}
	found, err := s.Sects.DeleteApplication(ctx, sc.ID, applicantID)
	if err != nil {
		return err
	}
	if !found {
		return ErrApplicationNotFound
	}
	return nil
}

// Leave takes the player out of their sect. A leader may only leave alone,
// which disbands the sect; disbanded reports that case.
func (s *SectService) Leave(ctx context.Context, playerID int64) (disbanded bool, err error) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	p, sc, err := s.membership(ctx, playerID)
	if err != nil {
		return false, err
	}

	s.sectLocks.Lock(sc.ID)
	defer s.sectLocks.Unlock(sc.ID)

	if p.SectRole == model.RoleLeader {
		total, _, err := s.Players.CountMembers(ctx, sc.ID, model.RoleNone)
		if err != nil {
			return false, fmt.Errorf("failed to count members: %w", err)
		}
		if total > 1 {
			return false, ErrLeaderMustTransfer
		}
		return true, s.disband(ctx, sc)
	}
	return false, s.Players.LeaveSect(ctx, playerID)
}

// Kick removes a member. The leader removes anyone, elders remove disciples.
func (s *SectService) Kick(ctx context.Context, actorID, targetID int64) (*model.Player, error) {
	if actorID == targetID {
		return nil, ErrSelfTarget
	}
	unlock := s.locks.LockMany(actorID, targetID)
	defer unlock()

	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	defer unlockSect()

	target, err := s.colleague(ctx, sc.ID, targetID)
	if err != nil {
		return nil, err
	}
	if !sect.CanKick(actor.SectRole, target.SectRole) {
		return nil, sect.ErrPermission
	}
	if err := s.Players.LeaveSect(ctx, targetID); err != nil {
		return nil, err
	}
	log.Info().Int64("sect_id", sc.ID).Int64("player_id", targetID).Int64("by", actorID).Msg("Sect member kicked")
	return target, nil
}

// SetRole promotes a disciple to elder or demotes an elder to disciple.
func (s *SectService) SetRole(ctx context.Context, actorID, targetID int64, role model.SectRole) (*model.Player, error) {
	if actorID == targetID {
		return nil, ErrSelfTarget
	}
	if role != model.RoleElder && role != model.RoleDisciple {
		return nil, sect.ErrPermission
	}
	unlock := s.locks.LockMany(actorID, targetID)
	defer unlock()

	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !sect.CanAppoint(actor.SectRole) {
		return nil, sect.ErrPermission
	}
	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	defer unlockSect()

	target, err := s.colleague(ctx, sc.ID, targetID)
	if err != nil {
		return nil, err
	}
	if target.SectRole == role {
		return nil, ErrRoleUnchanged
	}
	if role == model.RoleElder {
		_, elders, err := s.Players.CountMembers(ctx, sc.ID, model.RoleElder)
		if err != nil {
			return nil, fmt.Errorf("failed to count elders: %w", err)
		}
		if elders >= sect.ElderCap(sc.Level) {
			return nil, ErrElderCap
		}
	}
	if err := s.Players.SetSectRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	target.SectRole = role
	return target, nil
}

// Transfer hands leadership to another member; the old leader becomes an
// elder.
func (s *SectService) Transfer(ctx context.Context, actorID, targetID int64) (*model.Player, error) {
	if actorID == targetID {
		return nil, ErrSelfTarget
	}
	unlock := s.locks.LockMany(actorID, targetID)
	defer unlock()

	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !sect.CanAppoint(actor.SectRole) {
		return nil, sect.ErrPermission
	}
	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	defer unlockSect()

	target, err := s.colleague(ctx, sc.ID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.Players.SetSectRole(ctx, targetID, model.RoleLeader); err != nil {
		return nil, err
	}
	if err := s.Players.SetSectRole(ctx, actorID, model.RoleElder); err != nil {
		return nil, err
	}
	sc.LeaderID = targetID
	if err := s.Sects.Save(ctx, sc); err != nil {
		return nil, err
	}
	target.SectRole = model.RoleLeader

	log.Info().Int64("sect_id", sc.ID).Int64("from", actorID).Int64("to", targetID).Msg("Sect leadership transferred")
	return target, nil
}

// Donate moves stones into sect funds. Each stone is one contribution and a
// tenth of a point of sect exp.
func (s *SectService) Donate(ctx context.Context, playerID, amount int64) (*DonateResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	p, sc, err := s.membership(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if s.cfg.DailyDonationCap > 0 && p.DailyDonated+amount > s.cfg.DailyDonationCap {
		return nil, fmt.Errorf("%w: %d/%d", ErrDonationCap, p.DailyDonated, s.cfg.DailyDonationCap)
	}

	s.sectLocks.Lock(sc.ID)
	defer s.sectLocks.Unlock(sc.ID)

	p, err = s.spend(ctx, playerID, amount, model.LedgerSectDonate, "捐献 "+sc.Name)
	if err != nil {
		return nil, err
	}
	sc, err = s.Sects.AddFunds(ctx, sc.ID, amount)
	if err != nil {
		if _, refundErr := s.earn(ctx, playerID, amount, model.LedgerSectDonate, "捐献失败退还"); refundErr != nil {
			log.Error().Err(refundErr).Int64("player_id", playerID).Msg("Failed to refund donation")
		}
		return nil, fmt.Errorf("failed to add sect funds: %w", err)
	}
	if err := s.Players.RecordDonation(ctx, playerID, amount); err != nil {
		log.Warn().Err(err).Int64("player_id", playerID).Msg("Failed to record donation")
	}
	p.Contribution += amount
	p.DailyDonated += amount

	res := &DonateResult{Sect: sc, Player: p}
	res.LevelsGained = sect.AddExp(sc, amount/DonationExpDivisor)
	if err := s.Sects.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save sect: %w", err)
	}
	return res, nil
}

// SignIn is the once-a-day sect check-in.
func (s *SectService) SignIn(ctx context.Context, playerID int64) (*SectSignInResult, error) {
	s.locks.Lock(playerID)
	defer s.locks.Unlock(playerID)

	_, sc, err := s.membership(ctx, playerID)
	if err != nil {
		return nil, err
	}
	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	defer unlockSect()

	ok, err := s.Players.MarkSectSigned(ctx, playerID, SignInContribution)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadySigned
	}

	res := &SectSignInResult{Sect: sc, Stones: sect.SignInStones(sc)}
	res.LevelsGained = sect.AddExp(sc, SignInSectExp)
	if err := s.Sects.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save sect: %w", err)
	}
	if _, err := s.earn(ctx, playerID, res.Stones, model.LedgerSectSignIn, "宗门签到"); err != nil {
		return nil, fmt.Errorf("failed to pay sign-in stones: %w", err)
	}
	return res, nil
}

// Upgrade raises a facility with sect funds.
func (s *SectService) Upgrade(ctx context.Context, actorID int64, facility string) (*model.Sect, sect.Facility, int64, error) {
	f, ok := sect.ParseFacility(facility)
	if !ok {
		return nil, "", 0, sect.ErrFacilityUnknown
	}
	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, f, 0, err
	}
	if !sect.CanManage(actor.SectRole) {
		return nil, f, 0, sect.ErrPermission
	}

	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, f, 0, err
	}
	defer unlockSect()

	cost, err := sect.CheckUpgrade(sc, f)
	if err != nil {
		return nil, f, 0, err
	}
	if sc, err = s.Sects.AddFunds(ctx, sc.ID, -cost); err != nil {
		return nil, f, cost, err
	}
	sect.ApplyUpgrade(sc, f)
	if err := s.Sects.Save(ctx, sc); err != nil {
		return nil, f, cost, fmt.Errorf("failed to save sect: %w", err)
	}

	log.Info().
		Int64("sect_id", sc.ID).
		Str("facility", string(f)).
		Int("level", sc.Facility(string(f))).
		Int64("cost", cost).
		Msg("Sect facility upgraded")
	return sc, f, cost, nil
}

// Announce replaces the sect announcement.
func (s *SectService) Announce(ctx context.Context, actorID int64, text string) (*model.Sect, error) {
	if utf8.RuneCountInString(text) > AnnouncementMaxRune {
		return nil, ErrAnnouncementLength
	}
	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !sect.CanManage(actor.SectRole) {
		return nil, sect.ErrPermission
	}
	sc, unlockSect, err := s.lockSect(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	defer unlockSect()

	sc.Announcement = text
	if err := s.Sects.Save(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Disband dissolves the leader's sect.
func (s *SectService) Disband(ctx context.Context, actorID int64) (*model.Sect, error) {
	s.locks.Lock(actorID)
	defer s.locks.Unlock(actorID)

	actor, sc, err := s.membership(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !sect.CanAppoint(actor.SectRole) {
		return nil, sect.ErrPermission
	}
	s.sectLocks.Lock(sc.ID)
	defer s.sectLocks.Unlock(sc.ID)

	return sc, s.disband(ctx, sc)
}

func (s *SectService) disband(ctx context.Context, sc *model.Sect) error {
	n, err := s.Players.ClearSect(ctx, sc.ID)
	if err != nil {
		return err
	}
	if err := s.Sects.Delete(ctx, sc.ID); err != nil {
		return err
	}
	log.Info().Int64("sect_id", sc.ID).Str("name", sc.Name).Int64("members", n).Msg("Sect disbanded")
	return nil
}

// ResetDaily clears daily donation totals and sect sign-ins, and prunes
// empty bag rows.
func (s *SectService) ResetDaily(ctx context.Context) (players, pruned int64, err error) {
	if players, err = s.Players.ResetDaily(ctx); err != nil {
		return 0, 0, err
	}
	if pruned, err = s.Bag.Prune(ctx); err != nil {
		return players, 0, err
	}
	return players, pruned, nil
}
