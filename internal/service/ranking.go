package service

import (
	"context"
	"time"

	"cultivation-bot/internal/model"
)

// RankingService handles leaderboards.
type RankingService struct {
	players  PlayerStore
	sects    SectStore
	ledger   LedgerStore
	timezone *time.Location
	now      func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(stores Stores, timezone *time.Location) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		players:  stores.Players,
		sects:    stores.Sects,
		ledger:   stores.Ledger,
		timezone: timezone,
		now:      time.Now,
	}
}

// TopPlayers retrieves the top cultivators by realm then exp.
func (s *RankingService) TopPlayers(ctx context.Context, limit int) ([]*model.PlayerRank, error) {
	return s.players.Top(ctx, limit)
}

// TopSects retrieves the top sects by level then exp.
func (s *RankingService) TopSects(ctx context.Context, limit int) ([]*model.SectRank, error) {
	return s.sects.Top(ctx, limit)
}

// DailyEarners retrieves today's top stone earners.
func (s *RankingService) DailyEarners(ctx context.Context, limit int) ([]*model.EarnerRank, error) {
	return s.ledger.DailyEarners(ctx, s.now().In(s.timezone), limit)
}
