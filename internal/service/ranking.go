package service

import (
	"context"

	"discord-pug-bot/internal/model"
	"discord-pug-bot/internal/rating"
	"discord-pug-bot/internal/repository"
)

// RankingService handles leaderboard and player stat reads. Reads are
// async-classified: they never enter the per-guild scheduler queue and
// tolerate eventual consistency against an in-flight mutation.
type RankingService struct {
	match        *MatchService
	players      *repository.PlayerRepository
	ranks        *repository.RankRepository
	scoreUpdates *repository.ScoreUpdateRepository
}

// NewRankingService creates a new RankingService instance. It shares
// the match service's leaderboard caches.
func NewRankingService(
	match *MatchService,
	players *repository.PlayerRepository,
	ranks *repository.RankRepository,
	scoreUpdates *repository.ScoreUpdateRepository,
) *RankingService {
	return &RankingService{
		match:        match,
		players:      players,
		ranks:        ranks,
		scoreUpdates: scoreUpdates,
	}
}

// Leaderboard returns the guild's top n players by points. The first
// read for a guild rebuilds its cache from storage.
func (s *RankingService) Leaderboard(ctx context.Context, guildID int64, n int) ([]model.LeaderboardEntry, error) {
	board, warm := s.match.boards.get(guildID)
	if !warm {
		if err := s.match.rebuildBoard(ctx, guildID, board); err != nil {
			return nil, err
		}
	}
	return board.TopK(n), nil
}

// PlayerStats is a player's record plus their current rank and recent
// score history.
type PlayerStats struct {
	Player        *model.Player
	CurrentRank   *model.Rank
	RecentUpdates []model.ScoreUpdate
}

// GetPlayerStats retrieves one player's competitive record.
func (s *RankingService) GetPlayerStats(ctx context.Context, guildID, userID int64) (*PlayerStats, error) {
	player, err := s.players.Get(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	ranks, err := s.ranks.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	updates, err := s.scoreUpdates.GetByUser(ctx, guildID, userID, 10)
	if err != nil {
		return nil, err
	}
	return &PlayerStats{
		Player:        player,
		CurrentRank:   rating.CurrentRank(ranks, player.Points),
		RecentUpdates: updates,
	}, nil
}
