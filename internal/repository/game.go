package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// GameRepository handles game state persistence. Team membership and
// votes are stored as JSONB; they are read and written whole, always
// under the guild's scheduler turn, so row-level granularity buys
// nothing.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// Save inserts or replaces a game snapshot.
func (r *GameRepository) Save(ctx context.Context, g *model.Game) error {
	queue, err := json.Marshal(g.Queue)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	team1, err := json.Marshal(g.Team1)
	if err != nil {
		return fmt.Errorf("failed to encode team1: %w", err)
	}
	team2, err := json.Marshal(g.Team2)
	if err != nil {
		return fmt.Errorf("failed to encode team2: %w", err)
	}
	votes, err := json.Marshal(g.Votes)
	if err != nil {
		return fmt.Errorf("failed to encode votes: %w", err)
	}

	const query = `
		INSERT INTO games (guild_id, lobby_ref, game_id, state, pick_order, picks,
		                   queue, team1, team2, captain1, captain2, winning_team, votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (guild_id, lobby_ref, game_id) DO UPDATE SET
			state = EXCLUDED.state,
			picks = EXCLUDED.picks,
			queue = EXCLUDED.queue,
			team1 = EXCLUDED.team1,
			team2 = EXCLUDED.team2,
			captain1 = EXCLUDED.captain1,
			captain2 = EXCLUDED.captain2,
			winning_team = EXCLUDED.winning_team,
			votes = EXCLUDED.votes
	`
	_, err = r.pool.Exec(ctx, query,
		g.GuildID, g.LobbyRef, g.GameID, g.State, g.PickOrder, g.Picks,
		queue, team1, team2, g.Captain1, g.Captain2, g.WinningTeam, votes, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

// Get retrieves one game. Returns ErrGameNotFound if absent.
func (r *GameRepository) Get(ctx context.Context, guildID int64, lobbyRef string, gameID int) (*model.Game, error) {
	const query = `
		SELECT guild_id, lobby_ref, game_id, state, pick_order, picks,
		       queue, team1, team2, captain1, captain2, winning_team, votes, created_at
		FROM games
		WHERE guild_id = $1 AND lobby_ref = $2 AND game_id = $3
	`
	return r.scanGame(r.pool.QueryRow(ctx, query, guildID, lobbyRef, gameID))
}

// GetActive retrieves a lobby's most recent non-terminal game, or
// ErrGameNotFound when the lobby has no game in progress.
func (r *GameRepository) GetActive(ctx context.Context, guildID int64, lobbyRef string) (*model.Game, error) {
	const query = `
		SELECT guild_id, lobby_ref, game_id, state, pick_order, picks,
		       queue, team1, team2, captain1, captain2, winning_team, votes, created_at
		FROM games
		WHERE guild_id = $1 AND lobby_ref = $2 AND state IN ('picking', 'undecided')
		ORDER BY game_id DESC
		LIMIT 1
	`
	return r.scanGame(r.pool.QueryRow(ctx, query, guildID, lobbyRef))
}

func (r *GameRepository) scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	var queue, team1, team2, votes []byte
	err := row.Scan(
		&g.GuildID, &g.LobbyRef, &g.GameID, &g.State, &g.PickOrder, &g.Picks,
		&queue, &team1, &team2, &g.Captain1, &g.Captain2, &g.WinningTeam, &votes, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if err := json.Unmarshal(queue, &g.Queue); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}
	if err := json.Unmarshal(team1, &g.Team1); err != nil {
		return nil, fmt.Errorf("failed to decode team1: %w", err)
	}
	if err := json.Unmarshal(team2, &g.Team2); err != nil {
		return nil, fmt.Errorf("failed to decode team2: %w", err)
	}
	if err := json.Unmarshal(votes, &g.Votes); err != nil {
		return nil, fmt.Errorf("failed to decode votes: %w", err)
	}
	return &g, nil
}
