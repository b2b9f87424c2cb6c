// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrGuildNotFound  = errors.New("guild not found")
	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrGameNotFound   = errors.New("game not found")
)

// PlayerRepository handles player data persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

const playerColumns = "guild_id, user_id, points, wins, losses, draws, registered_at"

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.GuildID,
		&p.UserID,
		&p.Points,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Register creates a player record with zeroed stats. Registering an
// already-registered player is a no-op returning the existing record.
func (r *PlayerRepository) Register(ctx context.Context, guildID, userID int64) (*model.Player, error) {
	const query = `
		INSERT INTO players (guild_id, user_id, points, wins, losses, draws, registered_at)
		VALUES ($1, $2, 0, 0, 0, 0, NOW())
		ON CONFLICT (guild_id, user_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
		RETURNING ` + playerColumns

	p, err := scanPlayer(r.pool.QueryRow(ctx, query, guildID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to register player: %w", err)
	}
	return p, nil
}

// Get retrieves a player. Returns ErrPlayerNotFound if absent.
func (r *PlayerRepository) Get(ctx context.Context, guildID, userID int64) (*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + `
		FROM players
		WHERE guild_id = $1 AND user_id = $2
	`
	p, err := scanPlayer(r.pool.QueryRow(ctx, query, guildID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// GetMany retrieves the named players, keyed by user ID. Missing users
// are simply absent from the result.
func (r *PlayerRepository) GetMany(ctx context.Context, guildID int64, userIDs []int64) (map[int64]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + `
		FROM players
		WHERE guild_id = $1 AND user_id = ANY($2)
	`
	rows, err := r.pool.Query(ctx, query, guildID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	defer rows.Close()

	players := make(map[int64]*model.Player, len(userIDs))
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players[p.UserID] = p
	}
	return players, rows.Err()
}

// TopByPoints returns a guild's highest-point players, for leaderboard
// cache rebuilds.
func (r *PlayerRepository) TopByPoints(ctx context.Context, guildID int64, limit int) ([]*model.Player, error) {
	const query = `
		SELECT ` + playerColumns + `
		FROM players
		WHERE guild_id = $1
		ORDER BY points DESC, registered_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// update writes a player's mutable stats inside an existing transaction.
// Values are clamped in the engine before they get here; the CHECK
// constraints on the table are the backstop.
func updatePlayer(ctx context.Context, tx pgx.Tx, p *model.Player) error {
	const query = `
		UPDATE players
		SET points = $3, wins = $4, losses = $5, draws = $6
		WHERE guild_id = $1 AND user_id = $2
	`
	tag, err := tx.Exec(ctx, query, p.GuildID, p.UserID, p.Points, p.Wins, p.Losses, p.Draws)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// ApplyResult persists the outcome of a resolved game: every player's
// new stats and one score update per player, atomically. Either the
// whole result lands or none of it does.
func (r *PlayerRepository) ApplyResult(ctx context.Context, players []*model.Player, updates []model.ScoreUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range players {
		if err := updatePlayer(ctx, tx, p); err != nil {
			return err
		}
	}

	const insert = `
		INSERT INTO score_updates (guild_id, lobby_ref, game_id, user_id, delta, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	for _, u := range updates {
		if _, err := tx.Exec(ctx, insert, u.GuildID, u.LobbyRef, u.GameID, u.UserID, u.Delta); err != nil {
			return fmt.Errorf("failed to insert score update: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}
