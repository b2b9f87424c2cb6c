package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// ScoreUpdateRepository reads the append-only score audit trail.
// Writes happen only through PlayerRepository.ApplyResult, inside the
// same transaction as the player stats they explain.
type ScoreUpdateRepository struct {
	pool *pgxpool.Pool
}

// NewScoreUpdateRepository creates a new ScoreUpdateRepository instance.
func NewScoreUpdateRepository(pool *pgxpool.Pool) *ScoreUpdateRepository {
	return &ScoreUpdateRepository{pool: pool}
}

// GetByGame returns the score updates recorded for one game.
func (r *ScoreUpdateRepository) GetByGame(ctx context.Context, guildID int64, lobbyRef string, gameID int) ([]model.ScoreUpdate, error) {
	const query = `
		SELECT id, guild_id, lobby_ref, game_id, user_id, delta, created_at
		FROM score_updates
		WHERE guild_id = $1 AND lobby_ref = $2 AND game_id = $3
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, guildID, lobbyRef, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score updates: %w", err)
	}
	defer rows.Close()

	var updates []model.ScoreUpdate
	for rows.Next() {
		var u model.ScoreUpdate
		err := rows.Scan(&u.ID, &u.GuildID, &u.LobbyRef, &u.GameID, &u.UserID, &u.Delta, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// GetByUser returns a player's most recent score updates, newest first.
func (r *ScoreUpdateRepository) GetByUser(ctx context.Context, guildID, userID int64, limit int) ([]model.ScoreUpdate, error) {
	const query = `
		SELECT id, guild_id, lobby_ref, game_id, user_id, delta, created_at
		FROM score_updates
		WHERE guild_id = $1 AND user_id = $2
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, guildID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get score updates: %w", err)
	}
	defer rows.Close()

	var updates []model.ScoreUpdate
	for rows.Next() {
		var u model.ScoreUpdate
		err := rows.Scan(&u.ID, &u.GuildID, &u.LobbyRef, &u.GameID, &u.UserID, &u.Delta, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
