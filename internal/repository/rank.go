package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// RankRepository handles rank configuration persistence.
type RankRepository struct {
	pool *pgxpool.Pool
}

// NewRankRepository creates a new RankRepository instance.
func NewRankRepository(pool *pgxpool.Pool) *RankRepository {
	return &RankRepository{pool: pool}
}

// ListByGuild returns a guild's ranks ordered ascending by
// (point_threshold, id). The rating engine relies on this order: at
// equal thresholds the later-inserted rank wins.
func (r *RankRepository) ListByGuild(ctx context.Context, guildID int64) ([]model.Rank, error) {
	const query = `
		SELECT id, guild_id, role_ref, point_threshold, win_modifier, loss_modifier
		FROM ranks
		WHERE guild_id = $1
		ORDER BY point_threshold ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranks: %w", err)
	}
	defer rows.Close()

	var ranks []model.Rank
	for rows.Next() {
		var rank model.Rank
		err := rows.Scan(
			&rank.ID,
			&rank.GuildID,
			&rank.RoleRef,
			&rank.PointThreshold,
			&rank.WinModifier,
			&rank.LossModifier,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks = append(ranks, rank)
	}
	return ranks, rows.Err()
}

// Create adds a rank. The loss modifier is stored as a non-negative
// magnitude; negative input is rejected by the table constraint.
func (r *RankRepository) Create(ctx context.Context, rank *model.Rank) (*model.Rank, error) {
	const query = `
		INSERT INTO ranks (guild_id, role_ref, point_threshold, win_modifier, loss_modifier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		rank.GuildID,
		rank.RoleRef,
		rank.PointThreshold,
		rank.WinModifier,
		rank.LossModifier,
	).Scan(&rank.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create rank: %w", err)
	}
	return rank, nil
}

// Delete removes a rank by id.
func (r *RankRepository) Delete(ctx context.Context, guildID, rankID int64) error {
	const query = `DELETE FROM ranks WHERE guild_id = $1 AND id = $2`
	_, err := r.pool.Exec(ctx, query, guildID, rankID)
	if err != nil {
		return fmt.Errorf("failed to delete rank: %w", err)
	}
	return nil
}
