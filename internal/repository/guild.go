package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// GuildRepository handles guild configuration persistence.
type GuildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository creates a new GuildRepository instance.
func NewGuildRepository(pool *pgxpool.Pool) *GuildRepository {
	return &GuildRepository{pool: pool}
}

// GetConfig retrieves a guild's matchmaking configuration.
// Returns ErrGuildNotFound if the guild is not registered.
func (r *GuildRepository) GetConfig(ctx context.Context, guildID int64) (*model.GuildConfig, error) {
	const query = `
		SELECT guild_id, default_win_modifier, default_loss_modifier,
		       allow_negative_score, queue_timeout_seconds
		FROM guilds
		WHERE guild_id = $1
	`
	var cfg model.GuildConfig
	var timeoutSeconds *int64
	err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&cfg.DefaultWinModifier,
		&cfg.DefaultLossModifier,
		&cfg.AllowNegativeScore,
		&timeoutSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuildNotFound
		}
		return nil, fmt.Errorf("failed to get guild config: %w", err)
	}
	if timeoutSeconds != nil {
		d := time.Duration(*timeoutSeconds) * time.Second
		cfg.QueueTimeout = &d
	}
	return &cfg, nil
}

// UpsertConfig creates or replaces a guild's configuration.
func (r *GuildRepository) UpsertConfig(ctx context.Context, cfg *model.GuildConfig) error {
	const query = `
		INSERT INTO guilds (guild_id, default_win_modifier, default_loss_modifier,
		                    allow_negative_score, queue_timeout_seconds)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE SET
			default_win_modifier = EXCLUDED.default_win_modifier,
			default_loss_modifier = EXCLUDED.default_loss_modifier,
			allow_negative_score = EXCLUDED.allow_negative_score,
			queue_timeout_seconds = EXCLUDED.queue_timeout_seconds
	`
	var timeoutSeconds *int64
	if cfg.QueueTimeout != nil {
		s := int64(cfg.QueueTimeout.Seconds())
		timeoutSeconds = &s
	}
	_, err := r.pool.Exec(ctx, query,
		cfg.GuildID,
		cfg.DefaultWinModifier,
		cfg.DefaultLossModifier,
		cfg.AllowNegativeScore,
		timeoutSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guild config: %w", err)
	}
	return nil
}

// ListGuildIDs returns every registered guild, for startup cache warms
// and the idle sweep.
func (r *GuildRepository) ListGuildIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT guild_id FROM guilds ORDER BY guild_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan guild id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
