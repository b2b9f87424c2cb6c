package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-pug-bot/internal/model"
)

// LobbyRepository handles lobby configuration persistence.
type LobbyRepository struct {
	pool *pgxpool.Pool
}

// NewLobbyRepository creates a new LobbyRepository instance.
func NewLobbyRepository(pool *pgxpool.Pool) *LobbyRepository {
	return &LobbyRepository{pool: pool}
}

const lobbyColumns = `guild_id, lobby_ref, players_per_team, pick_mode, multiplier,
	multiply_loss_value, high_point_limit, reduction_factor, current_game_count`

func scanLobby(row pgx.Row) (*model.Lobby, error) {
	var l model.Lobby
	err := row.Scan(
		&l.GuildID,
		&l.LobbyRef,
		&l.PlayersPerTeam,
		&l.PickMode,
		&l.Multiplier,
		&l.MultiplyLossValue,
		&l.HighPointLimit,
		&l.ReductionFactor,
		&l.CurrentGameCount,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Get retrieves a lobby. Returns ErrLobbyNotFound if absent.
func (r *LobbyRepository) Get(ctx context.Context, guildID int64, lobbyRef string) (*model.Lobby, error) {
	const query = `
		SELECT ` + lobbyColumns + `
		FROM lobbies
		WHERE guild_id = $1 AND lobby_ref = $2
	`
	l, err := scanLobby(r.pool.QueryRow(ctx, query, guildID, lobbyRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLobbyNotFound
		}
		return nil, fmt.Errorf("failed to get lobby: %w", err)
	}
	return l, nil
}

// ListByGuild returns a guild's lobbies.
func (r *LobbyRepository) ListByGuild(ctx context.Context, guildID int64) ([]*model.Lobby, error) {
	const query = `
		SELECT ` + lobbyColumns + `
		FROM lobbies
		WHERE guild_id = $1
		ORDER BY lobby_ref
	`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lobbies: %w", err)
	}
	defer rows.Close()

	var lobbies []*model.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lobby: %w", err)
		}
		lobbies = append(lobbies, l)
	}
	return lobbies, rows.Err()
}

// Upsert creates or replaces a lobby's configuration. The game counter
// is preserved on update.
func (r *LobbyRepository) Upsert(ctx context.Context, l *model.Lobby) error {
	const query = `
		INSERT INTO lobbies (guild_id, lobby_ref, players_per_team, pick_mode, multiplier,
		                     multiply_loss_value, high_point_limit, reduction_factor, current_game_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (guild_id, lobby_ref) DO UPDATE SET
			players_per_team = EXCLUDED.players_per_team,
			pick_mode = EXCLUDED.pick_mode,
			multiplier = EXCLUDED.multiplier,
			multiply_loss_value = EXCLUDED.multiply_loss_value,
			high_point_limit = EXCLUDED.high_point_limit,
			reduction_factor = EXCLUDED.reduction_factor
	`
	_, err := r.pool.Exec(ctx, query,
		l.GuildID,
		l.LobbyRef,
		l.PlayersPerTeam,
		l.PickMode,
		l.Multiplier,
		l.MultiplyLossValue,
		l.HighPointLimit,
		l.ReductionFactor,
		l.CurrentGameCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lobby: %w", err)
	}
	return nil
}

// AddQueueEntry mirrors a queue join to storage so membership survives
// a restart. Re-adding an existing entry keeps the original join time.
func (r *LobbyRepository) AddQueueEntry(ctx context.Context, e *model.QueueEntry) error {
	const query = `
		INSERT INTO queue_entries (guild_id, lobby_ref, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, lobby_ref, user_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, e.GuildID, e.LobbyRef, e.UserID, e.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add queue entry: %w", err)
	}
	return nil
}

// RemoveQueueEntry mirrors a queue leave or eviction to storage.
func (r *LobbyRepository) RemoveQueueEntry(ctx context.Context, guildID int64, lobbyRef string, userID int64) error {
	const query = `DELETE FROM queue_entries WHERE guild_id = $1 AND lobby_ref = $2 AND user_id = $3`
	_, err := r.pool.Exec(ctx, query, guildID, lobbyRef, userID)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

// ClearQueue drops a lobby's mirrored queue, called when the queue is
// drained into a game.
func (r *LobbyRepository) ClearQueue(ctx context.Context, guildID int64, lobbyRef string) error {
	const query = `DELETE FROM queue_entries WHERE guild_id = $1 AND lobby_ref = $2`
	_, err := r.pool.Exec(ctx, query, guildID, lobbyRef)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// ListQueueEntries returns every mirrored queue entry in join order,
// for rebuilding the in-memory queues at startup.
func (r *LobbyRepository) ListQueueEntries(ctx context.Context) ([]model.QueueEntry, error) {
	const query = `
		SELECT guild_id, lobby_ref, user_id, joined_at
		FROM queue_entries
		ORDER BY joined_at, user_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		if err := rows.Scan(&e.GuildID, &e.LobbyRef, &e.UserID, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NextGameID increments and returns the lobby's monotonic game counter.
func (r *LobbyRepository) NextGameID(ctx context.Context, guildID int64, lobbyRef string) (int, error) {
	const query = `
		UPDATE lobbies
		SET current_game_count = current_game_count + 1
		WHERE guild_id = $1 AND lobby_ref = $2
		RETURNING current_game_count
	`
	var gameID int
	err := r.pool.QueryRow(ctx, query, guildID, lobbyRef).Scan(&gameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLobbyNotFound
		}
		return 0, fmt.Errorf("failed to advance game counter: %w", err)
	}
	return gameID, nil
}
