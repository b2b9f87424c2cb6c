// Integration tests for the matchmaking flow against a real PostgreSQL
// container, wired the same way main wires the service.
package service

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/config"
	"discord-pug-bot/internal/model"
	"discord-pug-bot/internal/notify"
	"discord-pug-bot/internal/pkg/sched"
	"discord-pug-bot/internal/queue"
	"discord-pug-bot/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupMatchService spins up a PostgreSQL container with the production
// schema and wires a MatchService over it. Skips without Docker.
func setupMatchService(t *testing.T) (*MatchService, *pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS guilds (
			guild_id BIGINT PRIMARY KEY,
			default_win_modifier INT NOT NULL DEFAULT 10,
			default_loss_modifier INT NOT NULL DEFAULT 5 CHECK (default_loss_modifier >= 0),
			allow_negative_score BOOLEAN NOT NULL DEFAULT FALSE,
			queue_timeout_seconds BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			guild_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			points INT NOT NULL DEFAULT 0,
			wins INT NOT NULL DEFAULT 0 CHECK (wins >= 0),
			losses INT NOT NULL DEFAULT 0 CHECK (losses >= 0),
			draws INT NOT NULL DEFAULT 0 CHECK (draws >= 0),
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS lobbies (
			guild_id BIGINT NOT NULL,
			lobby_ref VARCHAR(255) NOT NULL,
			players_per_team INT NOT NULL CHECK (players_per_team >= 1),
			pick_mode VARCHAR(50) NOT NULL,
			multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			multiply_loss_value BOOLEAN NOT NULL DEFAULT FALSE,
			high_point_limit INT,
			reduction_factor DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			current_game_count INT NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, lobby_ref)
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			guild_id BIGINT NOT NULL,
			lobby_ref VARCHAR(255) NOT NULL,
			user_id BIGINT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, lobby_ref, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			guild_id BIGINT NOT NULL,
			lobby_ref VARCHAR(255) NOT NULL,
			game_id INT NOT NULL,
			state VARCHAR(20) NOT NULL,
			pick_order VARCHAR(20) NOT NULL,
			picks INT NOT NULL DEFAULT 0,
			queue JSONB NOT NULL DEFAULT '[]',
			team1 JSONB NOT NULL DEFAULT '[]',
			team2 JSONB NOT NULL DEFAULT '[]',
			captain1 BIGINT,
			captain2 BIGINT,
			winning_team INT,
			votes JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, lobby_ref, game_id)
		)`,
	}
	for _, stmt := range statements {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{OpTimeout: 30 * time.Second, MaxDepth: 100},
		Matchmaking: config.MatchmakingConfig{
			DefaultWinModifier:  10,
			DefaultLossModifier: 5,
			LeaderboardSize:     100,
			PickOrder:           string(model.PickOrderTwo),
		},
	}
	scheduler := sched.New(
		sched.WithTimeout(cfg.Scheduler.OpTimeout),
		sched.WithMaxDepth(cfg.Scheduler.MaxDepth),
	)
	svc := NewMatchService(
		cfg, scheduler, queue.NewManager(),
		repository.NewGuildRepository(pool),
		repository.NewPlayerRepository(pool),
		repository.NewRankRepository(pool),
		repository.NewLobbyRepository(pool),
		repository.NewGameRepository(pool),
		notify.NopPublisher{},
	)

	cleanup := func() {
		scheduler.Close()
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return svc, pool, cleanup
}

// TestAddToQueueFailedFormationKeepsQueue tests that a formation whose
// game save fails leaves every player queued, and that the next join
// retries: the game forms from the head of the now over-capacity queue
// while the extra player stays waiting.
func TestAddToQueueFailedFormationKeepsQueue(t *testing.T) {
	svc, pool, cleanup := setupMatchService(t)
	defer cleanup()
	ctx := context.Background()

	lobbyRepo := repository.NewLobbyRepository(pool)
	require.NoError(t, lobbyRepo.Upsert(ctx, &model.Lobby{
		GuildID:        1,
		LobbyRef:       "main",
		PlayersPerTeam: 1,
		PickMode:       model.PickModeRandom,
		Multiplier:     1.0,
	}))

	// Break game persistence so the capacity trigger fails mid-flight.
	_, err := pool.Exec(ctx, `ALTER TABLE games RENAME TO games_offline`)
	require.NoError(t, err)

	outcome, err := svc.AddToQueue(ctx, 1, "main", 100)
	require.NoError(t, err)
	assert.Nil(t, outcome.Game)

	_, err = svc.AddToQueue(ctx, 1, "main", 200)
	require.Error(t, err)

	// Both players must still be queued, in memory and in the mirror.
	_, err = svc.AddToQueue(ctx, 1, "main", 100)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyInQueue))
	_, err = svc.AddToQueue(ctx, 1, "main", 200)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyInQueue))
	entries, err := lobbyRepo.ListQueueEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Restore persistence; the next join retries the formation.
	_, err = pool.Exec(ctx, `ALTER TABLE games_offline RENAME TO games`)
	require.NoError(t, err)

	outcome, err = svc.AddToQueue(ctx, 1, "main", 300)
	require.NoError(t, err)
	require.NotNil(t, outcome.Game)

	g := outcome.Game.Game
	assert.Equal(t, model.GameStateUndecided, g.State)
	assert.Equal(t, []int64{100, 200}, g.Queue)

	// The third player was past capacity and stays queued.
	assert.Equal(t, []int64{300}, svc.queues.Members(1, "main"))
	entries, err = lobbyRepo.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(300), entries[0].UserID)

	saved, err := repository.NewGameRepository(pool).GetActive(ctx, 1, "main")
	require.NoError(t, err)
	assert.Equal(t, g.GameID, saved.GameID)
}
