// Package main is the entry point for the guild matchmaking bot core.
// It wires storage, the per-guild scheduler, and the matchmaking
// services, then runs the idle-queue sweep until shut down. Chat
// transport is a separate process subscribed to the event channel.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"discord-pug-bot/internal/config"
	"discord-pug-bot/internal/notify"
	"discord-pug-bot/internal/pkg/db"
	"discord-pug-bot/internal/pkg/sched"
	"discord-pug-bot/internal/queue"
	"discord-pug-bot/internal/repository"
	"discord-pug-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Event publisher; the presentation layer subscribes to this channel
	var publisher notify.Publisher = notify.NopPublisher{}
	redisClient, err := db.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, events will not be published")
	} else {
		defer redisClient.Close()
		publisher = notify.NewRedisPublisher(redisClient, cfg.Redis.Channel)
	}

	// Initialize repositories
	guildRepo := repository.NewGuildRepository(dbPool.Pool)
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	rankRepo := repository.NewRankRepository(dbPool.Pool)
	lobbyRepo := repository.NewLobbyRepository(dbPool.Pool)
	gameRepo := repository.NewGameRepository(dbPool.Pool)
	scoreRepo := repository.NewScoreUpdateRepository(dbPool.Pool)

	// Per-guild operation scheduler
	scheduler := sched.New(
		sched.WithTimeout(cfg.Scheduler.OpTimeout),
		sched.WithMaxDepth(cfg.Scheduler.MaxDepth),
	)
	defer scheduler.Close()

	queues := queue.NewManager()

	matchService := service.NewMatchService(
		cfg, scheduler, queues,
		guildRepo, playerRepo, rankRepo, lobbyRepo, gameRepo,
		publisher,
	)
	restored, err := matchService.RestoreQueues(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to restore queue membership")
	}
	if restored > 0 {
		log.Info().Int("entries", restored).Msg("Restored queue membership")
	}

	rankingService := service.NewRankingService(matchService, playerRepo, rankRepo, scoreRepo)

	// Warm the leaderboard caches so the first read per guild does not
	// pay the rebuild inside a command.
	guildIDs, err := guildRepo.ListGuildIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list guilds")
	}
	for _, guildID := range guildIDs {
		if _, err := rankingService.Leaderboard(ctx, guildID, cfg.Matchmaking.LeaderboardSize); err != nil {
			log.Error().Err(err).Int64("guild_id", guildID).Msg("Failed to warm leaderboard cache")
		}
	}
	if len(guildIDs) > 0 {
		log.Info().Int("guilds", len(guildIDs)).Msg("Leaderboard caches warmed")
	}

	// Idle-queue sweep
	sweepTicker := time.NewTicker(cfg.Matchmaking.SweepInterval)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.C:
				if _, err := matchService.SweepIdleQueues(ctx); err != nil {
					log.Error().Err(err).Msg("Idle queue sweep failed")
				}
			}
		}
	}()

	log.Info().
		Dur("sweep_interval", cfg.Matchmaking.SweepInterval).
		Dur("op_timeout", cfg.Scheduler.OpTimeout).
		Msg("Matchmaking core is running")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	log.Info().Msg("Matchmaking core stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: guilds table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS guilds (
			guild_id BIGINT PRIMARY KEY,
			default_win_modifier INT NOT NULL DEFAULT 10,
			default_loss_modifier INT NOT NULL DEFAULT 5 CHECK (default_loss_modifier >= 0),
			allow_negative_score BOOLEAN NOT NULL DEFAULT FALSE,
			queue_timeout_seconds BIGINT
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: guilds table created")

	// Migration 2: players table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			guild_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			points INT NOT NULL DEFAULT 0,
			wins INT NOT NULL DEFAULT 0 CHECK (wins >= 0),
			losses INT NOT NULL DEFAULT 0 CHECK (losses >= 0),
			draws INT NOT NULL DEFAULT 0 CHECK (draws >= 0),
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_players_points ON players(guild_id, points DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: players table created")

	// Migration 3: ranks table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ranks (
			id BIGSERIAL PRIMARY KEY,
			guild_id BIGINT NOT NULL,
			role_ref VARCHAR(255) NOT NULL,
			point_threshold INT NOT NULL,
			win_modifier INT,
			loss_modifier INT CHECK (loss_modifier IS NULL OR loss_modifier >= 0)
		);
		CREATE INDEX IF NOT EXISTS idx_ranks_guild ON ranks(guild_id, point_threshold);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: ranks table created")

	// Migration 4: lobbies table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lobbies (
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
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: lobbies table created")

	// Migration 5: queue_entries mirror of the in-memory queues
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS queue_entries (
			guild_id BIGINT NOT NULL,
			lobby_ref VARCHAR(255) NOT NULL,
			user_id BIGINT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (guild_id, lobby_ref, user_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: queue_entries table created")

	// Migration 6: games table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
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
		);
		CREATE INDEX IF NOT EXISTS idx_games_active ON games(guild_id, lobby_ref, game_id DESC)
			WHERE state IN ('picking', 'undecided');
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: games table created")

	// Migration 7: score_updates audit trail
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS score_updates (
			id BIGSERIAL PRIMARY KEY,
			guild_id BIGINT NOT NULL,
			lobby_ref VARCHAR(255) NOT NULL,
			game_id INT NOT NULL,
			user_id BIGINT NOT NULL,
			delta INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_score_updates_user ON score_updates(guild_id, user_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_score_updates_game ON score_updates(guild_id, lobby_ref, game_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: score_updates table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
