// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/config"
	"discord-pug-bot/internal/game"
	"discord-pug-bot/internal/leaderboard"
	"discord-pug-bot/internal/model"
	"discord-pug-bot/internal/notify"
	"discord-pug-bot/internal/pkg/sched"
	"discord-pug-bot/internal/queue"
	"discord-pug-bot/internal/rating"
	"discord-pug-bot/internal/repository"
	"discord-pug-bot/internal/team"
)

// QueueStatus describes a lobby queue after a join or leave.
type QueueStatus struct {
	LobbyRef string
	Size     int
	Capacity int
}

// RankChangeState tells the presentation layer which role moves to
// make for one player after a resolution.
type RankChangeState struct {
	UserID      int64
	Change      model.RankChange
	RoleRef     string
	PrevRoleRef string
}

// GameResult is the full state snapshot handed back after a game
// transition, plus the rating output when the transition resolved it.
type GameResult struct {
	Game        *model.Game
	Updates     []model.ScoreUpdate
	RankChanges []RankChangeState
}

// JoinOutcome is the result of AddToQueue: either the queue is still
// filling (Game nil) or it reached capacity and a game was formed.
type JoinOutcome struct {
	Status QueueStatus
	Game   *GameResult
}

// MatchService drives the matchmaking flow: queue membership, team
// formation, the draft, voting, and rating application. Every mutating
// entry point is serialized per guild through the scheduler.
type MatchService struct {
	cfg       *config.Config
	scheduler *sched.Scheduler
	queues    *queue.Manager
	guildRepo *repository.GuildRepository
	players   *repository.PlayerRepository
	ranks     *repository.RankRepository
	lobbies   *repository.LobbyRepository
	games     *repository.GameRepository
	boards    *boards
	publisher notify.Publisher
}

// NewMatchService creates a new MatchService instance.
func NewMatchService(
	cfg *config.Config,
	scheduler *sched.Scheduler,
	queues *queue.Manager,
	guildRepo *repository.GuildRepository,
	players *repository.PlayerRepository,
	ranks *repository.RankRepository,
	lobbies *repository.LobbyRepository,
	games *repository.GameRepository,
	publisher notify.Publisher,
) *MatchService {
	return &MatchService{
		cfg:       cfg,
		scheduler: scheduler,
		queues:    queues,
		guildRepo: guildRepo,
		players:   players,
		ranks:     ranks,
		lobbies:   lobbies,
		games:     games,
		boards:    newBoards(cfg.Matchmaking.LeaderboardSize),
		publisher: publisher,
	}
}

// guildConfig loads a guild's stored configuration, falling back to the
// process-wide matchmaking defaults for unregistered guilds.
func (s *MatchService) guildConfig(ctx context.Context, guildID int64) (*model.GuildConfig, error) {
	cfg, err := s.guildRepo.GetConfig(ctx, guildID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrGuildNotFound) {
		return nil, err
	}
	mm := s.cfg.Matchmaking
	timeout := mm.QueueTimeout
	return &model.GuildConfig{
		GuildID:             guildID,
		DefaultWinModifier:  mm.DefaultWinModifier,
		DefaultLossModifier: mm.DefaultLossModifier,
		AllowNegativeScore:  mm.AllowNegativeScore,
		QueueTimeout:        &timeout,
	}, nil
}

// AddToQueue joins a player to a lobby queue. When the queue reaches
// capacity the game is formed immediately, inside the same serialized
// operation, so two fills cannot race.
func (s *MatchService) AddToQueue(ctx context.Context, guildID int64, lobbyRef string, userID int64) (*JoinOutcome, error) {
	var outcome *JoinOutcome
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		lobby, err := s.lobbies.Get(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}
		if _, err := s.players.Register(opCtx, guildID, userID); err != nil {
			return err
		}

		now := time.Now()
		full, err := s.queues.Join(lobby, userID, now)
		if err != nil {
			return err
		}
		if err := s.lobbies.AddQueueEntry(opCtx, &model.QueueEntry{
			GuildID: guildID, LobbyRef: lobbyRef, UserID: userID, JoinedAt: now,
		}); err != nil {
			return err
		}
		members := s.queues.Members(guildID, lobbyRef)
		status := QueueStatus{LobbyRef: lobbyRef, Size: len(members), Capacity: lobby.Capacity()}
		s.publisher.Publish(opCtx, notify.Event{
			Type:    notify.EventQueueJoined,
			GuildID: guildID,
			Payload: map[string]any{"lobbyRef": lobbyRef, "userId": userID, "size": status.Size},
		})

		if !full {
			outcome = &JoinOutcome{Status: status}
			return nil
		}

		result, err := s.formGame(opCtx, lobby, members)
		if err != nil {
			return err
		}
		outcome = &JoinOutcome{Status: status, Game: result}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// formGame turns a full queue into a game and persists it. Runs inside
// the guild's scheduler turn.
func (s *MatchService) formGame(ctx context.Context, lobby *model.Lobby, members []int64) (*GameResult, error) {
	// A queue can sit above capacity if an earlier formation attempt
	// failed after the trigger. Form from the head of the queue and
	// leave the rest waiting.
	formed := members
	if capacity := lobby.Capacity(); len(formed) > capacity {
		formed = formed[:capacity]
	}

	points, err := s.pointsLookup(ctx, lobby.GuildID, formed)
	if err != nil {
		return nil, err
	}

	formation, err := team.Form(formed, lobby.PlayersPerTeam, lobby.PickMode, points, nil)
	if err != nil {
		return nil, err
	}

	gameID, err := s.lobbies.NextGameID(ctx, lobby.GuildID, lobby.LobbyRef)
	if err != nil {
		return nil, err
	}

	g := game.New(lobby, formation, gameID, formed, s.pickOrder(), time.Now())

	// Persist the game before touching the queue so a failed save
	// leaves everyone queued for the next attempt.
	if err := s.games.Save(ctx, g); err != nil {
		return nil, err
	}

	if len(formed) == len(members) {
		s.queues.Drain(lobby.GuildID, lobby.LobbyRef)
		if err := s.lobbies.ClearQueue(ctx, lobby.GuildID, lobby.LobbyRef); err != nil {
			return nil, err
		}
	} else {
		for _, id := range formed {
			if err := s.queues.Leave(lobby.GuildID, lobby.LobbyRef, id); err != nil {
				return nil, err
			}
			if err := s.lobbies.RemoveQueueEntry(ctx, lobby.GuildID, lobby.LobbyRef, id); err != nil {
				return nil, err
			}
		}
	}

	log.Info().
		Int64("guild_id", lobby.GuildID).
		Str("lobby_ref", lobby.LobbyRef).
		Int("game_id", g.GameID).
		Str("state", string(g.State)).
		Msg("Game formed from full queue")

	s.publisher.Publish(ctx, notify.Event{
		Type:    notify.EventGameCreated,
		GuildID: lobby.GuildID,
		Payload: g,
	})
	s.publishDraftTurn(ctx, g)

	return &GameResult{Game: g}, nil
}

func (s *MatchService) pickOrder() model.PickOrder {
	if s.cfg.Matchmaking.PickOrder == string(model.PickOrderOne) {
		return model.PickOrderOne
	}
	return model.PickOrderTwo
}

// pointsLookup loads the named players' points and returns a lookup
// function for the team formation engine. Unregistered players count
// as zero points.
func (s *MatchService) pointsLookup(ctx context.Context, guildID int64, userIDs []int64) (team.PointsFunc, error) {
	players, err := s.players.GetMany(ctx, guildID, userIDs)
	if err != nil {
		return nil, err
	}
	return func(userID int64) int {
		if p, ok := players[userID]; ok {
			return p.Points
		}
		return 0
	}, nil
}

// LeaveQueue removes a player from a lobby queue.
func (s *MatchService) LeaveQueue(ctx context.Context, guildID int64, lobbyRef string, userID int64) (*QueueStatus, error) {
	var status *QueueStatus
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		lobby, err := s.lobbies.Get(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}
		if err := s.queues.Leave(guildID, lobbyRef, userID); err != nil {
			return err
		}
		if err := s.lobbies.RemoveQueueEntry(opCtx, guildID, lobbyRef, userID); err != nil {
			return err
		}
		size := len(s.queues.Members(guildID, lobbyRef))
		status = &QueueStatus{LobbyRef: lobbyRef, Size: size, Capacity: lobby.Capacity()}
		s.publisher.Publish(opCtx, notify.Event{
			Type:    notify.EventQueueLeft,
			GuildID: guildID,
			Payload: map[string]any{"lobbyRef": lobbyRef, "userId": userID, "size": size},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// SubmitPicks applies a captain's draft submission to the lobby's
// active game and reports whose turn is next.
func (s *MatchService) SubmitPicks(ctx context.Context, guildID int64, lobbyRef string, captainID int64, picks []int64) (*GameResult, error) {
	var result *GameResult
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		g, err := s.games.GetActive(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}
		if err := game.SubmitPicks(g, captainID, picks); err != nil {
			return err
		}
		if err := s.games.Save(opCtx, g); err != nil {
			return err
		}
		s.publishDraftTurn(opCtx, g)
		result = &GameResult{Game: g}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// publishDraftTurn announces the current draft turn for a picking game.
func (s *MatchService) publishDraftTurn(ctx context.Context, g *model.Game) {
	if g.State != model.GameStatePicking {
		return
	}
	next, err := game.NextCaptain(g)
	if err != nil {
		return
	}
	off, _ := game.OffCaptain(g)
	turn, _ := game.CurrentTurn(g)
	s.publisher.Publish(ctx, notify.Event{
		Type:    notify.EventDraftTurn,
		GuildID: g.GuildID,
		Payload: map[string]any{
			"lobbyRef":    g.LobbyRef,
			"gameId":      g.GameID,
			"nextCaptain": next,
			"offCaptain":  off,
			"pickCount":   turn.Count,
		},
	})
}

// CastVote records a player's outcome vote on the lobby's active game
// and, when the vote reaches quorum, resolves the game and applies the
// rating engine exactly once.
func (s *MatchService) CastVote(ctx context.Context, guildID int64, lobbyRef string, userID int64, vote model.Vote) (*GameResult, error) {
	var result *GameResult
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		g, err := s.games.GetActive(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}

		res, err := game.CastVote(g, userID, vote)
		if err != nil {
			return err
		}
		if res == nil {
			if err := s.games.Save(opCtx, g); err != nil {
				return err
			}
			result = &GameResult{Game: g}
			return nil
		}

		result, err = s.finalize(opCtx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReportResult is the admin override: it decides an undecided game
// without a vote. winningTeam 1 or 2 decides; 0 records a draw.
func (s *MatchService) ReportResult(ctx context.Context, guildID int64, lobbyRef string, winningTeam int) (*GameResult, error) {
	var result *GameResult
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		g, err := s.games.GetActive(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}
		if winningTeam == 0 {
			err = game.ReportDraw(g)
		} else {
			err = game.ReportResult(g, winningTeam)
		}
		if err != nil {
			return err
		}
		result, err = s.finalize(opCtx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelGame cancels the lobby's active game.
func (s *MatchService) CancelGame(ctx context.Context, guildID int64, lobbyRef string) (*GameResult, error) {
	var result *GameResult
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		g, err := s.games.GetActive(opCtx, guildID, lobbyRef)
		if err != nil {
			return err
		}
		if err := game.Cancel(g); err != nil {
			return err
		}
		result, err = s.finalize(opCtx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UndoGame reopens a terminal game as undecided so an admin can fix a
// mis-reported result. Already-applied score changes stay on the books;
// re-resolving writes new score updates.
func (s *MatchService) UndoGame(ctx context.Context, guildID int64, lobbyRef string, gameID int) (*GameResult, error) {
	var result *GameResult
	err := s.scheduler.Do(ctx, guildID, func(opCtx context.Context) error {
		g, err := s.games.Get(opCtx, guildID, lobbyRef, gameID)
		if err != nil {
			return err
		}
		if err := game.ResetToUndecided(g); err != nil {
			return err
		}
		if err := s.games.Save(opCtx, g); err != nil {
			return err
		}
		s.publisher.Publish(opCtx, notify.Event{
			Type:    notify.EventGameUndone,
			GuildID: guildID,
			Payload: map[string]any{"lobbyRef": lobbyRef, "gameId": gameID},
		})
		result = &GameResult{Game: g}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finalize persists a game that just reached a terminal state and, for
// decided and drawn games, runs the rating engine and commits players
// plus score updates atomically. Runs inside the guild's scheduler turn.
func (s *MatchService) finalize(ctx context.Context, g *model.Game) (*GameResult, error) {
	if err := s.games.Save(ctx, g); err != nil {
		return nil, err
	}

	switch g.State {
	case model.GameStateCanceled:
		s.publisher.Publish(ctx, notify.Event{
			Type:    notify.EventGameCanceled,
			GuildID: g.GuildID,
			Payload: map[string]any{"lobbyRef": g.LobbyRef, "gameId": g.GameID},
		})
		return &GameResult{Game: g}, nil
	case model.GameStateDecided, model.GameStateDraw:
	default:
		return nil, apperrors.ErrGameNotUndecided
	}

	guildCfg, err := s.guildConfig(ctx, g.GuildID)
	if err != nil {
		return nil, err
	}
	lobby, err := s.lobbies.Get(ctx, g.GuildID, g.LobbyRef)
	if err != nil {
		return nil, err
	}
	ranks, err := s.ranks.ListByGuild(ctx, g.GuildID)
	if err != nil {
		return nil, err
	}

	loaded, err := s.players.GetMany(ctx, g.GuildID, append(append([]int64(nil), g.Team1...), g.Team2...))
	if err != nil {
		return nil, err
	}
	team1, err := pickPlayers(loaded, g.Team1)
	if err != nil {
		return nil, err
	}
	team2, err := pickPlayers(loaded, g.Team2)
	if err != nil {
		return nil, err
	}

	var changes []rating.PlayerChange
	var updates []model.ScoreUpdate
	appendOutcome := func(outcome rating.Outcome, players []*model.Player) {
		ch, up := rating.ApplyOutcome(guildCfg, lobby, g, ranks, outcome, players)
		changes = append(changes, ch...)
		updates = append(updates, up...)
	}

	if g.State == model.GameStateDraw {
		appendOutcome(rating.OutcomeDraw, team1)
		appendOutcome(rating.OutcomeDraw, team2)
	} else if g.WinningTeam != nil && *g.WinningTeam == 1 {
		appendOutcome(rating.OutcomeWin, team1)
		appendOutcome(rating.OutcomeLoss, team2)
	} else {
		appendOutcome(rating.OutcomeWin, team2)
		appendOutcome(rating.OutcomeLoss, team1)
	}

	allPlayers := append(append([]*model.Player(nil), team1...), team2...)
	if err := s.players.ApplyResult(ctx, allPlayers, updates); err != nil {
		return nil, err
	}

	board, warm := s.boards.get(g.GuildID)
	if warm {
		for _, p := range allPlayers {
			board.Upsert(p.UserID, p.Points)
		}
	} else if err := s.rebuildBoard(ctx, g.GuildID, board); err != nil {
		log.Error().Err(err).Int64("guild_id", g.GuildID).Msg("Failed to rebuild leaderboard cache")
	}

	rankChanges := make([]RankChangeState, 0, len(changes))
	for _, c := range changes {
		state := RankChangeState{UserID: c.Player.UserID, Change: c.RankChange}
		if c.NewRank != nil {
			state.RoleRef = c.NewRank.RoleRef
		}
		if c.OldRank != nil {
			state.PrevRoleRef = c.OldRank.RoleRef
		}
		rankChanges = append(rankChanges, state)
		if c.RankChange != model.RankChangeNone {
			s.publisher.Publish(ctx, notify.Event{
				Type:    notify.EventRankChanged,
				GuildID: g.GuildID,
				Payload: state,
			})
		}
	}

	result := &GameResult{Game: g, Updates: updates, RankChanges: rankChanges}
	s.publisher.Publish(ctx, notify.Event{
		Type:    notify.EventGameResolved,
		GuildID: g.GuildID,
		Payload: result,
	})

	log.Info().
		Int64("guild_id", g.GuildID).
		Str("lobby_ref", g.LobbyRef).
		Int("game_id", g.GameID).
		Str("state", string(g.State)).
		Int("score_updates", len(updates)).
		Msg("Game resolved")

	return result, nil
}

// rebuildBoard fills a fresh leaderboard cache from storage.
func (s *MatchService) rebuildBoard(ctx context.Context, guildID int64, board *leaderboard.Cache) error {
	top, err := s.players.TopByPoints(ctx, guildID, s.cfg.Matchmaking.LeaderboardSize)
	if err != nil {
		return err
	}
	for _, p := range top {
		board.Upsert(p.UserID, p.Points)
	}
	return nil
}

func pickPlayers(loaded map[int64]*model.Player, ids []int64) ([]*model.Player, error) {
	players := make([]*model.Player, 0, len(ids))
	for _, id := range ids {
		p, ok := loaded[id]
		if !ok {
			return nil, fmt.Errorf("player %d: %w", id, repository.ErrPlayerNotFound)
		}
		players = append(players, p)
	}
	return players, nil
}

// RestoreQueues reloads persisted queue membership into the in-memory
// queue manager. Called once at startup, before any commands are
// served, so entries keep their original join times across restarts.
// Entries whose lobby no longer exists are dropped.
func (s *MatchService) RestoreQueues(ctx context.Context) (int, error) {
	entries, err := s.lobbies.ListQueueEntries(ctx)
	if err != nil {
		return 0, err
	}

	type lobbyKey struct {
		guildID  int64
		lobbyRef string
	}
	lobbies := make(map[lobbyKey]*model.Lobby)
	restored := 0
	for _, e := range entries {
		key := lobbyKey{e.GuildID, e.LobbyRef}
		lobby, ok := lobbies[key]
		if !ok {
			lobby, err = s.lobbies.Get(ctx, e.GuildID, e.LobbyRef)
			if errors.Is(err, repository.ErrLobbyNotFound) {
				lobbies[key] = nil
				continue
			}
			if err != nil {
				return restored, err
			}
			lobbies[key] = lobby
		}
		if lobby == nil {
			continue
		}
		if _, err := s.queues.Join(lobby, e.UserID, e.JoinedAt); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyInQueue) {
				continue
			}
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// SweepIdleQueues evicts queue entries older than each guild's timeout
// and notifies per guild asynchronously. Meant to run on a periodic
// ticker; the eviction itself is atomic within the queue manager, so
// the announcement work can bypass the per-guild serialization.
func (s *MatchService) SweepIdleQueues(ctx context.Context) ([]queue.Evicted, error) {
	timeouts := make(map[int64]*time.Duration)
	evicted := s.queues.EvictExpired(time.Now(), func(guildID int64) *time.Duration {
		if d, ok := timeouts[guildID]; ok {
			return d
		}
		cfg, err := s.guildConfig(ctx, guildID)
		if err != nil {
			log.Error().Err(err).Int64("guild_id", guildID).Msg("Failed to load guild config for sweep")
			timeouts[guildID] = nil
			return nil
		}
		timeouts[guildID] = cfg.QueueTimeout
		return cfg.QueueTimeout
	})

	for _, e := range evicted {
		e := e
		s.scheduler.Go(e.GuildID, func(opCtx context.Context) error {
			if err := s.lobbies.RemoveQueueEntry(opCtx, e.GuildID, e.LobbyRef, e.UserID); err != nil {
				return err
			}
			s.publisher.Publish(opCtx, notify.Event{
				Type:    notify.EventQueueEvicted,
				GuildID: e.GuildID,
				Payload: map[string]any{"lobbyRef": e.LobbyRef, "userId": e.UserID},
			})
			return nil
		})
	}
	if len(evicted) > 0 {
		log.Info().Int("evicted", len(evicted)).Msg("Idle queue sweep completed")
	}
	return evicted, nil
}
