// Package game owns the per-game state machine: captain draft,
// vote-based resolution, and the allowed lifecycle transitions
// picking -> undecided -> {decided, draw, canceled}. Everything here is
// a synchronous, pure computation over the supplied game value; the
// caller persists and schedules.
package game

import (
	"time"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
	"discord-pug-bot/internal/team"
)

// New creates a game from a formed queue. Captain-mode formations start
// in the picking state with only the captains seated; the other modes
// start undecided with both teams complete.
func New(lobby *model.Lobby, formation *team.Formation, gameID int, queue []int64, pickOrder model.PickOrder, now time.Time) *model.Game {
	g := &model.Game{
		GuildID:   lobby.GuildID,
		LobbyRef:  lobby.LobbyRef,
		GameID:    gameID,
		PickOrder: pickOrder,
		Queue:     append([]int64(nil), queue...),
		Team1:     append([]int64(nil), formation.Team1...),
		Team2:     append([]int64(nil), formation.Team2...),
		Votes:     make(map[int64]model.Vote),
		CreatedAt: now,
	}
	if formation.NeedsDraft {
		c1, c2 := formation.Captain1, formation.Captain2
		g.Captain1 = &c1
		g.Captain2 = &c2
		g.State = model.GameStatePicking
	} else {
		g.State = model.GameStateUndecided
	}
	return g
}

// Cancel moves a game to canceled. Allowed from picking or undecided.
func Cancel(g *model.Game) error {
	if g.State.Terminal() {
		return apperrors.ErrGameFinished
	}
	g.State = model.GameStateCanceled
	return nil
}

// ReportResult records an externally decided outcome on an undecided
// game. winningTeam must be 1 or 2; use ReportDraw for draws.
func ReportResult(g *model.Game, winningTeam int) error {
	if g.State != model.GameStateUndecided {
		return apperrors.ErrGameNotUndecided
	}
	if winningTeam != 1 && winningTeam != 2 {
		return apperrors.Newf(apperrors.KindValidation, "winning team must be 1 or 2, got %d", winningTeam)
	}
	g.State = model.GameStateDecided
	g.WinningTeam = &winningTeam
	return nil
}

// ReportDraw records an externally decided draw on an undecided game.
func ReportDraw(g *model.Game) error {
	if g.State != model.GameStateUndecided {
		return apperrors.ErrGameNotUndecided
	}
	g.State = model.GameStateDraw
	return nil
}

// ResetToUndecided is the external undo transition: it returns a
// terminal game to undecided, clearing the recorded winner and all
// votes. Reversing already-applied score changes is the caller's
// concern.
func ResetToUndecided(g *model.Game) error {
	if !g.State.Terminal() {
		return apperrors.ErrGameNotUndecided
	}
	g.State = model.GameStateUndecided
	g.WinningTeam = nil
	g.Votes = make(map[int64]model.Vote)
	return nil
}
