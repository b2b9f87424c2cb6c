// Package rating computes point deltas, rank transitions, and score
// updates from game outcomes. The engine is pure: it mutates only the
// Player values handed to it and performs no I/O, so callers decide how
// to persist the result.
package rating

import (
	"math"

	"discord-pug-bot/internal/model"
)

// Outcome is the result being applied to a set of players.
type Outcome int

const (
	OutcomeWin Outcome = iota
	OutcomeLoss
	// OutcomeDraw applies no modifier; only the draw counter moves.
	OutcomeDraw
)

// PlayerChange describes the effect of one outcome on one player.
type PlayerChange struct {
	Player     *model.Player
	Delta      int
	OldRank    *model.Rank
	NewRank    *model.Rank
	RankChange model.RankChange
}

// CurrentRank returns the rank with the highest threshold at or below
// points. Ranks must be sorted ascending by (threshold, id); at equal
// thresholds the later entry wins, so the scan keeps overwriting.
func CurrentRank(ranks []model.Rank, points int) *model.Rank {
	var current *model.Rank
	for i := range ranks {
		if ranks[i].PointThreshold <= points {
			current = &ranks[i]
		}
	}
	return current
}

// winDelta computes the point gain for a win at the given pre-update
// points, including the high-limit diminishing-returns reduction.
func winDelta(cfg *model.GuildConfig, lobby *model.Lobby, rank *model.Rank, prePoints int) int {
	modifier := cfg.DefaultWinModifier
	if rank != nil && rank.WinModifier != nil {
		modifier = *rank.WinModifier
	}
	delta := roundf(float64(modifier) * lobby.Multiplier)
	if lobby.HighPointLimit != nil && prePoints > *lobby.HighPointLimit {
		delta = roundf(float64(delta) * lobby.ReductionFactor)
	}
	return delta
}

// lossMagnitude computes the non-negative point loss for a defeat.
func lossMagnitude(cfg *model.GuildConfig, lobby *model.Lobby, rank *model.Rank) int {
	magnitude := cfg.DefaultLossModifier
	if rank != nil && rank.LossModifier != nil {
		magnitude = *rank.LossModifier
	}
	if lobby.MultiplyLossValue {
		magnitude = roundf(float64(magnitude) * lobby.Multiplier)
	}
	if magnitude < 0 {
		magnitude = 0
	}
	return magnitude
}

// ApplyOutcome applies one outcome to every given player and returns the
// per-player changes plus the audit records for the caller to persist
// atomically with the players. All deltas are computed before any player
// is mutated, so a result is always applied to all players or none.
func ApplyOutcome(
	cfg *model.GuildConfig,
	lobby *model.Lobby,
	game *model.Game,
	ranks []model.Rank,
	outcome Outcome,
	players []*model.Player,
) ([]PlayerChange, []model.ScoreUpdate) {
	changes := make([]PlayerChange, 0, len(players))
	for _, p := range players {
		oldRank := CurrentRank(ranks, p.Points)
		var delta int
		switch outcome {
		case OutcomeWin:
			delta = winDelta(cfg, lobby, oldRank, p.Points)
		case OutcomeLoss:
			delta = -lossMagnitude(cfg, lobby, oldRank)
		case OutcomeDraw:
			delta = 0
		}
		changes = append(changes, PlayerChange{Player: p, Delta: delta, OldRank: oldRank})
	}

	updates := make([]model.ScoreUpdate, 0, len(players))
	for i := range changes {
		c := &changes[i]
		p := c.Player

		p.Points += c.Delta
		switch outcome {
		case OutcomeWin:
			p.Wins++
		case OutcomeLoss:
			p.Losses++
		case OutcomeDraw:
			p.Draws++
		}
		p.Clamp(cfg.AllowNegativeScore)

		c.NewRank = CurrentRank(ranks, p.Points)
		c.RankChange = classify(outcome, c.OldRank, c.NewRank, p.Points)

		updates = append(updates, model.ScoreUpdate{
			GuildID:  game.GuildID,
			LobbyRef: game.LobbyRef,
			GameID:   game.GameID,
			UserID:   p.UserID,
			Delta:    c.Delta,
		})
	}
	return changes, updates
}

// classify maps an outcome and the before/after ranks to a transition.
func classify(outcome Outcome, oldRank, newRank *model.Rank, postPoints int) model.RankChange {
	switch outcome {
	case OutcomeWin:
		if newRank == nil {
			return model.RankChangeNone
		}
		if oldRank == nil || newRank.PointThreshold != oldRank.PointThreshold {
			return model.RankChangeUp
		}
	case OutcomeLoss:
		if oldRank != nil && postPoints < oldRank.PointThreshold {
			return model.RankChangeDeRank
		}
	}
	return model.RankChangeNone
}

// roundf rounds half away from zero, matching the modifier arithmetic
// the guild configs were tuned against.
func roundf(v float64) int {
	return int(math.Round(v))
}
