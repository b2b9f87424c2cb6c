package game

import (
	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
)

// Resolution is the outcome of a vote that reached quorum.
type Resolution struct {
	State model.GameState
	// WinningTeam is 1 or 2 when State is decided, 0 otherwise.
	WinningTeam int
}

// QuorumMet reports whether enough of one team agrees on an outcome:
// at least half, rounding up, so a team of 3 needs 2 votes.
func QuorumMet(teamSize, votes int) bool {
	return teamSize > 0 && votes*2 >= teamSize
}

// CastVote records one player's claimed outcome on an undecided game
// and resolves the game if the vote reaches quorum. A repeat vote from
// the same player overwrites the previous one. Only players on a team
// may vote. The returned Resolution is non-nil exactly once per game:
// on the vote that triggers resolution.
func CastVote(g *model.Game, userID int64, vote model.Vote) (*Resolution, error) {
	if g.State.Terminal() {
		return nil, apperrors.ErrGameFinished
	}
	if g.State != model.GameStateUndecided {
		return nil, apperrors.ErrGameNotUndecided
	}
	if !g.OnEitherTeam(userID) {
		return nil, apperrors.ErrNotOnTeam
	}

	switch vote {
	case model.VoteWin, model.VoteLoss, model.VoteDraw, model.VoteCancel:
	default:
		return nil, apperrors.Newf(apperrors.KindValidation, "unknown vote %q", vote)
	}

	if g.Votes == nil {
		g.Votes = make(map[int64]model.Vote)
	}
	g.Votes[userID] = vote

	res := tally(g)
	if res == nil {
		return nil, nil
	}

	g.State = res.State
	if res.State == model.GameStateDecided {
		wt := res.WinningTeam
		g.WinningTeam = &wt
	}
	return res, nil
}

// tally checks both teams for a quorum, team 1 first and vote kinds in
// a fixed order, so resolution is deterministic when several quorums
// land on the same vote.
func tally(g *model.Game) *Resolution {
	teams := [][]int64{g.Team1, g.Team2}
	for teamIdx, members := range teams {
		teamNo := teamIdx + 1
		counts := make(map[model.Vote]int, 4)
		for _, userID := range members {
			if v, ok := g.Votes[userID]; ok {
				counts[v]++
			}
		}
		for _, vote := range []model.Vote{model.VoteWin, model.VoteLoss, model.VoteDraw, model.VoteCancel} {
			if !QuorumMet(len(members), counts[vote]) {
				continue
			}
			switch vote {
			case model.VoteWin:
				return &Resolution{State: model.GameStateDecided, WinningTeam: teamNo}
			case model.VoteLoss:
				return &Resolution{State: model.GameStateDecided, WinningTeam: 3 - teamNo}
			case model.VoteDraw:
				return &Resolution{State: model.GameStateDraw}
			case model.VoteCancel:
				return &Resolution{State: model.GameStateCanceled}
			}
		}
	}
	return nil
}
