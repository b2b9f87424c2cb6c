package game

import (
	"errors"
	"testing"
	"time"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
	"discord-pug-bot/internal/team"
)

func undecidedGame(t *testing.T, team1, team2 []int64) *model.Game {
	t.Helper()
	lobby := &model.Lobby{GuildID: 1, LobbyRef: "main", PlayersPerTeam: len(team1)}
	formation := &team.Formation{Team1: team1, Team2: team2}
	queue := append(append([]int64(nil), team1...), team2...)
	return New(lobby, formation, 1, queue, model.PickOrderOne, time.Unix(0, 0))
}

// TestQuorumMet tests the half-rounding-up threshold.
func TestQuorumMet(t *testing.T) {
	tests := []struct {
		name     string
		teamSize int
		votes    int
		want     bool
	}{
		{"team of 3 with 1", 3, 1, false},
		{"team of 3 with 2", 3, 2, true},
		{"team of 4 with 1", 4, 1, false},
		{"team of 4 with 2", 4, 2, true},
		{"team of 1 with 1", 1, 1, true},
		{"team of 5 with 2", 5, 2, false},
		{"team of 5 with 3", 5, 3, true},
		{"empty team", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuorumMet(tt.teamSize, tt.votes); got != tt.want {
				t.Errorf("QuorumMet(%d, %d) = %v, want %v", tt.teamSize, tt.votes, got, tt.want)
			}
		})
	}
}

// TestWinVoteResolution tests a team voting itself the winner.
func TestWinVoteResolution(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2, 3}, []int64{4, 5, 6})

	res, err := CastVote(g, 1, model.VoteWin)
	if err != nil || res != nil {
		t.Fatalf("first vote: res=%v err=%v, want nil/nil", res, err)
	}

	res, err = CastVote(g, 2, model.VoteWin)
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if res == nil || res.State != model.GameStateDecided || res.WinningTeam != 1 {
		t.Fatalf("resolution = %+v, want decided for team 1", res)
	}
	if g.State != model.GameStateDecided || g.WinningTeam == nil || *g.WinningTeam != 1 {
		t.Errorf("game = state %s winner %v, want decided/1", g.State, g.WinningTeam)
	}
}

// TestLossVoteResolution tests that a loss quorum awards the other team.
func TestLossVoteResolution(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2, 3}, []int64{4, 5, 6})

	CastVote(g, 4, model.VoteLoss)
	res, err := CastVote(g, 5, model.VoteLoss)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res == nil || res.State != model.GameStateDecided || res.WinningTeam != 1 {
		t.Fatalf("resolution = %+v, want decided for team 1", res)
	}
}

// TestDrawVoteResolution tests a draw quorum.
func TestDrawVoteResolution(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2}, []int64{3, 4})

	// A team of two reaches quorum with a single vote.
	res, err := CastVote(g, 1, model.VoteDraw)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res == nil || res.State != model.GameStateDraw {
		t.Fatalf("resolution = %+v, want draw", res)
	}
	if g.State != model.GameStateDraw {
		t.Errorf("state = %s, want %s", g.State, model.GameStateDraw)
	}
}

// TestCancelVoteResolution tests a cancel quorum.
func TestCancelVoteResolution(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2, 3}, []int64{4, 5, 6})

	CastVote(g, 1, model.VoteCancel)
	res, err := CastVote(g, 2, model.VoteCancel)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res == nil || res.State != model.GameStateCanceled {
		t.Fatalf("resolution = %+v, want canceled", res)
	}
	if g.WinningTeam != nil {
		t.Errorf("canceled game has winner %d", *g.WinningTeam)
	}
}

// TestRevoteOverwrites tests that a player changing their vote replaces
// the old one instead of stacking.
func TestRevoteOverwrites(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2, 3}, []int64{4, 5, 6})

	CastVote(g, 1, model.VoteWin)
	res, err := CastVote(g, 1, model.VoteDraw)
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if res != nil {
		t.Fatalf("revote resolved the game: %+v", res)
	}
	if g.Votes[1] != model.VoteDraw {
		t.Errorf("vote = %s, want %s", g.Votes[1], model.VoteDraw)
	}
	if len(g.Votes) != 1 {
		t.Errorf("vote count = %d, want 1", len(g.Votes))
	}

	// The old win vote no longer counts toward any quorum.
	res, err = CastVote(g, 2, model.VoteWin)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res != nil {
		t.Errorf("stale vote contributed to quorum: %+v", res)
	}
}

// TestVoteRejections tests each rejection path.
func TestVoteRejections(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2, 3}, []int64{4, 5, 6})

	if _, err := CastVote(g, 99, model.VoteWin); !errors.Is(err, apperrors.ErrNotOnTeam) {
		t.Errorf("outsider vote = %v, want ErrNotOnTeam", err)
	}
	if _, err := CastVote(g, 1, model.Vote("maybe")); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("unknown vote = %v, want validation error", err)
	}

	picking := draftGame(t, 3, model.PickOrderOne, []int64{1, 2, 3, 4, 5, 6})
	if _, err := CastVote(picking, 1, model.VoteWin); !errors.Is(err, apperrors.ErrGameNotUndecided) {
		t.Errorf("vote while picking = %v, want ErrGameNotUndecided", err)
	}

	if err := Cancel(g); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := CastVote(g, 1, model.VoteWin); !errors.Is(err, apperrors.ErrGameFinished) {
		t.Errorf("vote on finished game = %v, want ErrGameFinished", err)
	}
}

// TestLifecycleTransitions tests the externally reported transitions.
func TestLifecycleTransitions(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2}, []int64{3, 4})

	if err := ReportResult(g, 3); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("ReportResult(3) = %v, want validation error", err)
	}
	if err := ReportResult(g, 2); err != nil {
		t.Fatalf("ReportResult: %v", err)
	}
	if g.State != model.GameStateDecided || *g.WinningTeam != 2 {
		t.Fatalf("game = %s/%v, want decided/2", g.State, g.WinningTeam)
	}
	if err := ReportResult(g, 1); !errors.Is(err, apperrors.ErrGameNotUndecided) {
		t.Errorf("ReportResult on decided game = %v, want ErrGameNotUndecided", err)
	}
	if err := Cancel(g); !errors.Is(err, apperrors.ErrGameFinished) {
		t.Errorf("Cancel on decided game = %v, want ErrGameFinished", err)
	}
}

// TestResetToUndecided tests the undo transition.
func TestResetToUndecided(t *testing.T) {
	g := undecidedGame(t, []int64{1, 2}, []int64{3, 4})

	if err := ResetToUndecided(g); !errors.Is(err, apperrors.ErrGameNotUndecided) {
		t.Errorf("reset of non-terminal game = %v, want ErrGameNotUndecided", err)
	}

	CastVote(g, 1, model.VoteWin)
	if g.State != model.GameStateDecided {
		t.Fatalf("state = %s, want decided", g.State)
	}

	if err := ResetToUndecided(g); err != nil {
		t.Fatalf("ResetToUndecided: %v", err)
	}
	if g.State != model.GameStateUndecided || g.WinningTeam != nil || len(g.Votes) != 0 {
		t.Errorf("reset game = state %s winner %v votes %v", g.State, g.WinningTeam, g.Votes)
	}

	// The game can resolve again after the reset.
	if _, err := CastVote(g, 3, model.VoteDraw); err != nil {
		t.Errorf("vote after reset: %v", err)
	}
}
