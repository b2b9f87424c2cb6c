package team

import (
	"errors"
	"math/rand"
	"testing"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
)

func fixedPoints(m map[int64]int) PointsFunc {
	return func(userID int64) int { return m[userID] }
}

// TestFormInsufficientPlayers tests that every mode rejects a short queue.
func TestFormInsufficientPlayers(t *testing.T) {
	queue := []int64{1, 2, 3}
	modes := []model.PickMode{
		model.PickModeRandom,
		model.PickModeTryBalance,
		model.PickModeCaptainsHighest,
	}
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			_, err := Form(queue, 2, mode, fixedPoints(nil), nil)
			if !errors.Is(err, apperrors.ErrInsufficientPlayers) {
				t.Errorf("Form with 3 players = %v, want ErrInsufficientPlayers", err)
			}
		})
	}
}

// TestFormUnknownMode tests rejection of an unrecognized pick mode.
func TestFormUnknownMode(t *testing.T) {
	_, err := Form([]int64{1, 2, 3, 4}, 2, model.PickMode("bogus"), fixedPoints(nil), nil)
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("Form with unknown mode = %v, want validation error", err)
	}
}

// TestFormRandomSizes tests the split sizes and membership of random
// formation.
func TestFormRandomSizes(t *testing.T) {
	queue := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	rng := rand.New(rand.NewSource(42))

	f, err := Form(queue, 4, model.PickModeRandom, fixedPoints(nil), rng)
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	if len(f.Team1) != 4 || len(f.Team2) != 4 {
		t.Fatalf("team sizes = %d/%d, want 4/4", len(f.Team1), len(f.Team2))
	}
	if f.NeedsDraft {
		t.Error("random formation should not need a draft")
	}

	seen := make(map[int64]bool)
	for _, id := range append(append([]int64(nil), f.Team1...), f.Team2...) {
		if seen[id] {
			t.Errorf("user %d assigned twice", id)
		}
		seen[id] = true
	}
	for _, id := range queue {
		if !seen[id] {
			t.Errorf("user %d missing from formation", id)
		}
	}
}

// TestFormBalanced tests the snake-free greedy deal: sorted descending,
// each player to the smaller team, team 1 on ties.
func TestFormBalanced(t *testing.T) {
	queue := []int64{1, 2, 3, 4}
	points := fixedPoints(map[int64]int{1: 40, 2: 30, 3: 20, 4: 10})

	f, err := Form(queue, 2, model.PickModeTryBalance, points, nil)
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	// Deal order 1,2,3,4: 1->team1, 2->team2, then ties go team1.
	if len(f.Team1) != 2 || f.Team1[0] != 1 || f.Team1[1] != 3 {
		t.Errorf("Team1 = %v, want [1 3]", f.Team1)
	}
	if len(f.Team2) != 2 || f.Team2[0] != 2 || f.Team2[1] != 4 {
		t.Errorf("Team2 = %v, want [2 4]", f.Team2)
	}
}

// TestFormBalancedEqualPoints tests deterministic placement when every
// player has the same score.
func TestFormBalancedEqualPoints(t *testing.T) {
	queue := []int64{4, 3, 2, 1}
	points := fixedPoints(map[int64]int{1: 50, 2: 50, 3: 50, 4: 50})

	f, err := Form(queue, 2, model.PickModeTryBalance, points, nil)
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	// Equal points sort by user ID ascending, then alternate starting
	// with team 1.
	if f.Team1[0] != 1 || f.Team2[0] != 2 || f.Team1[1] != 3 || f.Team2[1] != 4 {
		t.Errorf("teams = %v / %v, want [1 3] / [2 4]", f.Team1, f.Team2)
	}
}

// TestFormOverCapacityQueue tests that formation only consumes the
// head of the queue: players past capacity stay out of both teams and
// the teams still come out exact-sized.
func TestFormOverCapacityQueue(t *testing.T) {
	queue := []int64{1, 2, 3, 4, 5, 6}
	points := fixedPoints(map[int64]int{1: 60, 2: 50, 3: 40, 4: 30, 5: 20, 6: 10})

	t.Run("random", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		f, err := Form(queue, 2, model.PickModeRandom, points, rng)
		if err != nil {
			t.Fatalf("Form: %v", err)
		}
		if len(f.Team1) != 2 || len(f.Team2) != 2 {
			t.Fatalf("team sizes = %d/%d, want 2/2", len(f.Team1), len(f.Team2))
		}
		for _, id := range append(append([]int64(nil), f.Team1...), f.Team2...) {
			if id == 5 || id == 6 {
				t.Errorf("user %d formed from beyond capacity", id)
			}
		}
	})

	t.Run("balanced", func(t *testing.T) {
		f, err := Form(queue, 2, model.PickModeTryBalance, points, nil)
		if err != nil {
			t.Fatalf("Form: %v", err)
		}
		// Only 1..4 are eligible: 1->team1, 2->team2, ties to team1.
		if len(f.Team1) != 2 || f.Team1[0] != 1 || f.Team1[1] != 3 {
			t.Errorf("Team1 = %v, want [1 3]", f.Team1)
		}
		if len(f.Team2) != 2 || f.Team2[0] != 2 || f.Team2[1] != 4 {
			t.Errorf("Team2 = %v, want [2 4]", f.Team2)
		}
	})
}

// TestFormCaptains tests that captain modes defer to the draft.
func TestFormCaptains(t *testing.T) {
	queue := []int64{1, 2, 3, 4, 5, 6}
	points := fixedPoints(map[int64]int{1: 10, 2: 60, 3: 30, 4: 40, 5: 50, 6: 20})

	f, err := Form(queue, 3, model.PickModeCaptainsHighest, points, nil)
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	if !f.NeedsDraft {
		t.Fatal("captain formation must need a draft")
	}
	if f.Captain1 != 2 || f.Captain2 != 5 {
		t.Errorf("captains = %d/%d, want 2/5", f.Captain1, f.Captain2)
	}
	if len(f.Team1) != 1 || f.Team1[0] != 2 {
		t.Errorf("Team1 = %v, want [2]", f.Team1)
	}
	if len(f.Team2) != 1 || f.Team2[0] != 5 {
		t.Errorf("Team2 = %v, want [5]", f.Team2)
	}
}

// TestSelectCaptainsRandomHighest tests that with four or more players
// the random-highest strategy draws from the top four only.
func TestSelectCaptainsRandomHighest(t *testing.T) {
	queue := []int64{1, 2, 3, 4, 5, 6}
	points := fixedPoints(map[int64]int{1: 60, 2: 50, 3: 40, 4: 30, 5: 20, 6: 10})
	top4 := map[int64]bool{1: true, 2: true, 3: true, 4: true}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		c1, c2, err := SelectCaptains(queue, model.PickModeCaptainsRandomHighest, points, rng)
		if err != nil {
			t.Fatalf("SelectCaptains: %v", err)
		}
		if c1 == c2 {
			t.Fatalf("captains collide: %d", c1)
		}
		if !top4[c1] || !top4[c2] {
			t.Fatalf("captains %d/%d outside top four", c1, c2)
		}
	}
}

// TestSelectCaptainsRandomHighestSmallQueue tests the fallback to the
// whole queue below four players.
func TestSelectCaptainsRandomHighestSmallQueue(t *testing.T) {
	queue := []int64{1, 2}
	rng := rand.New(rand.NewSource(7))
	c1, c2, err := SelectCaptains(queue, model.PickModeCaptainsRandomHighest, fixedPoints(nil), rng)
	if err != nil {
		t.Fatalf("SelectCaptains: %v", err)
	}
	if c1 == c2 {
		t.Errorf("captains collide: %d", c1)
	}
}

// TestSelectCaptainsRandom tests distinctness and queue membership.
func TestSelectCaptainsRandom(t *testing.T) {
	queue := []int64{10, 20, 30, 40}
	members := map[int64]bool{10: true, 20: true, 30: true, 40: true}
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 50; i++ {
		c1, c2, err := SelectCaptains(queue, model.PickModeCaptainsRandom, fixedPoints(nil), rng)
		if err != nil {
			t.Fatalf("SelectCaptains: %v", err)
		}
		if c1 == c2 || !members[c1] || !members[c2] {
			t.Fatalf("bad captains %d/%d", c1, c2)
		}
	}
}

// TestSelectCaptainsTooFew tests the two-player minimum.
func TestSelectCaptainsTooFew(t *testing.T) {
	_, _, err := SelectCaptains([]int64{1}, model.PickModeCaptainsRandom, fixedPoints(nil), nil)
	if !errors.Is(err, apperrors.ErrInsufficientPlayers) {
		t.Errorf("SelectCaptains with one player = %v, want ErrInsufficientPlayers", err)
	}
}
