// Package team turns a full lobby queue into two teams. It has no
// knowledge of games or persistence; callers supply the queue, the pick
// mode, and a point lookup for the skill-aware modes.
package team

import (
	"math/rand"
	"sort"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
)

// PointsFunc looks up a player's current points.
type PointsFunc func(userID int64) int

// Formation is the outcome of forming teams from a queue. For captain
// modes only the captains are assigned and NeedsDraft is set; the rest
// of the queue is filled in by the draft protocol.
type Formation struct {
	Team1      []int64
	Team2      []int64
	Captain1   int64
	Captain2   int64
	NeedsDraft bool
}

// Form splits queue into two teams of playersPerTeam according to mode.
// Only the first playersPerTeam*2 members are formed; anyone past that
// stays with the caller. rng may be nil, in which case the shared
// source is used.
func Form(queue []int64, playersPerTeam int, mode model.PickMode, points PointsFunc, rng *rand.Rand) (*Formation, error) {
	if len(queue) < playersPerTeam*2 {
		return nil, apperrors.ErrInsufficientPlayers
	}
	queue = queue[:playersPerTeam*2]

	switch mode {
	case model.PickModeRandom:
		return formRandom(queue, playersPerTeam, rng), nil
	case model.PickModeTryBalance:
		return formBalanced(queue, playersPerTeam, points), nil
	default:
		if !mode.IsCaptains() {
			return nil, apperrors.Newf(apperrors.KindValidation, "unknown pick mode %q", mode)
		}
		c1, c2, err := SelectCaptains(queue, mode, points, rng)
		if err != nil {
			return nil, err
		}
		return &Formation{
			Team1:      []int64{c1},
			Team2:      []int64{c2},
			Captain1:   c1,
			Captain2:   c2,
			NeedsDraft: true,
		}, nil
	}
}

// formRandom shuffles the queue and deals the first half to team 1.
func formRandom(queue []int64, playersPerTeam int, rng *rand.Rand) *Formation {
	shuffled := append([]int64(nil), queue...)
	shuffle(shuffled, rng)
	return &Formation{
		Team1: shuffled[:playersPerTeam],
		Team2: shuffled[playersPerTeam : playersPerTeam*2],
	}
}

// formBalanced sorts by points descending and deals each player to the
// smaller team, team 1 on ties.
func formBalanced(queue []int64, playersPerTeam int, points PointsFunc) *Formation {
	sorted := sortByPointsDesc(queue, points)
	team1 := make([]int64, 0, playersPerTeam)
	team2 := make([]int64, 0, playersPerTeam)
	for _, id := range sorted {
		switch {
		case len(team1) >= playersPerTeam:
			team2 = append(team2, id)
		case len(team2) >= playersPerTeam:
			team1 = append(team1, id)
		case len(team2) < len(team1):
			team2 = append(team2, id)
		default:
			team1 = append(team1, id)
		}
	}
	return &Formation{Team1: team1, Team2: team2}
}

// SelectCaptains picks the two captains for a captain-mode queue.
func SelectCaptains(queue []int64, mode model.PickMode, points PointsFunc, rng *rand.Rand) (int64, int64, error) {
	if len(queue) < 2 {
		return 0, 0, apperrors.ErrInsufficientPlayers
	}

	switch mode {
	case model.PickModeCaptainsHighest:
		sorted := sortByPointsDesc(queue, points)
		return sorted[0], sorted[1], nil

	case model.PickModeCaptainsRandomHighest:
		if len(queue) >= 4 {
			top := sortByPointsDesc(queue, points)[:4]
			return pickTwo(top, rng)
		}
		return pickTwo(queue, rng)

	case model.PickModeCaptainsRandom:
		return pickTwo(queue, rng)

	default:
		return 0, 0, apperrors.Newf(apperrors.KindValidation, "pick mode %q has no captains", mode)
	}
}

// pickTwo returns two distinct uniformly random members of pool.
func pickTwo(pool []int64, rng *rand.Rand) (int64, int64, error) {
	if len(pool) < 2 {
		return 0, 0, apperrors.ErrInsufficientPlayers
	}
	shuffled := append([]int64(nil), pool...)
	shuffle(shuffled, rng)
	return shuffled[0], shuffled[1], nil
}

// sortByPointsDesc returns a copy of queue sorted by points descending,
// with user ID as a deterministic tie-break.
func sortByPointsDesc(queue []int64, points PointsFunc) []int64 {
	sorted := append([]int64(nil), queue...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := points(sorted[i]), points(sorted[j])
		if pi != pj {
			return pi > pj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func shuffle(ids []int64, rng *rand.Rand) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if rng != nil {
		rng.Shuffle(len(ids), swap)
		return
	}
	rand.Shuffle(len(ids), swap)
}
