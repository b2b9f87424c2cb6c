package game

import (
	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
)

// Turn describes whose pick it is and how many players they owe.
type Turn struct {
	// Team is 1 or 2; the matching captain owns the turn.
	Team  int
	Count int
}

// CurrentTurn computes the active draft turn from the picks counter.
// The counter advances by the size of each accepted submission.
//
// PickOrderOne alternates single picks: even counter -> captain 1, odd
// -> captain 2.
//
// PickOrderTwo implements the 1,2,2,1,1,... turn sizes: the opening
// single (counter 0) goes to captain 1, captain 2 owes two at counter
// 1, captain 1 owes two at counter 3, and from counter 5 on it is
// plain alternation by parity. In play the counter runs 0,1,3,5,6,...;
// any other value falls through to the alternating phase.
func CurrentTurn(g *model.Game) (Turn, error) {
	if g.State != model.GameStatePicking {
		return Turn{}, apperrors.ErrGameNotPicking
	}

	switch g.PickOrder {
	case model.PickOrderTwo:
		switch g.Picks {
		case 0:
			return Turn{Team: 1, Count: 1}, nil
		case 1:
			return Turn{Team: 2, Count: 2}, nil
		case 3:
			return Turn{Team: 1, Count: 2}, nil
		}
		fallthrough
	default:
		if g.Picks%2 == 0 {
			return Turn{Team: 1, Count: 1}, nil
		}
		return Turn{Team: 2, Count: 1}, nil
	}
}

// NextCaptain returns the captain who owns the current turn.
func NextCaptain(g *model.Game) (int64, error) {
	turn, err := CurrentTurn(g)
	if err != nil {
		return 0, err
	}
	return captainForTeam(g, turn.Team), nil
}

// OffCaptain returns the captain waiting on the current turn. An even
// picks counter means captain 1 is picking, so captain 2 waits.
func OffCaptain(g *model.Game) (int64, error) {
	turn, err := CurrentTurn(g)
	if err != nil {
		return 0, err
	}
	if turn.Team == 1 {
		return captainForTeam(g, 2), nil
	}
	return captainForTeam(g, 1), nil
}

func captainForTeam(g *model.Game, teamNo int) int64 {
	if teamNo == 1 {
		if g.Captain1 != nil {
			return *g.Captain1
		}
	} else if g.Captain2 != nil {
		return *g.Captain2
	}
	return 0
}

// SubmitPicks applies one captain's draft submission. The submission
// must come from the captain who owns the turn, contain exactly the
// owed number of players, and name only unassigned members of the
// game's queue. On success the picks counter advances by the turn size
// and, once every non-captain queue member is seated, the game moves to
// undecided.
func SubmitPicks(g *model.Game, captainID int64, picks []int64) error {
	turn, err := CurrentTurn(g)
	if err != nil {
		return err
	}

	if captainID != captainForTeam(g, turn.Team) {
		return apperrors.ErrNotYourTurn
	}
	if len(picks) != turn.Count {
		return apperrors.ErrWrongPickCount
	}

	// Validate the whole submission before assigning anyone, so a bad
	// pick mutates nothing.
	seen := make(map[int64]bool, len(picks))
	for _, userID := range picks {
		if !g.InQueue(userID) {
			return apperrors.ErrPlayerNotInQueue
		}
		if g.OnEitherTeam(userID) || seen[userID] {
			return apperrors.ErrAlreadyPicked
		}
		seen[userID] = true
	}

	for _, userID := range picks {
		if turn.Team == 1 {
			g.Team1 = append(g.Team1, userID)
		} else {
			g.Team2 = append(g.Team2, userID)
		}
	}
	g.Picks += turn.Count

	if draftComplete(g) {
		g.State = model.GameStateUndecided
	}
	return nil
}

// draftComplete reports whether every queued player is on a team.
func draftComplete(g *model.Game) bool {
	for _, userID := range g.Queue {
		if !g.OnEitherTeam(userID) {
			return false
		}
	}
	return true
}

// Unassigned returns the queue members not yet picked, in queue order.
func Unassigned(g *model.Game) []int64 {
	var out []int64
	for _, userID := range g.Queue {
		if !g.OnEitherTeam(userID) {
			out = append(out, userID)
		}
	}
	return out
}
