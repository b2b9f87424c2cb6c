// Package model defines the data models for the guild matchmaking bot.
package model

import "time"

// Player represents a guild member's competitive record. Players are
// owned by their guild and mutated exclusively through the rating engine.
type Player struct {
	GuildID      int64     `db:"guild_id"`
	UserID       int64     `db:"user_id"`
	Points       int       `db:"points"`
	Wins         int       `db:"wins"`
	Losses       int       `db:"losses"`
	Draws        int       `db:"draws"`
	RegisteredAt time.Time `db:"registered_at"`
}

// Games returns the total number of resolved games for the player.
func (p *Player) Games() int {
	return p.Wins + p.Losses + p.Draws
}

// Clamp enforces the write invariants: counters never go negative, and
// points stay at or above zero unless the guild allows negative scores.
func (p *Player) Clamp(allowNegativeScore bool) {
	if p.Wins < 0 {
		p.Wins = 0
	}
	if p.Losses < 0 {
		p.Losses = 0
	}
	if p.Draws < 0 {
		p.Draws = 0
	}
	if p.Points < 0 && !allowNegativeScore {
		p.Points = 0
	}
}

// Rank is a configured point threshold tied to a guild role, with
// optional per-rank overrides of the guild's win/loss modifiers.
// LossModifier is always stored as a non-negative magnitude.
type Rank struct {
	ID             int64  `db:"id"`
	GuildID        int64  `db:"guild_id"`
	RoleRef        string `db:"role_ref"`
	PointThreshold int    `db:"point_threshold"`
	WinModifier    *int   `db:"win_modifier"`
	LossModifier   *int   `db:"loss_modifier"`
}

// PickMode determines how a full queue is split into two teams.
type PickMode string

const (
	PickModeRandom     PickMode = "random"
	PickModeTryBalance PickMode = "try_balance"
	// Captain modes enter the picking state; the suffix selects the
	// captain selection strategy.
	PickModeCaptainsHighest       PickMode = "captains_highest_ranked"
	PickModeCaptainsRandom        PickMode = "captains_random"
	PickModeCaptainsRandomHighest PickMode = "captains_random_highest_ranked"
)

// IsCaptains reports whether the mode uses a captain draft.
func (m PickMode) IsCaptains() bool {
	switch m {
	case PickModeCaptainsHighest, PickModeCaptainsRandom, PickModeCaptainsRandomHighest:
		return true
	}
	return false
}

// Lobby is a named matchmaking queue within a guild.
type Lobby struct {
	GuildID           int64    `db:"guild_id"`
	LobbyRef          string   `db:"lobby_ref"`
	PlayersPerTeam    int      `db:"players_per_team"`
	PickMode          PickMode `db:"pick_mode"`
	Multiplier        float64  `db:"multiplier"`
	MultiplyLossValue bool     `db:"multiply_loss_value"`
	HighPointLimit    *int     `db:"high_point_limit"`
	ReductionFactor   float64  `db:"reduction_factor"`
	CurrentGameCount  int      `db:"current_game_count"`
}

// Capacity returns the queue size that triggers team formation.
func (l *Lobby) Capacity() int {
	return l.PlayersPerTeam * 2
}

// QueueEntry is a player waiting in a lobby queue.
type QueueEntry struct {
	GuildID  int64     `db:"guild_id"`
	LobbyRef string    `db:"lobby_ref"`
	UserID   int64     `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}

// GameState is the lifecycle state of a game.
type GameState string

const (
	GameStatePicking   GameState = "picking"
	GameStateUndecided GameState = "undecided"
	GameStateDraw      GameState = "draw"
	GameStateDecided   GameState = "decided"
	GameStateCanceled  GameState = "canceled"
)

// Terminal reports whether the state ends the game's lifecycle.
func (s GameState) Terminal() bool {
	return s == GameStateDecided || s == GameStateDraw || s == GameStateCanceled
}

// PickOrder selects the captain draft protocol.
type PickOrder string

const (
	// PickOrderOne alternates a single pick per turn.
	PickOrderOne PickOrder = "pick_one"
	// PickOrderTwo uses turn sizes 1,2,2 then alternating singles.
	PickOrderTwo PickOrder = "pick_two"
)

// Vote is a player's claimed outcome for an undecided game.
type Vote string

const (
	VoteWin    Vote = "win"
	VoteLoss   Vote = "loss"
	VoteDraw   Vote = "draw"
	VoteCancel Vote = "cancel"
)

// Game is a formed match within a lobby. GameID is monotonic per lobby.
type Game struct {
	GuildID     int64          `db:"guild_id"`
	LobbyRef    string         `db:"lobby_ref"`
	GameID      int            `db:"game_id"`
	State       GameState      `db:"state"`
	PickOrder   PickOrder      `db:"pick_order"`
	Picks       int            `db:"picks"`
	Queue       []int64        `db:"queue"`
	Team1       []int64        `db:"team1"`
	Team2       []int64        `db:"team2"`
	Captain1    *int64         `db:"captain1"`
	Captain2    *int64         `db:"captain2"`
	WinningTeam *int           `db:"winning_team"`
	Votes       map[int64]Vote `db:"votes"`
	CreatedAt   time.Time      `db:"created_at"`
}

// OnTeam1 reports whether the user is on team 1.
func (g *Game) OnTeam1(userID int64) bool { return containsID(g.Team1, userID) }

// OnTeam2 reports whether the user is on team 2.
func (g *Game) OnTeam2(userID int64) bool { return containsID(g.Team2, userID) }

// OnEitherTeam reports whether the user is on team 1 or team 2.
func (g *Game) OnEitherTeam(userID int64) bool {
	return g.OnTeam1(userID) || g.OnTeam2(userID)
}

// InQueue reports whether the user was part of the game's original queue.
func (g *Game) InQueue(userID int64) bool { return containsID(g.Queue, userID) }

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ScoreUpdate is the append-only audit record of a single player's
// point change from a resolved game.
type ScoreUpdate struct {
	ID        int64     `db:"id"`
	GuildID   int64     `db:"guild_id"`
	LobbyRef  string    `db:"lobby_ref"`
	GameID    int       `db:"game_id"`
	UserID    int64     `db:"user_id"`
	Delta     int       `db:"delta"`
	CreatedAt time.Time `db:"created_at"`
}

// GuildConfig holds a guild's matchmaking configuration.
type GuildConfig struct {
	GuildID             int64          `db:"guild_id"`
	DefaultWinModifier  int            `db:"default_win_modifier"`
	DefaultLossModifier int            `db:"default_loss_modifier"`
	AllowNegativeScore  bool           `db:"allow_negative_score"`
	QueueTimeout        *time.Duration `db:"queue_timeout"`
}

// RankChange classifies a player's rank transition after a result.
type RankChange string

const (
	RankChangeNone   RankChange = "none"
	RankChangeUp     RankChange = "rank_up"
	RankChangeDeRank RankChange = "derank"
)

// LeaderboardEntry is a derived (userID, score) pair; never authoritative.
type LeaderboardEntry struct {
	UserID int64 `json:"userId"`
	Score  int   `json:"score"`
}
