// Package queue manages per-lobby join/leave and idle eviction. The
// manager is an explicit registry scoped to the guilds it is given;
// there is no ambient global state. It holds the in-memory working set
// only; the caller mirrors membership to storage.
package queue

import (
	"sync"
	"time"

	"discord-pug-bot/internal/apperrors"
	"discord-pug-bot/internal/model"
)

type lobbyKey struct {
	guildID  int64
	lobbyRef string
}

// Evicted identifies a queue entry removed by the idle sweep.
type Evicted struct {
	GuildID  int64
	LobbyRef string
	UserID   int64
}

// Manager tracks queue membership for every lobby it has seen.
type Manager struct {
	mu     sync.Mutex
	queues map[lobbyKey][]model.QueueEntry
}

// NewManager creates an empty queue registry.
func NewManager() *Manager {
	return &Manager{queues: make(map[lobbyKey][]model.QueueEntry)}
}

// Join adds a player to a lobby's queue. It returns true when the queue
// has reached the lobby's capacity and a game should be formed.
func (m *Manager) Join(lobby *model.Lobby, userID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lobbyKey{guildID: lobby.GuildID, lobbyRef: lobby.LobbyRef}
	entries := m.queues[key]
	for _, e := range entries {
		if e.UserID == userID {
			return false, apperrors.ErrAlreadyInQueue
		}
	}

	entries = append(entries, model.QueueEntry{
		GuildID:  lobby.GuildID,
		LobbyRef: lobby.LobbyRef,
		UserID:   userID,
		JoinedAt: now,
	})
	m.queues[key] = entries

	return len(entries) >= lobby.Capacity(), nil
}

// Leave removes a player from a lobby's queue.
func (m *Manager) Leave(guildID int64, lobbyRef string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lobbyKey{guildID: guildID, lobbyRef: lobbyRef}
	entries := m.queues[key]
	for i, e := range entries {
		if e.UserID == userID {
			m.queues[key] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrPlayerNotInQueue
}

// Entries returns a copy of a lobby's queue in join order.
func (m *Manager) Entries(guildID int64, lobbyRef string) []model.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.queues[lobbyKey{guildID: guildID, lobbyRef: lobbyRef}]
	return append([]model.QueueEntry(nil), entries...)
}

// Members returns a lobby's queued user IDs in join order.
func (m *Manager) Members(guildID int64, lobbyRef string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.queues[lobbyKey{guildID: guildID, lobbyRef: lobbyRef}]
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

// Drain empties a lobby's queue, returning the removed entries. Called
// when a game is formed from the queue.
func (m *Manager) Drain(guildID int64, lobbyRef string) []model.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := lobbyKey{guildID: guildID, lobbyRef: lobbyRef}
	entries := m.queues[key]
	delete(m.queues, key)
	return entries
}

// TimeoutFunc resolves the idle timeout for a guild. A nil return means
// the guild does not evict idle players.
type TimeoutFunc func(guildID int64) *time.Duration

// EvictExpired removes every entry whose join time plus the guild's
// timeout has passed, and returns the evicted pairs for the caller to
// notify. Intended to run from a periodic external trigger.
func (m *Manager) EvictExpired(now time.Time, timeoutFor TimeoutFunc) []Evicted {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []Evicted
	for key, entries := range m.queues {
		timeout := timeoutFor(key.guildID)
		if timeout == nil {
			continue
		}
		kept := entries[:0]
		for _, e := range entries {
			if e.JoinedAt.Add(*timeout).Before(now) {
				evicted = append(evicted, Evicted{
					GuildID:  e.GuildID,
					LobbyRef: e.LobbyRef,
					UserID:   e.UserID,
				})
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(m.queues, key)
		} else {
			m.queues[key] = kept
		}
	}
	return evicted
}
