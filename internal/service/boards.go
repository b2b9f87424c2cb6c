package service

import (
	"sync"

	"discord-pug-bot/internal/leaderboard"
)

// boards is the per-guild leaderboard cache registry. Caches are
// created lazily and torn down with the service, never held in package
// globals.
type boards struct {
	mu   sync.Mutex
	size int
	m    map[int64]*leaderboard.Cache
}

func newBoards(size int) *boards {
	return &boards{size: size, m: make(map[int64]*leaderboard.Cache)}
}

// get returns the guild's cache, creating it on first use. The second
// return reports whether the cache already existed; a fresh cache needs
// a rebuild from storage before it can answer reads.
func (b *boards) get(guildID int64) (*leaderboard.Cache, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.m[guildID]; ok {
		return c, true
	}
	c := leaderboard.New(b.size)
	b.m[guildID] = c
	return c, false
}
