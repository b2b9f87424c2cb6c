// Package leaderboard maintains a bounded top-K view of player scores.
// The cache is derived data: it is rebuilt or merged from player points
// and is never the authority on anything.
package leaderboard

import (
	"container/heap"
	"sort"
	"sync"

	"discord-pug-bot/internal/model"
)

// DefaultSize is the default bound K.
const DefaultSize = 100

type entry struct {
	userID int64
	score  int
	seq    int64 // insertion order, for stable ties
	index  int   // heap index, maintained by entryHeap
}

// entryHeap is a min-heap on score so the eviction candidate is always
// at the root. Equal scores order newest-first so ties evict the most
// recently inserted entry.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].seq > h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Cache is a bounded top-K score cache, safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	k      int
	byUser map[int64]*entry
	heap   entryHeap
	seq    int64
}

// New creates a cache bounded to k entries. A non-positive k falls back
// to DefaultSize.
func New(k int) *Cache {
	if k <= 0 {
		k = DefaultSize
	}
	return &Cache{
		k:      k,
		byUser: make(map[int64]*entry, k),
	}
}

// Upsert records a user's score. An existing user is updated in place.
// A new user is inserted if there is room, or if their score beats the
// current minimum, in which case the minimum is evicted. Anything else
// is ignored: the user is simply not in the top K.
func (c *Cache) Upsert(userID int64, score int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byUser[userID]; ok {
		e.score = score
		heap.Fix(&c.heap, e.index)
		return
	}

	if len(c.heap) < c.k {
		c.insert(userID, score)
		return
	}

	// Full: the heap root is the true current minimum, never a stale
	// tracking value.
	if score > c.heap[0].score {
		evicted := heap.Pop(&c.heap).(*entry)
		delete(c.byUser, evicted.userID)
		c.insert(userID, score)
	}
}

func (c *Cache) insert(userID int64, score int) {
	c.seq++
	e := &entry{userID: userID, score: score, seq: c.seq}
	c.byUser[userID] = e
	heap.Push(&c.heap, e)
}

// Remove drops a user from the cache if present.
func (c *Cache) Remove(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byUser[userID]; ok {
		heap.Remove(&c.heap, e.index)
		delete(c.byUser, userID)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.heap)
}

// TopK returns up to n entries sorted descending by score, with ties
// broken by insertion order. n is capped at the cache bound.
func (c *Cache) TopK(n int) []model.LeaderboardEntry {
	// Snapshot values while holding the lock; Upsert mutates entries in
	// place, so the sort must not touch the live heap entries.
	c.mu.RLock()
	entries := make([]entry, len(c.heap))
	for i, e := range c.heap {
		entries[i] = *e
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].seq < entries[j].seq
	})

	if n > c.k {
		n = c.k
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]model.LeaderboardEntry, 0, n)
	for _, e := range entries[:n] {
		out = append(out, model.LeaderboardEntry{UserID: e.userID, Score: e.score})
	}
	return out
}
