// Package inapp keeps staff notices in process memory. It backs the notice board when the
// service runs without a database.
package inapp

import (
	"context"
	"sort"
	"sync"

	"orderflow/internal/core/ports"
)

const defaultCapacity = 500

// Board holds at most capacity notices per audience; the oldest are evicted first.
type Board struct {
	mu       sync.RWMutex
	capacity int
	seen     map[string]struct{}
	byAud    map[string][]ports.Notice
}

func NewBoard(capacity int) *Board {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &Board{
		capacity: capacity,
		seen:     make(map[string]struct{}),
		byAud:    make(map[string][]ports.Notice),
	}
}

// Post stores notice unless a notice with the same key was already posted.
func (b *Board) Post(_ context.Context, notice ports.Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.seen[notice.Key]; ok {
		return nil
	}
	b.seen[notice.Key] = struct{}{}

	list := append(b.byAud[notice.Audience], notice)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if len(list) > b.capacity {
		for _, evicted := range list[:len(list)-b.capacity] {
			delete(b.seen, evicted.Key)
		}
		list = append([]ports.Notice(nil), list[len(list)-b.capacity:]...)
	}
	b.byAud[notice.Audience] = list
	return nil
}

// Recent lists the newest notices for audience, newest first. A limit below 1 returns all.
func (b *Board) Recent(_ context.Context, audience string, limit int) ([]ports.Notice, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.byAud[audience]
	n := len(list)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ports.Notice, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

var _ ports.NoticeBoard = (*Board)(nil)
