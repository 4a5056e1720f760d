package memory

import (
	"sort"

	"github.com/google/uuid"
)

type row[T any] struct {
	seq   int64
	value T
}

// table keeps rows in insertion order so listings are stable even when
// timestamps collide.
type table[T any] struct {
	rows map[uuid.UUID]row[T]
	next int64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[uuid.UUID]row[T])}
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{rows: make(map[uuid.UUID]row[T], len(t.rows)), next: t.next}
	for id, r := range t.rows {
		c.rows[id] = r
	}
	return c
}

func (t *table[T]) get(id uuid.UUID) (T, bool) {
	r, ok := t.rows[id]
	return r.value, ok
}

func (t *table[T]) put(id uuid.UUID, value T) {
	r, ok := t.rows[id]
	if !ok {
		t.next++
		r.seq = t.next
	}
	r.value = value
	t.rows[id] = r
}

func (t *table[T]) list(keep func(T) bool) []T {
	matched := make([]row[T], 0)
	for _, r := range t.rows {
		if keep(r.value) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]T, len(matched))
	for i, r := range matched {
		out[i] = r.value
	}
	return out
}
