package ratelimit

import "container/list"

// perIPLRU is a bounded least-recently-used map from source IP to
// per-IP state. Dcrd's lru package only tracks set membership, not
// associated values, so a value-carrying LRU needs its own small
// container/list-backed implementation (spec §4.2 step 3: "bounded by an
// LRU of at most K entries, evicting least-recently-active").
type perIPLRU struct {
	limit   int
	order   *list.List
	entries map[string]*list.Element
}

type lruEntry struct {
	ip    string
	state *perIPState
}

func newPerIPLRU(limit int) *perIPLRU {
	return &perIPLRU{
		limit:   limit,
		order:   list.New(),
		entries: make(map[string]*list.Element, limit),
	}
}

// getOrCreate returns the state for ip, creating it via newState if
// absent, and marks it most-recently-used. If creating a new entry would
// exceed limit, the least-recently-used entry is evicted first.
func (l *perIPLRU) getOrCreate(ip string, newState func() *perIPState) *perIPState {
	if el, ok := l.entries[ip]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*lruEntry).state
	}

	if l.limit > 0 && len(l.entries) >= l.limit {
		oldest := l.order.Back()
		if oldest != nil {
			l.order.Remove(oldest)
			delete(l.entries, oldest.Value.(*lruEntry).ip)
		}
	}

	state := newState()
	el := l.order.PushFront(&lruEntry{ip: ip, state: state})
	l.entries[ip] = el

	return state
}
