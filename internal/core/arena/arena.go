package arena

// Arena owns a handle pool, the stores attached to it and a queue of handles
// waiting to be released. Nothing in it is safe for concurrent use.
type Arena struct {
	pool    *Pool
	stores  []Removable
	pending []Handle
	queued  map[Handle]struct{}
}

func New() *Arena {
	return &Arena{
		pool:    NewPool(),
		stores:  make([]Removable, 0, 8),
		pending: make([]Handle, 0, 32),
		queued:  make(map[Handle]struct{}, 32),
	}
}

// Attach registers a store whose entries are dropped when a handle is released.
func (a *Arena) Attach(s Removable) {
	a.stores = append(a.stores, s)
}

func (a *Arena) Create() Handle      { return a.pool.Acquire() }
func (a *Arena) Alive(h Handle) bool { return a.pool.Alive(h) }
func (a *Arena) Len() int            { return a.pool.Len() }
func (a *Arena) Pending() int        { return len(a.pending) }

func (a *Arena) IsPending(h Handle) bool {
	_, ok := a.queued[h]
	return ok
}

// Defer queues h for release at the next Flush. Queuing twice is a no-op.
func (a *Arena) Defer(h Handle) bool {
	if !a.pool.Alive(h) {
		return false
	}
	if _, ok := a.queued[h]; ok {
		return false
	}
	a.queued[h] = struct{}{}
	a.pending = append(a.pending, h)
	return true
}

// Destroy releases h immediately and clears it from every attached store.
func (a *Arena) Destroy(h Handle) bool {
	if !a.pool.Alive(h) {
		return false
	}
	for _, s := range a.stores {
		s.Remove(h)
	}
	delete(a.queued, h)
	return a.pool.Release(h)
}

// Flush releases every queued handle in queue order. before runs for each
// handle while it is still alive; handles it queues are released in the same
// Flush. It returns the number of handles released.
func (a *Arena) Flush(before func(Handle)) int {
	n := 0
	for len(a.pending) > 0 {
		batch := a.pending
		a.pending = make([]Handle, 0, len(batch))
		for _, h := range batch {
			if before != nil && a.pool.Alive(h) {
				before(h)
			}
			if a.Destroy(h) {
				n++
			}
		}
	}
	return n
}
