package client

import "sync"

// subscribers is a set of state listeners. Listeners are called outside the
// owning store's lock, in no particular order.
type subscribers[S any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(S)
}

func (s *subscribers[S]) add(fn func(S)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(S))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers[S]) notify(state S) {
	s.mu.Lock()
	fns := make([]func(S), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
