package datastore

// Subscribe registers a delta listener with the given channel buffer. The
// returned cancel function closes the channel and is safe to call twice.
// Subscribing to a closed store yields an already closed channel.
func (s *Store) Subscribe(buffer int) (<-chan Delta, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Delta, buffer)

	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close ends every subscription by closing its channel. Later deltas are
// not delivered to anyone.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active listeners.
func (s *Store) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

func (s *Store) publish(d Delta) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subs {
		select {
		case ch <- d:
		default:
			s.logger.Warn("Dropping delta for slow subscriber", "subscriber", id, "seq", d.Seq, "op", d.Op)
		}
	}
}
