package asr

// Session accumulates one connection's audio between start and stop
// control frames. It is owned exclusively by the connection's handler
// goroutine and needs no locking. A fresh session is already listening:
// clients may stream audio before sending their first explicit start.
type Session struct {
	ID        string
	listening bool
	buffer    []byte
}

func NewSession(id string) *Session {
	return &Session{ID: id, listening: true}
}

// Start clears the buffer and marks the session listening.
func (s *Session) Start() {
	s.buffer = s.buffer[:0]
	s.listening = true
}

// AppendFrame adds one binary frame to the buffer. Frames arriving while
// the session is not listening are dropped; the return value reports
// whether the frame was kept.
func (s *Session) AppendFrame(frame []byte) bool {
	if !s.listening {
		return false
	}
	s.buffer = append(s.buffer, frame...)
	return true
}

// Stop marks the session not-listening and hands the accumulated buffer
// to the caller. The session no longer references the returned bytes.
func (s *Session) Stop() []byte {
	s.listening = false
	out := s.buffer
	s.buffer = nil
	return out
}

func (s *Session) Listening() bool {
	return s.listening
}

// Buffered reports how many bytes the session has accumulated.
func (s *Session) Buffered() int {
	return len(s.buffer)
}
