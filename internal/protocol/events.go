package protocol

import "time"

// SessionEvent is the envelope published on the bus and persisted to the
// timeline whenever a speech session changes state.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript carries a finished recognition result for subscribers that
// only care about text.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Final     bool      `json:"final"`
	Timestamp time.Time `json:"timestamp"`
}

// Event kinds recorded on the session timeline.
const (
	EventSessionOpened    = "session_opened"
	EventListeningStarted = "listening_started"
	EventListeningStopped = "listening_stopped"
	EventTranscriptFinal  = "transcript_final"
	EventSynthesis        = "synthesis"
	EventVoiceCloned      = "voice_cloned"
	EventVoiceRegistered  = "voice_registered"
	EventSessionClosed    = "session_closed"
)

const (
	SubjectSessionEvents   = "speech.session.events"
	SubjectTranscriptFinal = "speech.transcript.final"
)
