package server

import (
	"time"

	"github.com/dkoval/callbridge/internal/relay"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
	LanguageA string `json:"language_a"`
	LanguageB string `json:"language_b"`
}

type InterimEvent struct {
	Event
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type UtteranceEvent struct {
	Event
	SessionID string          `json:"session_id"`
	Utterance relay.Utterance `json:"utterance"`
}

type SpeakingEvent struct {
	Event
	SessionID string          `json:"session_id"`
	Utterance relay.Utterance `json:"utterance"`
}

type TurnEndedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Next      string `json:"next"`
}

type SessionEndedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	Duration  float64 `json:"duration"`
}

type CaptureErrorEvent struct {
	Event
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
