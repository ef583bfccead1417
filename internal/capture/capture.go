// Package capture arms a streaming speech-recognition engine over the local
// microphone and delivers interim and final transcripts to a handler.
package capture

import (
	"errors"
	"io"
	"strings"
)

// ErrorCode classifies capture failures for the caller. Capture errors are
// the one failure class surfaced to the user rather than absorbed.
type ErrorCode string

const (
	CodeNoSpeech    ErrorCode = "NO_SPEECH"
	CodeNotAllowed  ErrorCode = "NOT_ALLOWED"
	CodeAborted     ErrorCode = "ABORTED"
	CodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Handler receives capture events. Interim text is advisory and may be
// revised; exactly one Final is delivered per utterance.
type Handler interface {
	Interim(text string)
	Final(text string, confidence float64)
	CaptureError(code ErrorCode, message string)
}

// Microphone is the exclusive audio input resource. It is held from a
// successful Start until Stop or error.
type Microphone interface {
	Start() error
	Stop() error
	Stream(w io.Writer) error
}

// StreamClient is a connected recognition stream: audio goes in through
// Write, transcripts come back through the callback the client was built
// with.
type StreamClient interface {
	io.Writer
	Connect() bool
	Stop()
}

// ErrAlreadyListening is returned by Start while a capture is armed; the
// microphone is exclusively owned and two captures must never run at once.
var ErrAlreadyListening = errors.New("capture: already listening")

// ErrUnavailable is returned when the recognition stream cannot be opened.
var ErrUnavailable = errors.New("capture: recognition engine unavailable")

func mapErrorCode(engineCode, description string) ErrorCode {
	s := strings.ToLower(engineCode + " " + description)
	switch {
	case strings.Contains(s, "auth"), strings.Contains(s, "permission"), strings.Contains(s, "forbidden"):
		return CodeNotAllowed
	case strings.Contains(s, "abort"):
		return CodeAborted
	default:
		return CodeUnavailable
	}
}
