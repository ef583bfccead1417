package synthesize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Audio is a synthesized payload ready for playback.
type Audio struct {
	Format string // "mp3" or "wav"
	Data   []byte
}

// Engine produces audio for text in a language. Engines are tried in
// order; a dropped utterance is worse than a lower-quality voice, so the
// last engine should be a locally available one.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, language, voiceID string) (Audio, error)
}

// Player plays at most one audio stream at a time. Play interrupts any
// stream already playing; Stop is idempotent.
type Player interface {
	Play(audio Audio, done func()) error
	Stop()
}

// ErrEmptyText is returned when asked to speak nothing.
var ErrEmptyText = errors.New("synthesize: empty text")

// ErrNoEngine is returned when every engine failed to produce audio.
var ErrNoEngine = errors.New("synthesize: all engines failed")

// Client runs the engine fallback chain and owns the playback slot.
// Calling Speak while audio is playing stops the previous stream first;
// overlapping translated audio is undesirable on a live call.
type Client struct {
	engines []Engine
	player  Player
	voices  VoiceTable

	mu sync.Mutex
}

func NewClient(engines []Engine, player Player, voices VoiceTable) *Client {
	if voices == nil {
		voices = DefaultVoices()
	}
	if player == nil {
		player = NopPlayer{}
	}
	return &Client{engines: engines, player: player, voices: voices}
}

// NopPlayer discards audio and reports completion immediately. It stands
// in when no output device is available so turns still complete.
type NopPlayer struct{}

func (NopPlayer) Play(_ Audio, done func()) error {
	if done != nil {
		done()
	}
	return nil
}

func (NopPlayer) Stop() {}

// Speak synthesizes text in the target language and starts playback,
// invoking done when playback completes. A done callback is not invoked
// for streams interrupted by a later Speak or by Stop.
func (c *Client) Speak(ctx context.Context, text, language, voiceHint string, done func(error)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	voice := c.voices.Pick(language, voiceHint)

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for _, engine := range c.engines {
		audio, err := engine.Synthesize(ctx, text, language, voice.ID)
		if err != nil {
			slog.Warn("synthesis engine failed", "engine", engine.Name(), "error", err)
			lastErr = err
			continue
		}

		c.player.Stop()
		if err := c.player.Play(audio, func() {
			if done != nil {
				done(nil)
			}
		}); err != nil {
			slog.Warn("playback failed", "engine", engine.Name(), "error", err)
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr == nil {
		return ErrNoEngine
	}
	return fmt.Errorf("%w: %v", ErrNoEngine, lastErr)
}

// Stop halts any playing audio. Safe to call at any time.
func (c *Client) Stop() {
	c.player.Stop()
}
