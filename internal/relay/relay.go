package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/callbridge/internal/transcript"
	"github.com/dkoval/callbridge/internal/translate"
)

// State is the relay's position in the capture -> translate -> speak
// cycle. All transitions run under one mutex, which is what enforces the
// at-most-one-utterance-in-flight invariant.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateTranslating
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateTranslating:
		return "translating"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Listener is the speech capture adapter as the relay sees it.
type Listener interface {
	Start(language string, continuous bool) error
	Stop()
	Reset()
	Listening() bool
}

// Speaker plays synthesized speech. done fires when playback completes;
// it is not invoked for streams interrupted by Stop.
type Speaker interface {
	Speak(ctx context.Context, text, language, voiceHint string, done func(error)) error
	Stop()
}

// Recorder captures the raw call audio alongside the session.
type Recorder interface {
	StartSession(sessionID string) error
	EndSession() (string, error)
}

// HistorySink persists sessions and their utterances. Append-only; the
// relay never reads back.
type HistorySink interface {
	CreateSession(id, languageA, languageB string, startedAt time.Time) error
	AppendUtterance(sessionID string, u Utterance) error
	EndSession(id string, endedAt time.Time, audioPath string) error
}

// EventBroadcaster fans relay progress out to observers.
type EventBroadcaster interface {
	BroadcastSessionStarted(sessionID, languageA, languageB string)
	BroadcastInterim(speaker Party, text string)
	BroadcastUtterance(sessionID string, u Utterance)
	BroadcastSpeaking(sessionID string, u Utterance)
	BroadcastTurnEnded(sessionID string, next Party)
	BroadcastSessionEnded(sessionID string, duration time.Duration)
	BroadcastCaptureError(code, message string)
}

// Limiter gates session creation for demo deployments.
type Limiter interface {
	Check(key string) (allowed bool, remaining int, err error)
	Refund(key string)
}

// Config tunes relay policy.
type Config struct {
	// TranslateTimeout bounds the translation stage so the relay cannot
	// sit in Translating forever. Zero means 15s.
	TranslateTimeout time.Duration
	// SpeakTimeout bounds synthesis plus playback. Zero means 30s.
	SpeakTimeout time.Duration
	// AutoAdvance flips the turn to the other party when playback
	// completes and keeps capture armed continuously. The default is
	// manual: each turn needs an explicit StartTurn.
	AutoAdvance bool
	// IdleTimeout ends the session after this much silence following a
	// completed turn. Zero disables. Only meaningful with AutoAdvance.
	IdleTimeout time.Duration
	// VoiceHintA and VoiceHintB bias voice selection when speaking each
	// party's translated speech.
	VoiceHintA string
	VoiceHintB string
}

func (c Config) translateTimeout() time.Duration {
	if c.TranslateTimeout <= 0 {
		return 15 * time.Second
	}
	return c.TranslateTimeout
}

func (c Config) speakTimeout() time.Duration {
	if c.SpeakTimeout <= 0 {
		return 30 * time.Second
	}
	return c.SpeakTimeout
}

// Relay sequences one utterance at a time through capture, translation,
// and playback, and owns the session state while doing it.
type Relay struct {
	listener   Listener
	translator translate.Translator
	speaker    Speaker
	recorder   Recorder
	sink       HistorySink
	events     EventBroadcaster
	estimator  transcript.QualityEstimator
	limiter    Limiter
	detector   *Detector
	cfg        Config

	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	state     State
	session   *Session
	startedAt time.Time
	inflight  *Utterance
	lastFinal string
	gen       uint64
}

type Option func(*Relay)

func WithEvents(events EventBroadcaster) Option {
	return func(r *Relay) { r.events = events }
}

func WithEstimator(est transcript.QualityEstimator) Option {
	return func(r *Relay) { r.estimator = est }
}

func WithLimiter(l Limiter) Option {
	return func(r *Relay) { r.limiter = l }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Relay) { r.recorder = rec }
}

func New(listener Listener, translator translate.Translator, speaker Speaker, sink HistorySink, cfg Config, opts ...Option) *Relay {
	r := &Relay{
		listener:   listener,
		translator: translator,
		speaker:    speaker,
		sink:       sink,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.IdleTimeout > 0 {
		r.detector = NewDetector(cfg.IdleTimeout)
		r.detector.OnSilence(func() {
			if err := r.Stop(); err != nil && err != ErrNoSession {
				slog.Warn("silence auto-stop failed", "error", err)
			}
		})
	}

	return r
}

// StartSession configures and activates a bridging session. The two
// languages must differ; equal languages would make every utterance a
// degenerate identity translation.
func (r *Relay) StartSession(languageA, languageB string) (string, error) {
	languageA = transcript.NormalizeTag(languageA)
	languageB = transcript.NormalizeTag(languageB)
	if languageA == "" || languageB == "" {
		return "", fmt.Errorf("relay: both session languages are required")
	}
	if transcript.SameLanguage(languageA, languageB) {
		return "", ErrSameLanguage
	}

	r.mu.Lock()
	if r.session != nil && r.session.Active {
		r.mu.Unlock()
		return "", ErrSessionActive
	}

	if r.limiter != nil {
		allowed, remaining, err := r.limiter.Check("sessions")
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("check session limit: %w", err)
		}
		if !allowed {
			r.mu.Unlock()
			return "", ErrLimitExceeded
		}
		_ = remaining
	}

	id := r.newID()
	startedAt := r.now().UTC()
	r.session = &Session{
		ID:          id,
		LanguageA:   languageA,
		LanguageB:   languageB,
		CurrentTurn: PartyA,
		Active:      true,
	}
	r.startedAt = startedAt
	r.state = StateIdle
	r.lastFinal = ""
	r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.CreateSession(id, languageA, languageB, startedAt); err != nil {
			r.mu.Lock()
			r.session = nil
			r.mu.Unlock()
			if r.limiter != nil {
				r.limiter.Refund("sessions")
			}
			return "", fmt.Errorf("create session: %w", err)
		}
	}

	if r.recorder != nil {
		if err := r.recorder.StartSession(id); err != nil {
			slog.Warn("call recorder unavailable", "error", err)
		}
	}

	if r.events != nil {
		r.events.BroadcastSessionStarted(id, languageA, languageB)
	}

	return id, nil
}

// StartTurn arms capture for the given speaker. Rejected unless the
// relay is idle: a turn already in flight must finish or be stopped
// first.
func (r *Relay) StartTurn(speaker Party) error {
	r.mu.Lock()
	if r.session == nil || !r.session.Active {
		r.mu.Unlock()
		return ErrNoSession
	}
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrNotIdle
	}

	r.session.CurrentTurn = speaker
	language := r.session.LanguageOf(speaker)
	r.state = StateArmed
	r.lastFinal = ""
	continuous := r.cfg.AutoAdvance
	r.mu.Unlock()

	if r.detector != nil {
		r.detector.OnActivity()
	}

	if err := r.listener.Start(language, continuous); err != nil {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
		return fmt.Errorf("arm capture: %w", err)
	}
	return nil
}

// Interim forwards a partial transcript for live display. It never
// advances the state machine.
func (r *Relay) Interim(text string) {
	r.mu.Lock()
	if r.state != StateArmed || r.session == nil {
		r.mu.Unlock()
		return
	}
	speaker := r.session.CurrentTurn
	r.mu.Unlock()

	if r.detector != nil {
		r.detector.OnActivity()
	}
	if r.events != nil {
		r.events.BroadcastInterim(speaker, text)
	}
}

// Final accepts a finalized transcript from the capture adapter and moves
// the utterance into translation. Duplicate deliveries of the same final
// text are dropped.
func (r *Relay) Final(text string, confidence float64) {
	text = strings.TrimSpace(text)

	r.mu.Lock()
	if r.state != StateArmed || r.session == nil {
		r.mu.Unlock()
		return
	}
	if text == "" || text == r.lastFinal {
		r.mu.Unlock()
		return
	}
	r.lastFinal = text

	quality := transcript.Quality{Confidence: confidence}
	if r.estimator != nil {
		quality = r.estimator.Estimate(text, confidence)
	}

	speaker := r.session.CurrentTurn
	utt := &Utterance{
		ID:         r.newID(),
		Speaker:    speaker,
		SourceText: text,
		SourceLang: r.session.LanguageOf(speaker),
		TargetLang: r.session.TargetOf(speaker),
		Confidence: quality.Confidence,
		Flags:      quality.Flags,
		Timestamp:  r.now().UTC(),
	}
	r.inflight = utt
	r.state = StateTranslating
	gen := r.gen
	r.mu.Unlock()

	if r.detector != nil {
		r.detector.OnActivity()
	}
	r.listener.Reset()

	go r.translateUtterance(gen, utt)
}

// CaptureError surfaces a capture failure. The turn does not advance; the
// caller retries explicitly.
func (r *Relay) CaptureError(code, message string) {
	r.mu.Lock()
	if r.state == StateArmed {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if r.events != nil {
		r.events.BroadcastCaptureError(code, message)
	}
}

func (r *Relay) translateUtterance(gen uint64, utt *Utterance) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.translateTimeout())
	defer cancel()

	res, err := r.translator.Translate(ctx, utt.SourceText, utt.SourceLang, utt.TargetLang)
	if err != nil {
		// The chain degrades internally; an error here means a caller bug
		// or a dead context. Fall back to marked passthrough so the
		// conversation still moves.
		slog.Error("translation failed hard, using passthrough", "error", err)
		res = translate.Result{
			TranslatedText: transcript.Marker(utt.TargetLang) + " " + utt.SourceText,
			Confidence:     0,
			Tier:           translate.TierPassthrough,
		}
	}

	r.translationReady(gen, utt, res)
}

func (r *Relay) translationReady(gen uint64, utt *Utterance, res translate.Result) {
	r.mu.Lock()
	if gen != r.gen || r.state != StateTranslating || r.inflight == nil || r.inflight.ID != utt.ID {
		r.mu.Unlock()
		return
	}

	utt.TranslatedText = res.TranslatedText
	utt.TranslationConfidence = res.Confidence
	utt.Tier = res.Tier
	r.session.History = append(r.session.History, *utt)
	r.state = StateSpeaking
	sessionID := r.session.ID
	hint := r.voiceHint(utt.Speaker)
	r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.AppendUtterance(sessionID, *utt); err != nil {
			slog.Warn("append utterance to history sink failed", "error", err)
		}
	}
	if r.events != nil {
		r.events.BroadcastUtterance(sessionID, *utt)
		r.events.BroadcastSpeaking(sessionID, *utt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.speakTimeout())
	watchdog := time.AfterFunc(r.cfg.speakTimeout(), func() {
		cancel()
		r.playbackComplete(gen, utt.ID)
	})

	err := r.speaker.Speak(ctx, utt.TranslatedText, utt.TargetLang, hint, func(error) {
		watchdog.Stop()
		cancel()
		r.playbackComplete(gen, utt.ID)
	})
	if err != nil {
		// Synthesis degradation is absorbed: the utterance is already in
		// history, the turn still completes.
		slog.Warn("speak failed", "error", err)
		watchdog.Stop()
		cancel()
		r.playbackComplete(gen, utt.ID)
	}
}

func (r *Relay) playbackComplete(gen uint64, uttID string) {
	r.mu.Lock()
	if gen != r.gen || r.state != StateSpeaking || r.inflight == nil || r.inflight.ID != uttID {
		r.mu.Unlock()
		return
	}

	r.inflight = nil
	r.state = StateIdle
	sessionID := r.session.ID
	next := r.session.CurrentTurn.Other()
	rearm := false
	nextLang := ""
	if r.cfg.AutoAdvance {
		r.session.CurrentTurn = next
		if r.listener.Listening() {
			r.state = StateArmed
			r.lastFinal = ""
			rearm = true
			nextLang = r.session.LanguageOf(next)
		}
	}
	r.mu.Unlock()

	if rearm {
		// The capture stream is still keyed to the previous speaker's
		// language. Restart it for the speaker whose turn it now is.
		r.listener.Stop()
		if err := r.listener.Start(nextLang, true); err != nil {
			slog.Warn("re-arm capture for next speaker failed", "error", err)
			r.mu.Lock()
			if r.gen == gen && r.state == StateArmed {
				r.state = StateIdle
			}
			r.mu.Unlock()
		}
	}

	if r.detector != nil {
		r.detector.OnTurnEnded()
	}
	if r.events != nil {
		r.events.BroadcastTurnEnded(sessionID, next)
	}
}

// Stop is the session-level cancellation path: safe from any state, it
// cancels whatever is in flight, releases the microphone, halts playback,
// and closes out the session. In-flight translation results arriving
// afterwards are discarded.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if r.session == nil || !r.session.Active {
		r.mu.Unlock()
		return ErrNoSession
	}

	r.gen++
	r.state = StateIdle
	r.inflight = nil
	r.lastFinal = ""
	r.session.Active = false
	sessionID := r.session.ID
	startedAt := r.startedAt
	r.mu.Unlock()

	if r.detector != nil {
		r.detector.Cancel()
	}
	r.listener.Stop()
	r.speaker.Stop()

	endedAt := r.now().UTC()
	audioPath := ""
	if r.recorder != nil {
		path, err := r.recorder.EndSession()
		if err != nil {
			slog.Warn("end call recording failed", "error", err)
		} else {
			audioPath = path
		}
	}

	if r.sink != nil {
		if err := r.sink.EndSession(sessionID, endedAt, audioPath); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
	}

	if r.events != nil {
		r.events.BroadcastSessionEnded(sessionID, endedAt.Sub(startedAt))
	}
	return nil
}

// State returns the relay's current state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns a copy of the current session, or nil when none has
// been configured.
func (r *Relay) Snapshot() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	return r.session.snapshot()
}

func (r *Relay) voiceHint(speaker Party) string {
	if speaker == PartyA {
		return r.cfg.VoiceHintA
	}
	return r.cfg.VoiceHintB
}
