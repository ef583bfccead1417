package capture

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dkoval/callbridge/internal/transcript"
)

// ClientFactory opens a recognition stream for one capture. The adapter is
// handed over so the engine callback can feed events back in.
type ClientFactory func(ctx context.Context, language string, sampleRate int, a *Adapter) (StreamClient, error)

// Adapter owns the microphone and one recognition stream at a time. For
// continuous=false the adapter disarms itself after the first final
// transcript; for continuous=true it listens until Stop.
type Adapter struct {
	factory    ClientFactory
	mic        Microphone
	sampleRate int
	handler    Handler
	sink       io.Writer

	mu         sync.Mutex
	listening  bool
	continuous bool
	client     StreamClient
	cancel     context.CancelFunc
	buffer     fragmentBuffer
	lastFinal  string
}

type AdapterOption func(*Adapter)

// WithAudioSink tees the raw microphone stream into w, typically the call
// recorder.
func WithAudioSink(w io.Writer) AdapterOption {
	return func(a *Adapter) {
		a.sink = w
	}
}

func NewAdapter(factory ClientFactory, mic Microphone, sampleRate int, handler Handler, opts ...AdapterOption) *Adapter {
	a := &Adapter{factory: factory, mic: mic, sampleRate: sampleRate, handler: handler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start arms recognition for the given language. The microphone is held
// exclusively until Stop or a capture error.
func (a *Adapter) Start(language string, continuous bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listening {
		return ErrAlreadyListening
	}

	ctx, cancel := context.WithCancel(context.Background())

	client, err := a.factory(ctx, language, a.sampleRate, a)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ok := client.Connect(); !ok {
		cancel()
		return ErrUnavailable
	}

	if err := a.mic.Start(); err != nil {
		client.Stop()
		cancel()
		return fmt.Errorf("start microphone: %w", err)
	}

	a.client = client
	a.cancel = cancel
	a.continuous = continuous
	a.listening = true
	a.buffer = fragmentBuffer{}

	var w io.Writer = client
	if a.sink != nil {
		w = io.MultiWriter(client, a.sink)
	}
	go a.stream(ctx, w)

	return nil
}

// Stop disarms recognition and releases the microphone. Safe to call in
// any state.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return
	}
	a.listening = false
	client, cancel := a.client, a.cancel
	a.client, a.cancel = nil, nil
	a.buffer = fragmentBuffer{}
	a.mu.Unlock()

	cancel()
	_ = a.mic.Stop()
	client.Stop()
}

// Reset clears the last final transcript so an identical utterance can be
// delivered again.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = fragmentBuffer{}
	a.lastFinal = ""
}

func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

func (a *Adapter) stream(ctx context.Context, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := a.mic.Stream(w)
		if err == nil || ctx.Err() != nil {
			return
		}

		// PortAudio input overflow is transient; reopen the stream.
		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			time.Sleep(250 * time.Millisecond)
			continue
		}

		a.Stop()
		a.handler.CaptureError(CodeAborted, err.Error())
		return
	}
}

// engineInterim forwards a partial transcript for live display.
func (a *Adapter) engineInterim(text string) {
	text = strings.TrimSpace(text)
	if text == "" || !a.Listening() {
		return
	}
	a.handler.Interim(text)
}

// engineFinalFragment buffers one finalized piece of the utterance.
func (a *Adapter) engineFinalFragment(text string, confidence float64) {
	if strings.TrimSpace(text) == "" {
		return
	}
	a.mu.Lock()
	a.buffer.Add(transcript.Fragment{Text: text, Confidence: confidence})
	a.mu.Unlock()
}

// engineFlush closes out the current utterance: merges buffered fragments
// and delivers exactly one final transcript. A flush that merges to the
// same text as the previous final is a duplicate event and is dropped.
func (a *Adapter) engineFlush() {
	a.mu.Lock()
	if !a.listening {
		a.mu.Unlock()
		return
	}
	continuous := a.continuous
	fragments := a.buffer.Flush()
	text, confidence := transcript.Merge(fragments)
	if text != "" && text == a.lastFinal {
		text = ""
	}
	if text != "" {
		a.lastFinal = text
	}
	a.mu.Unlock()

	if text == "" {
		if !continuous && len(fragments) == 0 {
			a.Stop()
			a.handler.CaptureError(CodeNoSpeech, "no speech detected")
		}
		return
	}

	if !continuous {
		a.Stop()
	}
	a.handler.Final(text, confidence)
}

// engineError surfaces an engine failure and leaves listening false. The
// adapter does not retry on its own.
func (a *Adapter) engineError(code ErrorCode, message string) {
	a.Stop()
	a.handler.CaptureError(code, message)
}
