package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/dkoval/callbridge/internal/audio"
	"github.com/dkoval/callbridge/internal/backup"
	"github.com/dkoval/callbridge/internal/capture"
	"github.com/dkoval/callbridge/internal/config"
	"github.com/dkoval/callbridge/internal/ratelimit"
	"github.com/dkoval/callbridge/internal/relay"
	"github.com/dkoval/callbridge/internal/server"
	"github.com/dkoval/callbridge/internal/storage"
	"github.com/dkoval/callbridge/internal/synthesize"
	"github.com/dkoval/callbridge/internal/transcript"
	"github.com/dkoval/callbridge/internal/translate"
)

//go:embed static/*
var staticFiles embed.FS

const micFramesPerBuffer = 1024

// relayHandler bridges capture events into the relay.
type relayHandler struct {
	relay *relay.Relay
}

func (h *relayHandler) Interim(text string) {
	h.relay.Interim(text)
}

func (h *relayHandler) Final(text string, confidence float64) {
	h.relay.Final(text, confidence)
}

func (h *relayHandler) CaptureError(code capture.ErrorCode, message string) {
	h.relay.CaptureError(string(code), message)
}

// unavailableListener stands in when no microphone or speech engine could
// be opened, so the API and history UI still run.
type unavailableListener struct{}

func (unavailableListener) Start(string, bool) error {
	return capture.ErrUnavailable
}

func (unavailableListener) Stop()           {}
func (unavailableListener) Reset()          {}
func (unavailableListener) Listening() bool { return false }

func main() {
	log.Println("callbridge: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	writer := storage.NewWriter(cfg.TranscriptDir)
	history := &storage.History{Store: store, Writer: writer}

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub()
	callRecorder := audio.NewRecorder(cfg.AudioDir)

	// Speech capture: portaudio mic plus the Deepgram streaming engine.
	var listener relay.Listener = unavailableListener{}
	var mic *audio.Mic
	selectedSampleRate := cfg.MicSampleRate

	if cfg.DeepgramAPIKey != "" {
		if err := portaudio.Initialize(); err != nil {
			log.Printf("warning: portaudio unavailable, capture disabled: %v", err)
		} else {
			defer func() { _ = portaudio.Terminate() }()
			for _, rate := range cfg.SampleRateCandidates() {
				m, micErr := audio.NewMic(rate, micFramesPerBuffer)
				if micErr != nil {
					log.Printf("warning: microphone open failed at %d Hz: %v", rate, micErr)
					continue
				}
				mic = m
				selectedSampleRate = rate
				break
			}
		}
	}

	handler := &relayHandler{}
	if mic != nil {
		callRecorder.SetSampleRate(selectedSampleRate)
		factory := capture.NewDeepgramFactory(cfg.DeepgramAPIKey, cfg.DeepgramModel)
		listener = capture.NewAdapter(factory, mic, selectedSampleRate, handler,
			capture.WithAudioSink(callRecorder.Sink()))
		log.Printf("microphone ready at %d Hz", selectedSampleRate)
	} else {
		log.Printf("warning: speech capture unavailable, running API/UI only")
	}

	// Translation chain: OpenAI primary, Gemini alternate, then the
	// built-in phrase table and marked passthrough.
	var providers []translate.Provider
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, translate.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, gemErr := translate.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
		if gemErr != nil {
			log.Printf("warning: gemini translator unavailable: %v", gemErr)
		} else {
			providers = append(providers, gemini)
		}
	}
	chain := translate.NewChain(providers, nil)

	// Speech synthesis: OpenAI TTS first, local espeak fallback.
	var engines []synthesize.Engine
	if cfg.OpenAIAPIKey != "" {
		engines = append(engines, synthesize.NewOpenAI(cfg.OpenAIAPIKey, cfg.TTSModel))
	}
	engines = append(engines, synthesize.NewEspeak(cfg.EspeakBinary))

	var player synthesize.Player
	if beepPlayer, playerErr := synthesize.NewBeepPlayer(); playerErr != nil {
		log.Printf("warning: audio output unavailable, playback disabled: %v", playerErr)
	} else {
		player = beepPlayer
	}
	speaker := synthesize.NewClient(engines, player, cfg.VoiceTable())

	limiter := ratelimit.NewDailyLimiter(store, cfg.DailySessionLimit)

	bridge := relay.New(listener, chain, speaker, history, relay.Config{
		TranslateTimeout: cfg.ParsedTranslateTimeout(),
		SpeakTimeout:     cfg.ParsedSpeakTimeout(),
		AutoAdvance:      cfg.AutoAdvance(),
		IdleTimeout:      cfg.ParsedIdleTimeout(),
		VoiceHintA:       cfg.VoiceHintA,
		VoiceHintB:       cfg.VoiceHintB,
	},
		relay.WithEvents(hub),
		relay.WithEstimator(transcript.NewRegexEstimator()),
		relay.WithLimiter(limiter),
		relay.WithRecorder(callRecorder),
	)
	handler.relay = bridge

	httpHandler, err := server.Handler(assets, hub, store, server.RelayControls{
		StartSession: bridge.StartSession,
		StartTurn:    bridge.StartTurn,
		Stop:         bridge.Stop,
		State:        func() string { return bridge.State().String() },
		Snapshot:     bridge.Snapshot,
		Warnings:     func() []string { return warnings },
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: httpHandler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := backup.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: drive backup disabled: %v", syncErr)
		} else {
			go syncer.Run(ctx, 5*time.Minute, writer.CurrentPath)
		}
	}

	log.Printf("callbridge: web UI on http://%s", cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("callbridge: shutting down")
	cancel()

	if err := bridge.Stop(); err != nil && !errors.Is(err, relay.ErrNoSession) {
		log.Printf("warning: end session failed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}
