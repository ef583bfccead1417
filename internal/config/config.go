package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dkoval/callbridge/internal/synthesize"
	"github.com/dkoval/callbridge/internal/transcript"
)

// EnvPrefix is the namespace prefix for all Callbridge environment variables.
const EnvPrefix = "CALLBRIDGE_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	TranscriptDir         string `yaml:"transcript_dir"`
	HTTPAddr              string `yaml:"http_addr"`
	LanguageA             string `yaml:"language_a"`
	LanguageB             string `yaml:"language_b"`
	TurnPolicy            string `yaml:"turn_policy"`
	VoiceHintA            string `yaml:"voice_hint_a"`
	VoiceHintB            string `yaml:"voice_hint_b"`
	TranslateTimeout      string `yaml:"translate_timeout"`
	SpeakTimeout          string `yaml:"speak_timeout"`
	IdleTimeout           string `yaml:"idle_timeout"`
	MicSampleRate         int    `yaml:"mic_sample_rate"`
	MicSampleRates        []int  `yaml:"mic_sample_rates"`
	DeepgramModel         string `yaml:"deepgram_model"`
	OpenAIModel           string `yaml:"openai_model"`
	GeminiModel           string `yaml:"gemini_model"`
	TTSModel              string `yaml:"tts_model"`
	EspeakBinary          string `yaml:"espeak_binary"`
	DailySessionLimit     int    `yaml:"daily_session_limit"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Voices overrides the built-in voice table per base language.
	Voices map[string][]synthesize.Voice `yaml:"voices"`

	// Secrets, env vars only, never serialized to YAML.
	DeepgramAPIKey string `yaml:"-"`
	OpenAIAPIKey   string `yaml:"-"`
	GeminiAPIKey   string `yaml:"-"`
}

const (
	TurnPolicyManual = "manual"
	TurnPolicyAuto   = "auto"
)

func defaults() Config {
	return Config{
		DBPath:                "data/callbridge.db",
		AudioDir:              "data/audio",
		TranscriptDir:         "data/transcripts",
		HTTPAddr:              "127.0.0.1:8765",
		LanguageA:             "en",
		LanguageB:             "es",
		TurnPolicy:            TurnPolicyManual,
		TranslateTimeout:      "15s",
		SpeakTimeout:          "30s",
		IdleTimeout:           "0s",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		DeepgramModel:         "nova-2",
		OpenAIModel:           "gpt-4o-mini",
		GeminiModel:           "gemini-2.0-flash",
		TTSModel:              "tts-1",
		EspeakBinary:          "espeak-ng",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)

	// The one hard invariant: a relay between identical languages is
	// meaningless, so this is an error rather than a warning.
	if transcript.SameLanguage(cfg.LanguageA, cfg.LanguageB) {
		return cfg, warnings, fmt.Errorf("language_a and language_b must differ, both are %q", cfg.LanguageA)
	}

	return cfg, warnings, nil
}

// AutoAdvance reports whether the turn policy flips speakers automatically
// after playback.
func (c *Config) AutoAdvance() bool {
	return strings.EqualFold(c.TurnPolicy, TurnPolicyAuto)
}

// ParsedTranslateTimeout returns TranslateTimeout as a time.Duration,
// falling back to 15s if the value is invalid.
func (c *Config) ParsedTranslateTimeout() time.Duration {
	return parseDuration(c.TranslateTimeout, 15*time.Second)
}

// ParsedSpeakTimeout returns SpeakTimeout as a time.Duration, falling back
// to 30s if the value is invalid.
func (c *Config) ParsedSpeakTimeout() time.Duration {
	return parseDuration(c.SpeakTimeout, 30*time.Second)
}

// ParsedIdleTimeout returns IdleTimeout as a time.Duration. Zero disables
// the idle auto-stop.
func (c *Config) ParsedIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// VoiceTable merges configured voice overrides on top of the built-in
// defaults.
func (c *Config) VoiceTable() synthesize.VoiceTable {
	table := synthesize.DefaultVoices()
	for lang, voices := range c.Voices {
		table[strings.ToLower(lang)] = voices
	}
	return table
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPT_DIR"); v != "" {
		cfg.TranscriptDir = v
	}
	if v := os.Getenv(EnvPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE_A"); v != "" {
		cfg.LanguageA = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE_B"); v != "" {
		cfg.LanguageB = v
	}
	if v := os.Getenv(EnvPrefix + "TURN_POLICY"); v != "" {
		cfg.TurnPolicy = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSLATE_TIMEOUT"); v != "" {
		cfg.TranslateTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "SPEAK_TIMEOUT"); v != "" {
		cfg.SpeakTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "IDLE_TIMEOUT"); v != "" {
		cfg.IdleTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_MODEL"); v != "" {
		cfg.DeepgramModel = v
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv(EnvPrefix + "GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv(EnvPrefix + "TTS_MODEL"); v != "" {
		cfg.TTSModel = v
	}
	if v := os.Getenv(EnvPrefix + "ESPEAK_BINARY"); v != "" {
		cfg.EspeakBinary = v
	}
	if v := os.Getenv(EnvPrefix + "DAILY_SESSION_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && limit >= 0 {
			cfg.DailySessionLimit = limit
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, speech capture is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured, primary translation and speech synthesis are disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "Gemini API key not configured, alternate translation is disabled. Set "+EnvPrefix+"GEMINI_API_KEY.")
	}
	if cfg.TurnPolicy != "" && !strings.EqualFold(cfg.TurnPolicy, TurnPolicyManual) && !strings.EqualFold(cfg.TurnPolicy, TurnPolicyAuto) {
		warnings = append(warnings, fmt.Sprintf("Invalid turn_policy %q, using manual.", cfg.TurnPolicy))
	}
	if _, err := time.ParseDuration(cfg.TranslateTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid translate_timeout %q, using default 15s.", cfg.TranslateTimeout))
	}
	if _, err := time.ParseDuration(cfg.SpeakTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid speak_timeout %q, using default 30s.", cfg.SpeakTimeout))
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
