package translate

import (
	"context"
	"errors"
)

// Tier identifies which step of the degradation chain produced a result.
// Lower tiers are higher quality; reported confidence never increases as
// the tier number grows.
type Tier int

const (
	// TierIdentity means source and target language matched, so the text
	// was returned unchanged without any provider call.
	TierIdentity Tier = iota
	TierPrimary
	TierAlternate
	TierPhrase
	TierPassthrough
)

func (t Tier) String() string {
	switch t {
	case TierIdentity:
		return "identity"
	case TierPrimary:
		return "primary"
	case TierAlternate:
		return "alternate"
	case TierPhrase:
		return "phrase_table"
	case TierPassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Result is a best-effort translation. Confidence reflects the tier that
// produced it, so a degraded result is visible to the caller as data
// rather than as an error.
type Result struct {
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
	Tier           Tier    `json:"tier"`
}

// Translator converts text between languages. Implementations must not
// fail for non-empty input on a distinct language pair; provider trouble
// degrades the result instead.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error)
}

// Provider is one external translation backend tried by the chain.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// ErrEmptyText is returned when a caller submits empty or whitespace-only
// text. This is a caller bug, rejected before any dispatch.
var ErrEmptyText = errors.New("translate: empty text")

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL points a provider client at an alternate API endpoint,
// mainly for tests.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}
