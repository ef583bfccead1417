package translate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dkoval/callbridge/internal/transcript"
)

// Per-tier confidence policy. The exact values are not a contract; the
// invariant is that they are non-increasing down the chain.
const (
	primaryConfidence     = 0.95
	providerStepDown      = 0.10
	minProviderConfidence = 0.60
	phraseConfidence      = 0.50
	passthroughConfidence = 0.20
)

// Chain tries providers in order and degrades through a phrase table down
// to annotated passthrough. A live conversation must never block on a
// broken translation backend, so for non-empty input on a distinct
// language pair the chain always produces something.
type Chain struct {
	providers []Provider
	phrases   *PhraseTable
}

func NewChain(providers []Provider, phrases *PhraseTable) *Chain {
	if phrases == nil {
		phrases = NewPhraseTable()
	}
	return &Chain{providers: providers, phrases: phrases}
}

func (c *Chain) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyText
	}

	if transcript.SameLanguage(sourceLang, targetLang) {
		return Result{TranslatedText: text, Confidence: 1.0, Tier: TierIdentity}, nil
	}

	confidence := primaryConfidence
	tier := TierPrimary
	for _, p := range c.providers {
		out, err := p.Translate(ctx, text, sourceLang, targetLang)
		out = strings.TrimSpace(out)
		switch {
		case err != nil:
			slog.Warn("translation provider failed", "provider", p.Name(), "error", err)
		case out == "":
			slog.Warn("translation provider returned empty result", "provider", p.Name())
		default:
			return Result{TranslatedText: out, Confidence: confidence, Tier: tier}, nil
		}

		tier++
		if confidence-providerStepDown >= minProviderConfidence {
			confidence -= providerStepDown
		}
	}

	if out, ok := c.phrases.Lookup(text, sourceLang, targetLang); ok {
		return Result{TranslatedText: out, Confidence: phraseConfidence, Tier: TierPhrase}, nil
	}

	marked := transcript.Marker(targetLang) + " " + text
	return Result{TranslatedText: marked, Confidence: passthroughConfidence, Tier: TierPassthrough}, nil
}
