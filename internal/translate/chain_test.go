package translate

import (
	"context"
	"errors"
	"testing"
)

type providerMock struct {
	name   string
	out    string
	err    error
	calls  int
	gotSrc string
	gotDst string
}

func (p *providerMock) Name() string { return p.name }

func (p *providerMock) Translate(_ context.Context, _, sourceLang, targetLang string) (string, error) {
	p.calls++
	p.gotSrc = sourceLang
	p.gotDst = targetLang
	return p.out, p.err
}

func TestChainEmptyTextRejected(t *testing.T) {
	chain := NewChain(nil, nil)

	_, err := chain.Translate(context.Background(), "   ", "en", "es")
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestChainIdentity(t *testing.T) {
	primary := &providerMock{name: "primary", out: "should not be used"}
	chain := NewChain([]Provider{primary}, nil)

	res, err := chain.Translate(context.Background(), "hello", "en", "EN")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.TranslatedText != "hello" || res.Confidence != 1.0 || res.Tier != TierIdentity {
		t.Fatalf("unexpected identity result: %+v", res)
	}
	if primary.calls != 0 {
		t.Fatalf("identity translation must not call a provider, got %d calls", primary.calls)
	}
}

func TestChainPrimarySuccess(t *testing.T) {
	primary := &providerMock{name: "primary", out: " hola "}
	alternate := &providerMock{name: "alternate", out: "unused"}
	chain := NewChain([]Provider{primary, alternate}, nil)

	res, err := chain.Translate(context.Background(), "hello", "en", "es")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.TranslatedText != "hola" {
		t.Fatalf("expected trimmed hola, got %q", res.TranslatedText)
	}
	if res.Tier != TierPrimary {
		t.Fatalf("expected primary tier, got %v", res.Tier)
	}
	if alternate.calls != 0 {
		t.Fatal("alternate must not run when primary succeeds")
	}
	if primary.gotSrc != "en" || primary.gotDst != "es" {
		t.Fatalf("language pair not forwarded: %s -> %s", primary.gotSrc, primary.gotDst)
	}
}

func TestChainFallbackConfidenceMonotonic(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	// Tier by tier, force one more failure and check confidence never rises.
	tierResults := []Result{}

	ok := NewChain([]Provider{&providerMock{name: "p", out: "hola"}}, nil)
	res, err := ok.Translate(ctx, "hello", "en", "es")
	if err != nil {
		t.Fatalf("tier 0 failed: %v", err)
	}
	tierResults = append(tierResults, res)

	alt := NewChain([]Provider{
		&providerMock{name: "p", err: boom},
		&providerMock{name: "a", out: "hola"},
	}, nil)
	res, err = alt.Translate(ctx, "hello", "en", "es")
	if err != nil {
		t.Fatalf("tier 1 failed: %v", err)
	}
	if res.Tier != TierAlternate {
		t.Fatalf("expected alternate tier, got %v", res.Tier)
	}
	tierResults = append(tierResults, res)

	phrase := NewChain([]Provider{
		&providerMock{name: "p", err: boom},
		&providerMock{name: "a", err: boom},
	}, nil)
	res, err = phrase.Translate(ctx, "hello", "en", "es")
	if err != nil {
		t.Fatalf("tier 2 failed: %v", err)
	}
	if res.Tier != TierPhrase || res.TranslatedText != "hola" {
		t.Fatalf("expected phrase-table hola, got %+v", res)
	}
	tierResults = append(tierResults, res)

	res, err = phrase.Translate(ctx, "the quarterly report is late", "en", "es")
	if err != nil {
		t.Fatalf("tier 3 failed: %v", err)
	}
	if res.Tier != TierPassthrough {
		t.Fatalf("expected passthrough tier, got %v", res.Tier)
	}
	if res.TranslatedText != "[ES] the quarterly report is late" {
		t.Fatalf("unexpected passthrough text %q", res.TranslatedText)
	}
	tierResults = append(tierResults, res)

	for i := 1; i < len(tierResults); i++ {
		if tierResults[i].Confidence > tierResults[i-1].Confidence {
			t.Fatalf("confidence rose from tier %d (%v) to tier %d (%v)",
				i-1, tierResults[i-1].Confidence, i, tierResults[i].Confidence)
		}
	}
}

func TestChainEmptyProviderResultIsFailure(t *testing.T) {
	primary := &providerMock{name: "primary", out: "   "}
	alternate := &providerMock{name: "alternate", out: "bonjour"}
	chain := NewChain([]Provider{primary, alternate}, nil)

	res, err := chain.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.TranslatedText != "bonjour" || res.Tier != TierAlternate {
		t.Fatalf("empty primary result should fall through, got %+v", res)
	}
}

func TestChainPassthroughWhenNoPhraseEntry(t *testing.T) {
	chain := NewChain([]Provider{&providerMock{name: "p", err: errors.New("network down")}}, nil)

	res, err := chain.Translate(context.Background(), "bonjour", "fr", "en")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	// "bonjour" is in the built-in fr>en table, so strip it out first.
	if res.Tier != TierPhrase {
		t.Fatalf("expected phrase tier for bonjour, got %+v", res)
	}

	res, err = chain.Translate(context.Background(), "où est la gare centrale", "fr", "en")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.Tier != TierPassthrough || res.TranslatedText != "[EN] où est la gare centrale" {
		t.Fatalf("unexpected passthrough result %+v", res)
	}
}
