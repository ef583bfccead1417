package transcript

import (
	"regexp"
	"strings"
)

// Quality is a second opinion on a recognized transcript. It only ever
// lowers the engine's confidence; it never blocks processing.
type Quality struct {
	Confidence float64
	Flags      []string
}

// QualityEstimator inspects a final transcript and adjusts its confidence.
// Implementations are substitutable without touching the relay.
type QualityEstimator interface {
	Estimate(text string, confidence float64) Quality
}

type check struct {
	match   func(string) bool
	flag    string
	penalty float64
}

// RegexEstimator flags slang, filler words, and stutter artifacts that
// recognition engines transcribe with inflated confidence, and discounts
// the score for each class of problem found.
type RegexEstimator struct {
	checks []check
}

func NewRegexEstimator() *RegexEstimator {
	slang := regexp.MustCompile(`(?i)\b(gonna|wanna|gotta|kinda|sorta|dunno|ain't)\b`)
	filler := regexp.MustCompile(`(?i)\b(um+|uh+|err+|hmm+|mmm+)\b`)
	return &RegexEstimator{checks: []check{
		{slang.MatchString, "slang", 0.9},
		{filler.MatchString, "filler", 0.85},
		{hasRepeatedWord, "repeated_word", 0.9},
		{hasStretchedChars, "stretched_chars", 0.8},
	}}
}

func (e *RegexEstimator) Estimate(text string, confidence float64) Quality {
	q := Quality{Confidence: clamp(confidence)}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return q
	}

	for _, c := range e.checks {
		if c.match(trimmed) {
			q.Flags = append(q.Flags, c.flag)
			q.Confidence *= c.penalty
		}
	}

	q.Confidence = clamp(q.Confidence)
	return q
}

// hasRepeatedWord reports whether the same word appears twice in a row,
// the usual shape of a stutter the engine transcribed verbatim.
func hasRepeatedWord(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	for i := 1; i < len(words); i++ {
		w := strings.Trim(words[i], ".,!?;:")
		prev := strings.Trim(words[i-1], ".,!?;:")
		if w != "" && w == prev {
			return true
		}
	}
	return false
}

// hasStretchedChars reports whether any character repeats four or more
// times in a row, as in "soooooo" or "nooooo".
func hasStretchedChars(text string) bool {
	var last rune
	run := 0
	for _, r := range text {
		if r == last {
			run++
			if run >= 4 {
				return true
			}
		} else {
			last = r
			run = 1
		}
	}
	return false
}

// NopEstimator passes the engine's confidence through unchanged.
type NopEstimator struct{}

func (NopEstimator) Estimate(_ string, confidence float64) Quality {
	return Quality{Confidence: clamp(confidence)}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
