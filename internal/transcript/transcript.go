package transcript

import "strings"

// Fragment is one finalized piece of recognized speech. Streaming engines
// deliver an utterance as several final fragments before marking the whole
// utterance complete, so fragments are merged before translation.
type Fragment struct {
	Text       string
	Confidence float64
}

// Merge joins fragments into a single transcript, averaging confidence over
// the non-empty pieces. Returns an empty text and zero confidence when
// nothing usable was captured.
func Merge(fragments []Fragment) (string, float64) {
	parts := make([]string, 0, len(fragments))
	total := 0.0

	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		total += f.Confidence
	}

	if len(parts) == 0 {
		return "", 0
	}
	return strings.Join(parts, " "), total / float64(len(parts))
}

// NormalizeTag canonicalizes a language tag: lowercase primary subtag,
// uppercase region ("PT-br" -> "pt-BR").
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	parts := strings.SplitN(tag, "-", 2)
	if len(parts) == 1 {
		return strings.ToLower(parts[0])
	}
	return strings.ToLower(parts[0]) + "-" + strings.ToUpper(parts[1])
}

// BaseTag returns the primary language subtag ("pt-BR" -> "pt").
func BaseTag(tag string) string {
	parts := strings.SplitN(strings.TrimSpace(tag), "-", 2)
	return strings.ToLower(parts[0])
}

// SameLanguage reports whether two tags name the same language, region
// included ("pt" and "pt-BR" are different).
func SameLanguage(a, b string) bool {
	return NormalizeTag(a) == NormalizeTag(b) && NormalizeTag(a) != ""
}

// Marker returns the bracketed target-language marker used to annotate
// untranslated passthrough text, e.g. "[ES]".
func Marker(tag string) string {
	return "[" + strings.ToUpper(NormalizeTag(tag)) + "]"
}
