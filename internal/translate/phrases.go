package translate

import (
	"strings"

	"github.com/dkoval/callbridge/internal/transcript"
)

// PhraseTable holds a small fixed set of common phrases per language pair.
// It is the next-to-last fallback tier: enough to keep greetings and
// yes/no exchanges intelligible when every provider is down.
type PhraseTable struct {
	entries map[string]map[string]string
}

func NewPhraseTable() *PhraseTable {
	t := &PhraseTable{entries: make(map[string]map[string]string)}

	pairs := map[string]map[string]string{
		"en>es": {
			"hello":        "hola",
			"hi":           "hola",
			"goodbye":      "adiós",
			"bye":          "adiós",
			"thank you":    "gracias",
			"thanks":       "gracias",
			"please":       "por favor",
			"yes":          "sí",
			"no":           "no",
			"good morning": "buenos días",
			"good night":   "buenas noches",
			"help":         "ayuda",
			"one moment":   "un momento",
		},
		"en>fr": {
			"hello":        "bonjour",
			"goodbye":      "au revoir",
			"thank you":    "merci",
			"please":       "s'il vous plaît",
			"yes":          "oui",
			"no":           "non",
			"good morning": "bonjour",
			"one moment":   "un instant",
		},
		"en>pt": {
			"hello":     "olá",
			"goodbye":   "tchau",
			"thank you": "obrigado",
			"please":    "por favor",
			"yes":       "sim",
			"no":        "não",
		},
	}

	for key, phrases := range pairs {
		for phrase, translation := range phrases {
			src, dst, _ := strings.Cut(key, ">")
			t.Add(src, dst, phrase, translation)
			t.Add(dst, src, translation, phrase)
		}
	}

	return t
}

// Add registers a phrase for a language pair. Lookup is keyed by base
// language, so "pt-BR" and "pt" share entries.
func (t *PhraseTable) Add(sourceLang, targetLang, phrase, translation string) {
	key := pairKey(sourceLang, targetLang)
	if t.entries[key] == nil {
		t.entries[key] = make(map[string]string)
	}
	t.entries[key][normalizePhrase(phrase)] = translation
}

// Lookup returns the table's translation for text, if the whole utterance
// matches a known phrase.
func (t *PhraseTable) Lookup(text, sourceLang, targetLang string) (string, bool) {
	phrases, ok := t.entries[pairKey(sourceLang, targetLang)]
	if !ok {
		return "", false
	}
	out, ok := phrases[normalizePhrase(text)]
	return out, ok
}

func pairKey(sourceLang, targetLang string) string {
	return transcript.BaseTag(sourceLang) + ">" + transcript.BaseTag(targetLang)
}

func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".,!?¡¿ ")
}
