package synthesize

import (
	"math/rand/v2"
	"strings"

	"github.com/dkoval/callbridge/internal/transcript"
)

// Voice is one provider voice identifier with its advertised gender.
type Voice struct {
	ID     string `yaml:"id" json:"id"`
	Gender string `yaml:"gender" json:"gender"`
}

// VoiceTable maps a base language tag to its fixed voice set. Tables are
// static configuration loaded at startup, not runtime lookups with silent
// fallthrough.
type VoiceTable map[string][]Voice

// DefaultVoices covers the languages the bridge ships support for.
func DefaultVoices() VoiceTable {
	return VoiceTable{
		"en": {{ID: "alloy", Gender: "neutral"}, {ID: "onyx", Gender: "male"}, {ID: "nova", Gender: "female"}},
		"es": {{ID: "alloy", Gender: "neutral"}, {ID: "echo", Gender: "male"}, {ID: "shimmer", Gender: "female"}},
		"fr": {{ID: "alloy", Gender: "neutral"}, {ID: "fable", Gender: "neutral"}},
		"pt": {{ID: "alloy", Gender: "neutral"}, {ID: "onyx", Gender: "male"}},
	}
}

// Pick selects a voice for the language. A hint matching a voice ID wins
// outright; a hint matching a gender narrows the set. Within the matching
// set the choice is randomized, which is acceptable per contract.
func (t VoiceTable) Pick(language, hint string) Voice {
	candidates := t[transcript.BaseTag(language)]
	if len(candidates) == 0 {
		return Voice{}
	}

	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint != "" {
		for _, v := range candidates {
			if strings.EqualFold(v.ID, hint) {
				return v
			}
		}

		matched := make([]Voice, 0, len(candidates))
		for _, v := range candidates {
			if strings.EqualFold(v.Gender, hint) {
				matched = append(matched, v)
			}
		}
		if len(matched) > 0 {
			return matched[rand.IntN(len(matched))]
		}
	}

	return candidates[rand.IntN(len(candidates))]
}
