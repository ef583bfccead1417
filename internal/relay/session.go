package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/dkoval/callbridge/internal/translate"
)

// Party identifies one of the two conversation sides.
type Party string

const (
	PartyA Party = "a"
	PartyB Party = "b"
)

// Other returns the opposite side.
func (p Party) Other() Party {
	if p == PartyA {
		return PartyB
	}
	return PartyA
}

// Label returns the display name used in transcripts and events.
func (p Party) Label() string {
	if p == PartyA {
		return "Party A"
	}
	return "Party B"
}

// Utterance is one finalized spoken turn and its translation. It is
// created when capture finalizes a transcript, filled in once when the
// translation arrives, and immutable after that.
type Utterance struct {
	ID                    string         `json:"id"`
	Speaker               Party          `json:"speaker"`
	SourceText            string         `json:"source_text"`
	SourceLang            string         `json:"source_lang"`
	TargetLang            string         `json:"target_lang"`
	TranslatedText        string         `json:"translated_text"`
	Confidence            float64        `json:"confidence"`
	TranslationConfidence float64        `json:"translation_confidence"`
	Tier                  translate.Tier `json:"tier"`
	Flags                 []string       `json:"flags,omitempty"`
	Timestamp             time.Time      `json:"timestamp"`
}

func (u Utterance) FormatMarkdown() string {
	ts := u.Timestamp.Format("15:04:05")
	return fmt.Sprintf("**[%s] %s (%s->%s):** %s | %s",
		ts, u.Speaker.Label(), u.SourceLang, u.TargetLang,
		strings.TrimSpace(u.SourceText), strings.TrimSpace(u.TranslatedText))
}

// Session is one bridging conversation. The relay owns it exclusively;
// nothing else mutates CurrentTurn or Active.
type Session struct {
	ID          string      `json:"id"`
	LanguageA   string      `json:"language_a"`
	LanguageB   string      `json:"language_b"`
	CurrentTurn Party       `json:"current_turn"`
	Active      bool        `json:"active"`
	History     []Utterance `json:"history"`
}

// LanguageOf returns the language the given party speaks.
func (s *Session) LanguageOf(p Party) string {
	if p == PartyA {
		return s.LanguageA
	}
	return s.LanguageB
}

// TargetOf returns the language the given party's speech is translated
// into, which is always the other party's language.
func (s *Session) TargetOf(p Party) string {
	return s.LanguageOf(p.Other())
}

func (s *Session) snapshot() *Session {
	cp := *s
	cp.History = append([]Utterance(nil), s.History...)
	return &cp
}
