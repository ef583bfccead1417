package transcript

import (
	"math"
	"testing"
)

func TestMerge(t *testing.T) {
	text, conf := Merge([]Fragment{
		{Text: "hello there,", Confidence: 0.9},
		{Text: "  ", Confidence: 0.1},
		{Text: "how are you", Confidence: 0.7},
	})
	if text != "hello there, how are you" {
		t.Fatalf("unexpected merged text %q", text)
	}
	if math.Abs(conf-0.8) > 1e-9 {
		t.Fatalf("expected averaged confidence 0.8, got %v", conf)
	}
}

func TestMergeEmpty(t *testing.T) {
	text, conf := Merge(nil)
	if text != "" || conf != 0 {
		t.Fatalf("expected empty merge, got %q / %v", text, conf)
	}

	text, conf = Merge([]Fragment{{Text: "   ", Confidence: 0.9}})
	if text != "" || conf != 0 {
		t.Fatalf("expected whitespace-only merge to be empty, got %q / %v", text, conf)
	}
}

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"EN":    "en",
		" es ":  "es",
		"pt-br": "pt-BR",
		"PT-br": "pt-BR",
		"zh-CN": "zh-CN",
		"en-us": "en-US",
	}
	for in, want := range cases {
		if got := NormalizeTag(in); got != want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSameLanguage(t *testing.T) {
	if !SameLanguage("EN", "en") {
		t.Error("EN and en should match")
	}
	if SameLanguage("pt", "pt-BR") {
		t.Error("pt and pt-BR should not match")
	}
	if SameLanguage("", "") {
		t.Error("empty tags should not match")
	}
}

func TestBaseTagAndMarker(t *testing.T) {
	if got := BaseTag("pt-BR"); got != "pt" {
		t.Fatalf("BaseTag = %q", got)
	}
	if got := Marker("es"); got != "[ES]" {
		t.Fatalf("Marker = %q", got)
	}
	if got := Marker("pt-br"); got != "[PT-BR]" {
		t.Fatalf("Marker = %q", got)
	}
}
