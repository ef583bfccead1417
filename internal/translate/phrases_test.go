package translate

import "testing"

func TestPhraseTableLookup(t *testing.T) {
	table := NewPhraseTable()

	out, ok := table.Lookup("Hello!", "en", "es")
	if !ok || out != "hola" {
		t.Fatalf("expected hola, got %q (ok=%v)", out, ok)
	}

	// Reverse direction is registered automatically.
	out, ok = table.Lookup("gracias", "es", "en")
	if !ok || out != "thank you" {
		t.Fatalf("expected thank you, got %q (ok=%v)", out, ok)
	}
}

func TestPhraseTableRegionalVariants(t *testing.T) {
	table := NewPhraseTable()

	out, ok := table.Lookup("thank you", "en-US", "pt-BR")
	if !ok || out != "obrigado" {
		t.Fatalf("regional tags should share base entries, got %q (ok=%v)", out, ok)
	}
}

func TestPhraseTableMiss(t *testing.T) {
	table := NewPhraseTable()

	if _, ok := table.Lookup("the invoice number is wrong", "en", "es"); ok {
		t.Fatal("expected miss for a full sentence")
	}
	if _, ok := table.Lookup("hello", "en", "de"); ok {
		t.Fatal("expected miss for an unknown language pair")
	}
}

func TestPhraseTableAdd(t *testing.T) {
	table := NewPhraseTable()
	table.Add("en", "de", "hello", "hallo")

	out, ok := table.Lookup("HELLO", "en", "de")
	if !ok || out != "hallo" {
		t.Fatalf("expected hallo, got %q (ok=%v)", out, ok)
	}
}
