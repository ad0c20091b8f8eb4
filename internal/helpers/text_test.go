package helpers

import (
	"strings"
	"testing"
)

func TestCleanTextRemovesNoise(t *testing.T) {
	in := "India's  <b>pharma</b> exports\n\tgrew 9%. Subscribe now! Read more: [Image] Cookie Policy"
	got := CleanText(in)
	want := "India's pharma exports grew 9%. !"
	if got != want {
		t.Fatalf("CleanText() = %q, want %q", got, want)
	}
}

func TestCleanTextNewsletter(t *testing.T) {
	got := CleanText("Top stories. Sign up for our daily newsletter")
	if got != "Top stories." {
		t.Fatalf("unexpected %q", got)
	}
}

func TestFingerprintIgnoresPunctuationAndCase(t *testing.T) {
	a := Fingerprint("Pharma Exports Rise, 2025!")
	b := Fingerprint("pharma exports rise 2025")
	if a != b {
		t.Fatalf("expected equal fingerprints, got %q vs %q", a, b)
	}
	long := Fingerprint(strings.Repeat("ab ", 80))
	if len(long) != 100 {
		t.Fatalf("expected 100 chars, got %d", len(long))
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestCanonicalURL(t *testing.T) {
	got := CanonicalURL("https://WWW.Reuters.com/a?utm_source=x&id=2#top")
	if got != "https://www.reuters.com/a?id=2" {
		t.Fatalf("unexpected %q", got)
	}
	if got := CanonicalURL("not a url"); got != "not a url" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestFingerprintKeepsNonLatinLetters(t *testing.T) {
	a := Fingerprint("भारत का फार्मा निर्यात बढ़ा")
	b := Fingerprint("सरकार ने नई नीति घोषित की")
	if a == "" || b == "" {
		t.Fatalf("expected non-empty fingerprints, got %q and %q", a, b)
	}
	if a == b {
		t.Fatalf("distinct bodies collapsed to %q", a)
	}
	if got := Fingerprint("Exportações de café cresceram!"); got != "exportaçõesdecafécresceram" {
		t.Fatalf("accented letters lost: %q", got)
	}
}
