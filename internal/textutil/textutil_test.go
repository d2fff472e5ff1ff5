package textutil_test

import (
	"math"
	"testing"

	"ferry/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Harbor Lights":             "Harbor Lights",
		"AC/DC: Live":               "AC-DC- Live",
		"What? \"Really\" <yes>|no": "What Really yesno",
		"  spaced   out\tname  ":    "spaced out name",
		"trailing dots...":          "trailing dots",
		"bell\x07char":              "bellchar",
		"":                          "",
	}
	for in, want := range cases {
		if got := textutil.SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFileNameNormalizesUnicode(t *testing.T) {
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"
	if got := textutil.SanitizeFileName(decomposed); got != composed {
		t.Fatalf("expected NFC form %q, got %q", composed, got)
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := textutil.TitleSimilarity("Harbor Lights", "harbor.lights"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected identical titles to score 1, got %f", got)
	}
	if got := textutil.TitleSimilarity("Harbor Lights", "Mountain Echo"); got != 0 {
		t.Fatalf("expected disjoint titles to score 0, got %f", got)
	}
	partial := textutil.TitleSimilarity("Harbor Lights Live", "Harbor Lights")
	if partial <= 0.5 || partial >= 1 {
		t.Fatalf("expected partial overlap, got %f", partial)
	}
	if got := textutil.TitleSimilarity("", "Harbor"); got != 0 {
		t.Fatalf("expected empty title to score 0, got %f", got)
	}
}
