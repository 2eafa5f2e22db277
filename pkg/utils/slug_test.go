package utils

import (
	"errors"
	"testing"
)

func TestGenerateSlug(t *testing.T) {
	tests := map[string]string{
		"Intro to Go":            "intro-to-go",
		"  Crème brûlée 101 ":    "creme-brulee-101",
		"Straße & Co.":           "strasse-and-co",
		"---":                    "",
		"Data/ML: Part #2 (new)": "data-ml-part-2-new",
	}
	for input, want := range tests {
		if got := GenerateSlug(input); got != want {
			t.Fatalf("GenerateSlug(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"go": true, "go-2": true}
	slug, err := UniqueSlug("go", func(candidate string) (bool, error) {
		return taken[candidate], nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if slug != "go-3" {
		t.Fatalf("expected go-3, got %q", slug)
	}

	empty, err := UniqueSlug("", func(string) (bool, error) { return false, nil })
	if err != nil || empty != "course" {
		t.Fatalf("expected fallback slug, got %q (%v)", empty, err)
	}

	boom := errors.New("boom")
	if _, err := UniqueSlug("x", func(string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
