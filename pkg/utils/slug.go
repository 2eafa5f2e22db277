package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 96

var nonSlugChars = regexp.MustCompile("[^a-z0-9]+")

// foldings covers letters that have no combining-mark decomposition.
var foldings = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D", "ł", "l", "Ł", "L", "þ", "th", "Þ", "TH",
	"œ", "oe", "Œ", "OE", "&", " and ",
)

// GenerateSlug turns a title into a lowercase ASCII slug.
func GenerateSlug(text string) string {
	text = foldings.Replace(text)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, text); err == nil {
		text = folded
	}

	text = strings.ToLower(text)
	text = nonSlugChars.ReplaceAllString(text, "-")
	text = strings.Trim(text, "-")

	if len(text) > maxSlugLength {
		text = strings.TrimRight(text[:maxSlugLength], "-")
	}
	return text
}

// UniqueSlug appends -2, -3, ... to base until exists reports a free slug.
func UniqueSlug(base string, exists func(candidate string) (bool, error)) (string, error) {
	if base == "" {
		base = "course"
	}
	candidate := base
	for attempt := 2; attempt < 1000; attempt++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}
