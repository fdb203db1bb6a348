package util

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	reTagish = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// NormalizeKey trims a lookup key. Keys are compared exactly after trimming.
func NormalizeKey(input string) string {
	return strings.TrimSpace(input)
}

// IsDegenerateKey reports whether a key must never take part in matching:
// empty after trimming or equal (case-insensitively) to a placeholder token.
func IsDegenerateKey(key string, placeholders []string) bool {
	k := NormalizeKey(key)
	if k == "" {
		return true
	}
	for _, p := range placeholders {
		if strings.EqualFold(k, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// HTMLToText flattens ERP rich-text descriptions into a single line.
func HTMLToText(input string) string {
	if !reTagish.MatchString(input) {
		return NormalizeSpaces(input)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return NormalizeSpaces(reTagish.ReplaceAllString(input, " "))
	}
	doc.Find("script,style").Remove()
	parts := []string{}
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if t := NormalizeSpaces(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return NormalizeSpaces(strings.Join(parts, " "))
}

// Tag lowercases a display name for use as a catalog tag.
func Tag(input string) string {
	s := strings.ToLower(NormalizeSpaces(input))
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func StringPtr(s string) *string {
	return &s
}

func IntPtr(i int) *int {
	return &i
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
