// Package extract turns listing markup into structured records. All field
// resolution is best effort: a fragment the extractor cannot fully interpret
// yields a partial record, never an error.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches a numeric amount optionally followed by a hryvnia marker.
// The amount group tolerates spaces, commas, and dots between digits so
// grouped values like "1 299,00" match as one token.
var priceRe = regexp.MustCompile(`(\d[\d\s\x{00a0}\x{202f}.,]*)\s*(грн|uah|UAH|₴)`)

// bareNumberRe matches a standalone amount when no currency marker is present.
var bareNumberRe = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}.,]*`)

// ParsePrice extracts a price amount and currency code from free-form text.
// It prefers an amount adjacent to a currency marker and falls back to the
// first bare number. Returns nil when no positive finite amount is found.
func ParsePrice(text, defaultCurrency string) (*float64, string) {
	if text == "" {
		return nil, ""
	}

	raw := ""
	currency := ""
	if m := priceRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
		currency = "UAH"
	} else if m := bareNumberRe.FindString(text); m != "" {
		raw = m
		currency = defaultCurrency
	} else {
		return nil, ""
	}

	value, ok := normalizeAmount(raw)
	if !ok {
		return nil, ""
	}

	return &value, currency
}

// normalizeAmount converts a localized number token to a float. Both "." and
// "," occur as decimal and as thousands separators in the wild; the rightmost
// separator is the decimal point only when exactly one or two digits follow
// it, otherwise every separator is treated as grouping.
func normalizeAmount(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	s = strings.Trim(s, ".,")
	if s == "" {
		return 0, false
	}

	lastSep := strings.LastIndexAny(s, ".,")
	if lastSep >= 0 {
		frac := s[lastSep+1:]
		rest := strings.Map(dropSeparators, s[:lastSep])
		if n := len(frac); n >= 1 && n <= 2 && !strings.ContainsAny(frac, ".,") {
			s = rest + "." + frac
		} else {
			s = rest + strings.Map(dropSeparators, frac)
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, false
	}

	return value, true
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}
