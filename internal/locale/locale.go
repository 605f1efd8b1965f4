// Package locale maps arbitrary user-supplied locale strings (varying case,
// token order, or common aliases) to a canonical (language, region) token
// usable for number formatting.
package locale

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrInvalidLocale indicates no interpretation was found for the input.
var ErrInvalidLocale = errors.New("invalid locale")

// InvalidLocaleError carries the offending input and nearby known tokens
// for diagnostics. It matches ErrInvalidLocale under errors.Is.
type InvalidLocaleError struct {
	Input       string
	Suggestions []string
}

func (e *InvalidLocaleError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("invalid locale %q", e.Input)
	}
	return fmt.Sprintf("invalid locale %q (did you mean %s?)", e.Input, strings.Join(e.Suggestions, ", "))
}

func (e *InvalidLocaleError) Unwrap() error { return ErrInvalidLocale }

// Token is a canonical locale identifier: 2-letter lowercase language code
// plus 2-letter uppercase region code. Construct through Resolve.
type Token struct {
	Language string
	Region   string
}

// String renders the POSIX-style form, e.g. "en_US".
func (t Token) String() string { return t.Language + "_" + t.Region }

// BCP47 renders the tag form consumed by formatting facilities, e.g. "en-US".
func (t Token) BCP47() string { return t.Language + "-" + t.Region }

// Resolve normalizes input into a canonical Token.
//
// Rules, in order:
//  1. Exactly two 2-letter tokens: try (lang, region) then (region, lang)
//     against the canonical table; the ordering whose first token is a
//     recognized language code wins. "en_US", "EN_us" and "US_EN" all
//     resolve identically.
//  2. Exactly one token: alias table lookup (bare countries and languages).
//  3. Otherwise fail with InvalidLocaleError carrying suggestions.
func Resolve(input string) (Token, error) {
	tokens := split(input)

	if len(tokens) == 2 && len(tokens[0]) == 2 && len(tokens[1]) == 2 {
		lang, region := strings.ToLower(tokens[0]), strings.ToUpper(tokens[1])
		if known(lang, region) {
			return Token{Language: lang, Region: region}, nil
		}
		// Swapped order: "US_EN" means en_US.
		lang, region = strings.ToLower(tokens[1]), strings.ToUpper(tokens[0])
		if known(lang, region) {
			return Token{Language: lang, Region: region}, nil
		}
	}

	if len(tokens) == 1 {
		if tok, ok := aliases[strings.ToLower(tokens[0])]; ok {
			return tok, nil
		}
	}

	return Token{}, &InvalidLocaleError{Input: input, Suggestions: suggest(tokens)}
}

// split breaks input on any non-alphanumeric separator.
func split(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

const maxSuggestions = 5

// suggest ranks known tokens near the unrecognized input by shared prefix
// and edit distance.
func suggest(tokens []string) []string {
	vocab := vocabulary()

	type scored struct {
		token string
		cost  int
	}
	var candidates []scored
	for _, in := range tokens {
		in = strings.ToLower(in)
		for _, v := range vocab {
			cost := editDistance(in, v)
			if strings.HasPrefix(v, in) && cost > 1 {
				cost = 1
			}
			if cost <= 2 {
				candidates = append(candidates, scored{token: v, cost: cost})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].cost != candidates[j].cost {
			return candidates[i].cost < candidates[j].cost
		}
		return candidates[i].token < candidates[j].token
	})

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		if seen[c.token] {
			continue
		}
		seen[c.token] = true
		out = append(out, c.token)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func vocabulary() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for lang, regions := range canonical {
		add(lang)
		for region := range regions {
			add(strings.ToLower(region))
		}
	}
	for alias := range aliases {
		add(alias)
	}
	sort.Strings(out)
	return out
}

// editDistance is plain Levenshtein; inputs here are tiny.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
