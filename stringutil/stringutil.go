// Package stringutil provides the text normalization, similarity scoring and
// title cleaning used by the library matcher.
package stringutil

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes to NFD, drops combining marks and recomposes,
// so "Björk" and "Bjork" compare equal.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// levenshtein is stateless and safe to share across calls.
var levenshtein = metrics.NewLevenshtein()

var (
	parenGroupRe   = regexp.MustCompile(`\s*\([^)]*\)`)
	parenContentRe = regexp.MustCompile(`\(([^)]*)\)`)

	featParenRe     = regexp.MustCompile(`(?i)\s*\(feat\.[^)]*\)`)
	withParenRe     = regexp.MustCompile(`(?i)\s*\(with[^)]*\)`)
	ftParenRe       = regexp.MustCompile(`(?i)\s*\(ft\.[^)]*\)`)
	featTailRe      = regexp.MustCompile(`(?i)\s*feat\..*$`)
	ftTailRe        = regexp.MustCompile(`(?i)\s*ft\..*$`)
	withTailRe      = regexp.MustCompile(`(?i)\s*with.*$`)
	versionParenRe  = regexp.MustCompile(`(?i)\s*\([^)]*version\)`)
	editParenRe     = regexp.MustCompile(`(?i)\s*\([^)]*edit\)`)
	mixParenRe      = regexp.MustCompile(`(?i)\s*\([^)]*mix\)`)
	remasterParenRe = regexp.MustCompile(`(?i)\s*\([^)]*remaster[^)]*\)`)
)

// Normalize lowercases s, strips accents, replaces every rune that is not a
// letter, digit, underscore or whitespace with a space, and collapses runs of
// whitespace. Empty input yields the empty string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	if stripped, _, err := transform.String(accentStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// StripParens removes every parenthesized group from s.
func StripParens(s string) string {
	return strings.TrimSpace(parenGroupRe.ReplaceAllString(s, ""))
}

// Similarity blends several string distance algorithms into one score in
// [0, 1]. Both inputs are normalized first; identical normalized strings
// score 1.0 and an empty side scores 0.0.
//
// Components: an LCS sequence ratio, a normalized Levenshtein ratio, a
// token-order-insensitive ratio, an exact-match bonus on the
// parenthesis-stripped forms, and the best pairwise ratio between
// parenthetical contents of the raw inputs. Short strings get special
// handling because the character-level ratios penalize length mismatches
// harshly.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	// Short-title guard: "Help" inside "help live at shea stadium" is a
	// near-certain hit that the blended ratios would reject.
	if minRuneLen(na, nb) <= 5 {
		if containsToken(na, nb) || containsToken(nb, na) {
			return 0.9
		}
	}

	seqRatio := sequenceRatio(na, nb)
	levRatio := strutil.Similarity(na, nb, levenshtein)
	tokenRatio := sequenceRatio(sortTokens(na), sortTokens(nb))

	// Parenthesized qualifiers are stripped from the raw inputs here:
	// normalization has already turned the brackets themselves into spaces.
	baseExact := 0.0
	baseA := Normalize(StripParens(a))
	baseB := Normalize(StripParens(b))
	if baseA == baseB && len([]rune(baseA)) > 3 {
		baseExact = 1.0
	}

	parenSim := parenSimilarity(a, b)

	weighted := 0.3*seqRatio + 0.3*levRatio + 0.3*tokenRatio + 0.5*baseExact + 0.2*parenSim
	score := weighted / 1.6
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CleanTitleForSearch strips featured-artist annotations and version/remix
// qualifiers from a title, producing the "core" search string. Idempotent on
// already-clean input.
func CleanTitleForSearch(title string) string {
	if title == "" {
		return ""
	}

	cleaned := featParenRe.ReplaceAllString(title, "")
	cleaned = withParenRe.ReplaceAllString(cleaned, "")
	cleaned = ftParenRe.ReplaceAllString(cleaned, "")
	cleaned = featTailRe.ReplaceAllString(cleaned, "")
	cleaned = ftTailRe.ReplaceAllString(cleaned, "")
	cleaned = withTailRe.ReplaceAllString(cleaned, "")

	cleaned = versionParenRe.ReplaceAllString(cleaned, "")
	cleaned = editParenRe.ReplaceAllString(cleaned, "")
	cleaned = mixParenRe.ReplaceAllString(cleaned, "")
	cleaned = remasterParenRe.ReplaceAllString(cleaned, "")

	cleaned = strings.ReplaceAll(cleaned, "...", "")
	cleaned = strings.ReplaceAll(cleaned, "/", " ")

	return strings.TrimSpace(cleaned)
}

// sequenceRatio is the classic sequence-alignment ratio: twice the longest
// common subsequence length over the combined length.
func sequenceRatio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la+lb == 0 {
		return 0.0
	}
	lcs := edlib.LCS(a, b)
	return 2.0 * float64(lcs) / float64(la+lb)
}

// parenSimilarity returns the best pairwise sequence ratio between the
// parenthetical substrings of the raw (pre-normalization) inputs, or 0 when
// either side has none.
func parenSimilarity(a, b string) float64 {
	groupsA := parenContentRe.FindAllStringSubmatch(a, -1)
	groupsB := parenContentRe.FindAllStringSubmatch(b, -1)
	if len(groupsA) == 0 || len(groupsB) == 0 {
		return 0.0
	}

	best := 0.0
	for _, ga := range groupsA {
		for _, gb := range groupsB {
			if r := sequenceRatio(ga[1], gb[1]); r > best {
				best = r
			}
		}
	}
	return best
}

// containsToken reports whether needle equals one whole whitespace-delimited
// token of haystack.
func containsToken(needle, haystack string) bool {
	for _, token := range strings.Fields(haystack) {
		if token == needle {
			return true
		}
	}
	return false
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func minRuneLen(a, b string) int {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la < lb {
		return la
	}
	return lb
}
