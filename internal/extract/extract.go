// Package extract decides which anchors on a newspaper category page are
// article links. It is pure: given the same document, base URL, whitelist and
// random-string detector it always accepts the same set of URLs.
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minHeadlineLength is the minimum displayed-text length for an anchor
	// to qualify as a headline.
	minHeadlineLength = 14

	// minSlugLength is the decoded-slug length above which a URL is assumed
	// to carry a headline slug.
	minSlugLength = 20

	// minTitleLength is the anchor-text length below which the title finder
	// widens its search to siblings and ancestors.
	minTitleLength = 12
)

var (
	// datePathPattern matches /YYYY/M(M)/D(D)/ or YYYY-M(M)-D(D) in a path.
	// A date in the path overrides the category-page heuristic.
	datePathPattern = regexp.MustCompile(`(/\d{4}/\d{1,2}[/-]\d{1,2}/|\d{4}-\d{1,2}-\d{1,2})`)

	htmlSuffixPattern = regexp.MustCompile(`\.s?html?$`)
	longDigitsPattern = regexp.MustCompile(`\d{6,}`)
)

// Extractor classifies anchors on a category page.
type Extractor struct {
	detector Detector
}

// New returns an Extractor with the default random-string detector.
func New() *Extractor {
	return &Extractor{detector: NewDetector(true)}
}

// NewWithDetector returns an Extractor using a caller-provided detector.
// Tests use this to pin down detector behavior.
func NewWithDetector(d Detector) *Extractor {
	return &Extractor{detector: d}
}

// FindTitle finds the best headline text for an anchor. It starts with the
// anchor's own text and, while that stays short, takes the longest direct
// sibling text, then recurses upward. Stops at the document root.
func FindTitle(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	best := collapseSpace(sel.Text())
	if runeLen(best) > minTitleLength {
		return best
	}

	parent := sel.Parent()
	if parent.Length() == 0 {
		return best
	}

	parent.Children().Each(func(_ int, child *goquery.Selection) {
		text := collapseSpace(child.Text())
		if runeLen(text) > runeLen(best) {
			best = text
		}
	})

	if runeLen(best) <= minTitleLength {
		return FindTitle(parent)
	}
	return best
}

// IsLikelyArticle applies the classification ladder to a single anchor. The
// href is resolved against baseURL; text is the displayed headline candidate.
func (e *Extractor) IsLikelyArticle(href, text, baseURL string, whitelist []string) bool {
	if href == "" {
		return false
	}
	if text != "" && !containsLetter(text) {
		return false
	}
	if runeLen(text) < minHeadlineLength {
		return false
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	full, err := Resolve(baseURL, href)
	if err != nil {
		return false
	}

	// Root pages and the category page itself are never articles.
	if full.Path == "" || full.Path == "/" || full.String() == base.String() {
		return false
	}

	// A whitelist match is a definitive yes, overriding every heuristic.
	for _, pattern := range whitelist {
		if matchesWhitelist(pattern, full) {
			return true
		}
	}

	// Without a whitelist match, the link must extend the category URL.
	if !strings.HasPrefix(comparableURL(full), comparableURL(base)) {
		return false
	}

	if normalizeHost(full.Host) != normalizeHost(base.Host) {
		return false
	}

	slug := pathSlug(full.Path)
	if slug == "" {
		return false
	}

	// Short, non-random slug on a URL barely longer than the category page
	// reads as another category page, unless a date appears in the path.
	shortLowEntropySlug := runeLen(slug) < 16 && !e.detector(slug)
	shortOverallURL := len(full.String()) < 2*len(baseURL)
	if shortLowEntropySlug && shortOverallURL && !datePathPattern.MatchString(full.Path) {
		return false
	}

	if htmlSuffixPattern.MatchString(full.Path) ||
		datePathPattern.MatchString(full.Path) ||
		longDigitsPattern.MatchString(full.Path) ||
		runeLen(slug) > minSlugLength ||
		e.detector(slug) {
		return true
	}

	return false
}

// matchesWhitelist tries the pattern as a regular expression anchored at the
// start of the absolute URL; if the pattern is not valid regex syntax it
// falls back to a protocol-less prefix comparison.
func matchesWhitelist(pattern string, full *url.URL) bool {
	if re, err := regexp.Compile(pattern); err == nil {
		loc := re.FindStringIndex(full.String())
		return loc != nil && loc[0] == 0
	}

	prefix, err := url.Parse(pattern)
	if err != nil {
		return false
	}
	return strings.HasPrefix(comparableURL(full), comparableURL(prefix))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
