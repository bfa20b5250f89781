package extract

import (
	"strings"
	"unicode"
)

// Detector reports whether a string looks machine-generated rather than like
// natural-language words. Used to tell CMS hash slugs apart from category
// names.
type Detector func(s string) bool

// commonBigrams are letter pairs frequent in Latin-script languages. A slug
// whose bigrams mostly fall outside this set (and contain no vowel) reads as
// random.
var commonBigrams = map[string]bool{}

func init() {
	pairs := strings.Fields(`
		th he in er an re on at en nd ti es or te of ed is it al ar st
		to nt ng se ha as ou io le ve co me de hi ri ro ic ne ea ra ce
		li ch ll be ma si om ur ca el ta la ns di fo ho pe ec pr no ct
		us ac ot il tr ly nc et ut ss so rs un lo wa ge ie wh ee wi em
		ad ol rt po we na ul ni ts mo ow pa im mi ai sh ir su id os iv
		ia am fi ci vi pl ig tu ev ld ry mp fe bl ab gh ty op wo sa ay
		ex ke fr oo av ag if ap gr od bo sp rd do uc bu ei ov by rm ep
		tt fa ef cu rn sc gi qu ue ua`)
	for _, p := range pairs {
		commonBigrams[p] = true
	}
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	// Accented vowels are common in non-English slugs.
	return strings.ContainsRune("áéíóúàèìòùâêîôûäëïöü", unicode.ToLower(r))
}

// NewDetector builds a bigram-based random-string detector. With allowNumbers
// set, digit runs do not count against a string (numeric article ids are
// handled by other heuristics).
func NewDetector(allowNumbers bool) Detector {
	return func(s string) bool {
		word := strings.ToLower(strings.TrimSpace(s))
		runes := []rune(word)
		if len(runes) < 4 {
			return false
		}

		total := 0
		implausible := 0
		for i := 0; i+1 < len(runes); i++ {
			a, b := runes[i], runes[i+1]

			// Separators act as word boundaries, not evidence.
			if !unicode.IsLetter(a) && !unicode.IsDigit(a) ||
				!unicode.IsLetter(b) && !unicode.IsDigit(b) {
				continue
			}
			total++

			if unicode.IsDigit(a) || unicode.IsDigit(b) {
				if !allowNumbers {
					implausible++
				}
				continue
			}
			if isVowel(a) || isVowel(b) {
				continue
			}
			if !commonBigrams[string([]rune{a, b})] {
				implausible++
			}
		}

		if total == 0 {
			return false
		}
		return float64(implausible)/float64(total) > 0.5
	}
}
