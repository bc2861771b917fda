package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceEnd matches terminal punctuation, optional closing quotes or brackets,
// and the whitespace that follows
var sentenceEnd = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`)

// acronym matches dotted initialisms such as "U.S." or "A.I."
var acronym = regexp.MustCompile(`^(\p{Lu}\.){2,}$`)

// abbreviations never end a sentence
var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "etc.": true, "vs.": true, "approx.": true,
	"dr.": true, "mr.": true, "mrs.": true, "ms.": true, "prof.": true,
	"st.": true, "jr.": true, "sr.": true, "inc.": true, "ltd.": true,
	"no.": true, "fig.": true, "cf.": true, "al.": true, "jan.": true,
	"feb.": true, "mar.": true, "apr.": true, "aug.": true, "sep.": true,
	"sept.": true, "oct.": true, "nov.": true, "dec.": true, "a.m.": true,
	"p.m.": true,
}

// SplitSentences splits text at sentence boundaries. A period after a known
// abbreviation, a dotted acronym or a single-letter initial is not a boundary.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if loc[0] < start {
			continue
		}
		if text[loc[0]] == '.' && !isBoundary(text[start:loc[0]+1]) {
			continue
		}
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// isBoundary reports whether the period ending candidate closes a sentence
func isBoundary(candidate string) bool {
	word := candidate
	if i := strings.LastIndexFunc(candidate, unicode.IsSpace); i >= 0 {
		word = candidate[i+1:]
	}
	word = strings.TrimLeft(word, `"'“‘(`)
	if abbreviations[strings.ToLower(word)] || acronym.MatchString(word) {
		return false
	}
	// single-letter initial such as "J." in "J. Smith"
	if utf8.RuneCountInString(word) == 2 {
		r, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// ensureTerminal appends a period to a fragment that does not end a sentence
func ensureTerminal(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	if strings.ContainsRune(".!?", r) {
		return s
	}
	return s + "."
}
