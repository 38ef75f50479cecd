package ingest

import (
	"regexp"
	"unicode"
)

var (
	// sentenceRun matches runs of sentence terminators, both CJK and Latin.
	sentenceRun = regexp.MustCompile(`[。！？.!?]+`)

	// paragraphRun matches blank-line runs separating paragraphs.
	paragraphRun = regexp.MustCompile(`\n[ \t]*\n+`)
)

// Profile summarizes the script composition of one raw text unit. It is
// computed once per unit, before normalization, and drives the chunking
// strategy choice downstream.
type Profile struct {
	// CJKRatio is (CJK code points) / (non-whitespace characters), in [0,1].
	CJKRatio float64

	// Sentences is the number of sentence segments, floored at 1 so it is
	// always safe as a divisor.
	Sentences int

	// Paragraphs is the number of blank-line separated blocks, floored at 1.
	Paragraphs int
}

// ProfileText measures the CJK character ratio and sentence/paragraph counts
// of text. An empty or whitespace-only input yields a zero ratio with both
// counts floored at 1.
func ProfileText(text string) Profile {
	var cjk, nonSpace int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if isCJK(r) {
			cjk++
		}
	}

	var ratio float64
	if nonSpace > 0 {
		ratio = float64(cjk) / float64(nonSpace)
	}

	return Profile{
		CJKRatio:   ratio,
		Sentences:  countSegments(text, sentenceRun),
		Paragraphs: countSegments(text, paragraphRun),
	}
}

// countSegments counts non-empty segments produced by splitting text on sep
// runs, floored at 1 to avoid division by zero in downstream consumers.
func countSegments(text string, sep *regexp.Regexp) int {
	n := 0
	for _, seg := range sep.Split(text, -1) {
		if containsNonSpace(seg) {
			n++
		}
	}
	if n < 1 {
		return 1
	}
	return n
}

func containsNonSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
