package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// Chunking strategy tags carried in chunk metadata. Downstream retrieval and
// evaluation use them to explain why a passage was segmented the way it was.
const (
	StrategyScriptAware = "script-aware"
	StrategyGeneric     = "generic"
)

// cjkRatioThreshold selects the script-aware splitter when more than half of
// a unit's non-whitespace characters are CJK.
const cjkRatioThreshold = 0.5

// Splitter turns one normalized text string into an ordered sequence of
// overlapping pieces, each within [1, chunkSize] runes.
type Splitter interface {
	// Split returns the trimmed, non-empty pieces of text in order.
	Split(text string) []string

	// Strategy returns the strategy tag recorded in chunk metadata.
	Strategy() string
}

// SplitterFor selects a chunking strategy from a language profile: CJK-heavy
// text gets the script-aware splitter, everything else the generic sentence
// splitter.
func SplitterFor(p Profile, chunkSize, overlap int) Splitter {
	if p.CJKRatio > cjkRatioThreshold {
		return &scriptAwareSplitter{chunkSize: chunkSize, overlap: overlap}
	}
	return &sentenceSplitter{chunkSize: chunkSize, overlap: overlap}
}

// boundaryClasses lists boundary marker classes in strict priority order:
// sentence terminators, clause separators, item separators. Plain whitespace
// is the implicit final class.
var boundaryClasses = []string{"。！？", "；：", "，、"}

// scriptAwareSplitter cuts CJK-heavy text at ideographic punctuation
// boundaries, falling back to fixed-width cuts when no boundary lands past
// the window midpoint.
type scriptAwareSplitter struct {
	chunkSize int
	overlap   int
}

func (*scriptAwareSplitter) Strategy() string { return StrategyScriptAware }

// Split implements the boundary-preferring overlap algorithm.
//
// The cursor walks the rune slice in windows of chunkSize. Within each
// non-final window the rightmost boundary of the highest-priority class is
// chosen; the cut moves there only if it lies past the window midpoint, so a
// chunk never shrinks below half the target size for the sake of a boundary.
// The cursor then advances to max(start+1, end-overlap), which guarantees
// forward progress even for overlap >= chunkSize.
func (s *scriptAwareSplitter) Split(text string) []string {
	runes := []rune(text)

	if len(runes) <= s.chunkSize {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + s.chunkSize
		atTail := end >= len(runes)

		if atTail {
			end = len(runes)
		} else if cut, ok := lastBoundary(runes[start:end]); ok && cut > s.chunkSize/2 {
			// Cut just after the boundary marker.
			end = start + cut + 1
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}

		if atTail {
			break
		}

		// Forward-progress guard: overlap >= chunkSize or a boundary cut
		// close to start must never move the cursor backwards.
		start = max(start+1, end-s.overlap)
	}

	return chunks
}

// lastBoundary finds the rightmost boundary marker in window, trying marker
// classes in priority order. The first class with at least one match wins.
// Returns the window-relative rune index of the marker and whether any class
// matched.
func lastBoundary(window []rune) (int, bool) {
	for _, class := range boundaryClasses {
		for i := len(window) - 1; i >= 0; i-- {
			if strings.ContainsRune(class, window[i]) {
				return i, true
			}
		}
	}

	// Final class: plain whitespace.
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i, true
		}
	}

	return 0, false
}

// sentenceSplitter is the generic strategy for Latin-dominant text. It
// segments sentences per Unicode UAX #29 and packs whole sentences greedily
// into chunks, carrying an overlap tail between adjacent chunks.
type sentenceSplitter struct {
	chunkSize int
	overlap   int
}

func (*sentenceSplitter) Strategy() string { return StrategyGeneric }

func (s *sentenceSplitter) Split(text string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var parts []string
	segs := sentences.FromString(text)
	for segs.Next() {
		if v := strings.TrimSpace(segs.Value()); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return hardWrap(text, s.chunkSize, s.overlap)
	}

	var chunks []string
	var cur []rune

	flush := func() {
		if piece := strings.TrimSpace(string(cur)); piece != "" {
			chunks = append(chunks, piece)
		}
	}

	for _, sent := range parts {
		sr := []rune(sent)

		// A single sentence longer than the chunk size gets fixed-width cuts.
		if len(sr) > s.chunkSize {
			flush()
			cur = nil
			chunks = append(chunks, hardWrap(sent, s.chunkSize, s.overlap)...)
			continue
		}

		if len(cur) > 0 && len(cur)+1+len(sr) > s.chunkSize {
			flush()
			cur = overlapTail(cur, s.overlap)
			// Drop the tail if the next sentence alone already fills the chunk.
			if len(cur)+1+len(sr) > s.chunkSize {
				cur = nil
			}
		}

		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, sr...)
	}
	flush()

	return chunks
}

// overlapTail returns the last n runes of cur, preferring to start at a word
// boundary inside the tail.
func overlapTail(cur []rune, n int) []rune {
	if n <= 0 || len(cur) == 0 {
		return nil
	}
	if len(cur) <= n {
		return append([]rune(nil), cur...)
	}

	tail := cur[len(cur)-n:]
	for i, r := range tail {
		if unicode.IsSpace(r) {
			tail = tail[i+1:]
			break
		}
	}
	return append([]rune(nil), tail...)
}

// hardWrap emits fixed-width pieces of size runes advancing by size-overlap,
// the degenerate strategy for text with no usable boundaries.
func hardWrap(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step < 1 {
		step = 1
	}

	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return pieces
}
