// Package segment splits a parsed document into bounded-length segments,
// computing the stable identifiers, content hashes, and salience scores
// the retrieval engine depends on.
package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"docsum/internal/core"
)

// Options configures segment extraction.
type Options struct {
	MinChars int // default 800
	MaxChars int // default 1500
}

// DefaultOptions returns the character budget specified for extraction.
func DefaultOptions() Options {
	return Options{MinChars: 800, MaxChars: 1500}
}

var idSanitiser = regexp.MustCompile(`[.\- ]`)
var idAllowed = regexp.MustCompile(`[^a-z0-9_]`)

// SanitiseDocID lowercases the input and maps '.', '-', and space to '_',
// dropping any other character outside [a-z0-9_].
func SanitiseDocID(docID string) string {
	s := strings.ToLower(docID)
	s = idSanitiser.ReplaceAllString(s, "_")
	s = idAllowed.ReplaceAllString(s, "")
	return s
}

var sentenceBoundary = regexp.MustCompile(`([.!?])(\s+)`)

// Extract walks a ParsedDocument section by section, splitting each
// section's full text into segments within the configured character
// budget, preferring to split on sentence boundaries.
func Extract(docID string, doc core.ParsedDocument, opts Options) []core.Segment {
	sanitised := SanitiseDocID(docID)
	var segments []core.Segment
	index := 0

	type level struct {
		depth   int
		heading string
	}
	var stack []level
	for _, section := range doc.Sections {
		if section.Heading != "" {
			for len(stack) > 0 && stack[len(stack)-1].depth >= section.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, level{depth: section.Level, heading: section.Heading})
		}
		sectionPath := make([]string, len(stack))
		for i, l := range stack {
			sectionPath[i] = l.heading
		}
		text := section.FullText()
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks := splitIntoChunks(text, opts)
		for i, chunk := range chunks {
			seg := core.Segment{
				ID:           sanitised + "_" + itoa(index),
				DocID:        docID,
				Index:        index,
				Text:         chunk,
				ContentHash:  ContentHash(chunk),
				SectionPath:  append([]string{}, sectionPath...),
			}
			seg.SalienceScore = Salience(chunks, i, chunk)
			segments = append(segments, seg)
			index++
		}
	}
	return segments
}

// splitIntoChunks breaks text into pieces of at most MaxChars, cutting at
// the last sentence boundary in each window when that keeps the piece at
// MinChars or more. Text already within MaxChars, and the final piece,
// may be shorter than MinChars.
func splitIntoChunks(text string, opts Options) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxChars {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > opts.MaxChars {
		window := remaining[:opts.MaxChars]
		cut := lastSentenceBoundary(window)
		if cut < opts.MinChars {
			cut = opts.MaxChars
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimSpace(remaining[cut:])
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func lastSentenceBoundary(window string) int {
	locs := sentenceBoundary.FindAllStringIndex(window, -1)
	if len(locs) == 0 {
		return len(window)
	}
	last := locs[len(locs)-1]
	return last[1]
}

// ContentHash returns a stable hex digest of text after whitespace
// normalisation, so reformatting that only changes whitespace produces an
// identical hash.
func ContentHash(text string) string {
	normalised := normaliseWhitespace(text)
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normaliseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Salience computes a deterministic, query-independent importance score in
// [0,1] from three local signals: heading proximity, capitalised-token
// density, and position within the section's chunk list.
func Salience(chunks []string, i int, text string) float64 {
	proximity := headingProximity(i)
	density := capitalisedDensity(text)
	position := 0.0
	if i == 0 || i == len(chunks)-1 {
		position = 0.15
	}

	score := 0.5*proximity + 0.3*density + 0.2*position
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func headingProximity(i int) float64 {
	v := 1.0 - 0.15*float64(i)
	if v < 0.1 {
		v = 0.1
	}
	return v
}

func capitalisedDensity(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	count := 0
	for i, f := range fields {
		if i == 0 {
			continue // sentence-initial word excluded
		}
		r := []rune(f)
		if len(r) == 0 {
			continue
		}
		if unicode.IsUpper(r[0]) {
			count++
		}
	}
	denom := len(fields) - 1
	if denom <= 0 {
		return 0
	}
	return float64(count) / float64(denom)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
