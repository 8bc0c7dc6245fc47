package summarize

import (
	"fmt"
	"strings"

	"docsum/internal/core"
	"docsum/internal/markdown"
)

const (
	// mapExcerptChars is the single-prompt cap for short works.
	mapExcerptChars = 8000
	// mapSectionExcerptChars is the per-section cap (beginning/middle/
	// end) used for long works.
	mapSectionExcerptChars = 2000
	// longWorkWordThreshold is the word count at or above which a work is
	// excerpted rather than summarised whole.
	longWorkWordThreshold = 2000
)

// DefaultTargetWordsPerWork is the map phase's target summary length.
const DefaultTargetWordsPerWork = 150

// DefaultTargetWordsFinal is the reduce phase's target summary length.
const DefaultTargetWordsFinal = 800

// excerptWork builds the text a map-phase prompt summarises: the whole
// work (capped) when short, or beginning/middle/end excerpts delimited by
// "=== BEGINNING/MIDDLE/END ===" markers when long.
func excerptWork(work core.WorkPartition) string {
	if work.WordCount < longWorkWordThreshold {
		return truncate(work.Content, mapExcerptChars)
	}

	doc := markdown.Parse(work.Content)
	if len(doc.Sections) == 0 {
		return truncate(work.Content, mapExcerptChars)
	}

	beginning := doc.Sections[0].FullText()
	middle := doc.Sections[len(doc.Sections)/2].FullText()
	end := doc.Sections[len(doc.Sections)-1].FullText()

	var b strings.Builder
	b.WriteString("=== BEGINNING ===\n")
	b.WriteString(truncate(beginning, mapSectionExcerptChars))
	b.WriteString("\n\n=== MIDDLE ===\n")
	b.WriteString(truncate(middle, mapSectionExcerptChars))
	b.WriteString("\n\n=== END ===\n")
	b.WriteString(truncate(end, mapSectionExcerptChars))
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// BuildMapPrompt builds the prompt that summarises a single sampled work
// to roughly targetWords.
func BuildMapPrompt(work core.WorkPartition, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following work titled %q in approximately %d words.\n", work.Title, targetWords)
	b.WriteString("Focus on plot, characters, and major themes; do not restate the title.\n\n")
	b.WriteString(excerptWork(work))
	return b.String()
}

// BuildReducePrompt builds the synthesis prompt for the reduce phase,
// given work summaries grouped by inferred type (descending by group
// size), the collection title, an optional focus query, and a flag for
// Shakespeare-specific instructions.
func BuildReducePrompt(collectionTitle string, groups []TypeGroup, totalWorks, summarizedWorks int, focusQuery string, isShakespeare bool, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a cohesive overview of %q in approximately %d words.\n", collectionTitle, targetWords)
	fmt.Fprintf(&b, "The collection contains %d works; summaries for %d of them are provided below, grouped by type.\n\n", totalWorks, summarizedWorks)

	if focusQuery != "" {
		fmt.Fprintf(&b, "Focus the overview on: %s\n\n", focusQuery)
	}
	if isShakespeare {
		b.WriteString("This is a Shakespeare collection: note recurring themes across tragedies, comedies, and histories, and mention stylistic evolution where evident.\n\n")
	}

	for _, g := range groups {
		fmt.Fprintf(&b, "## %s (%d works)\n", g.Type, len(g.Summaries))
		for _, s := range g.Summaries {
			fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Summary)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// BuildSingleDocPrompt builds the retrieval-augmented synthesis prompt
// for the single-document path: synthesise the retrieved top-K segments
// into a coherent summary, optionally focused on query.
func BuildSingleDocPrompt(segments []core.Segment, query string, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a summary in approximately %d words using only the excerpts below.\n", targetWords)
	if query != "" {
		fmt.Fprintf(&b, "Focus on: %s\n", query)
	}
	b.WriteString("\n")
	for _, s := range segments {
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// TypeGroup is one inferred-type bucket of work summaries for the reduce
// prompt.
type TypeGroup struct {
	Type      core.WorkType
	Summaries []WorkSummary
}

// WorkSummary is one work's map-phase output.
type WorkSummary struct {
	Title   string
	Type    core.WorkType
	Summary string
	Failed  bool
}
