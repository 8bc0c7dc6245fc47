// Package collection classifies a parsed markdown document as either a
// single work or an anthology (collection) of multiple works, and infers
// each work's type.
package collection

import (
	"strings"

	"docsum/internal/core"
)

var anthologyMarkers = []string{
	"complete works",
	"collected",
	"collected works",
	"anthology",
	"complete poems",
	"collected poems",
	"collected stories",
	"omnibus",
}

// QuickIsCollection is the fast path: a title matching any known anthology
// marker is treated as a collection meta-title without further analysis.
func QuickIsCollection(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range anthologyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsShakespeare matches canonical author naming in the collection title.
func IsShakespeare(title string) bool {
	return strings.Contains(strings.ToLower(title), "shakespeare")
}

var tragedyTitles = []string{"hamlet", "macbeth", "othello", "king lear", "romeo and juliet", "tragedy", "tragedies"}
var comedyTitles = []string{"much ado", "twelfth night", "as you like it", "comedy", "comedies", "midsummer"}
var historyTitles = []string{"henry", "richard", "king john", "history", "histories"}
var poetryTitles = []string{"sonnet", "sonnets", "venus and adonis", "the rape of lucrece", "poem", "poems", "poetry"}
var essayTitles = []string{"essay", "essays", "on the", "of the"}

// InferWorkType guesses a work's genre from its title using per-genre
// keyword dictionaries; titles under a Tragedies/Comedies/Histories
// section heading are biased toward that heading's type.
func InferWorkType(title string, sectionHint core.WorkType) core.WorkInfo {
	lower := strings.ToLower(title)

	if matchesAny(lower, tragedyTitles) {
		return core.WorkInfo{Type: core.WorkTragedy, Confidence: 0.8}
	}
	if matchesAny(lower, comedyTitles) {
		return core.WorkInfo{Type: core.WorkComedy, Confidence: 0.8}
	}
	if matchesAny(lower, historyTitles) {
		return core.WorkInfo{Type: core.WorkHistory, Confidence: 0.75}
	}
	if matchesAny(lower, poetryTitles) {
		return core.WorkInfo{Type: core.WorkPoetry, Confidence: 0.75}
	}
	if matchesAny(lower, essayTitles) {
		return core.WorkInfo{Type: core.WorkEssay, Confidence: 0.6}
	}

	if sectionHint != "" && sectionHint != core.WorkUnknown {
		return core.WorkInfo{Type: sectionHint, Confidence: 0.55}
	}
	if hasRomanNumeral(title) {
		return core.WorkInfo{Type: core.WorkPoetry, Confidence: 0.4}
	}
	return core.WorkInfo{Type: core.WorkUnknown, Confidence: 0.3}
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var romanDigits = map[byte]bool{'I': true, 'V': true, 'X': true, 'L': true, 'C': true, 'D': true, 'M': true}

func hasRomanNumeral(title string) bool {
	fields := strings.Fields(title)
	for _, f := range fields {
		if len(f) == 0 {
			continue
		}
		allRoman := true
		for i := 0; i < len(f); i++ {
			if !romanDigits[f[i]] {
				allRoman = false
				break
			}
		}
		if allRoman {
			return true
		}
	}
	return false
}

// Detect inspects a parsed document's H1 sections and returns whether it
// is a collection, and if so, the works it enumerates.
func Detect(doc core.ParsedDocument) core.CollectionInfo {
	var h1s []core.Section
	for _, s := range doc.Sections {
		if s.Level == 1 {
			h1s = append(h1s, s)
		}
	}
	if len(h1s) == 0 {
		return core.CollectionInfo{IsCollection: false}
	}

	meta := h1s[0]
	metaTitle := headingText(meta.Heading)
	isMeta := QuickIsCollection(metaTitle)
	remaining := h1s
	if isMeta {
		remaining = h1s[1:]
	}

	isCollection := isMeta || len(remaining) > 1
	if !isCollection {
		return core.CollectionInfo{IsCollection: false}
	}

	shakespeare := IsShakespeare(metaTitle)
	var works []core.CollectionWork
	var sectionHint core.WorkType
	for _, s := range remaining {
		title := headingText(s.Heading)
		if hint := headingSectionHint(title); hint != "" {
			sectionHint = hint
			continue
		}
		info := InferWorkType(title, sectionHint)
		works = append(works, core.CollectionWork{Title: title, Type: info.Type})
	}

	strategy := core.ModeAuto
	return core.CollectionInfo{
		IsCollection:    true,
		CollectionTitle: metaTitle,
		Works:           works,
		IsShakespeare:   shakespeare,
		Strategy:        strategy,
	}
}

func headingSectionHint(title string) core.WorkType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "tragedies"):
		return core.WorkTragedy
	case strings.Contains(lower, "comedies"):
		return core.WorkComedy
	case strings.Contains(lower, "histories"):
		return core.WorkHistory
	case strings.Contains(lower, "poems"), strings.Contains(lower, "sonnets"):
		return core.WorkPoetry
	}
	return ""
}

func headingText(markdownHeading string) string {
	return strings.TrimSpace(strings.TrimLeft(markdownHeading, "#"))
}
