package summarize

import (
	"strings"

	"docsum/internal/collection"
	"docsum/internal/core"
)

// minWorkContentChars is the discard threshold for a partitioned work:
// works with content at or below this length are treated as boilerplate
// (a stray heading, a dedication) rather than real content.
const minWorkContentChars = 100

// Partition walks markdown source line by line. Each line starting with
// "# " (an H1) that is not a meta/anthology title opens a new
// WorkPartition; all following lines accumulate as its content until the
// next qualifying H1. Works whose content is at or below
// minWorkContentChars are discarded.
func Partition(markdown string) []core.WorkPartition {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	var works []core.WorkPartition
	var title string
	var content []string
	inWork := false

	flush := func() {
		if !inWork {
			return
		}
		body := strings.TrimSpace(strings.Join(content, "\n"))
		if len(body) > minWorkContentChars {
			works = append(works, core.WorkPartition{
				Title:     title,
				Content:   body,
				Index:     len(works),
				WordCount: wordCount(body),
			})
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "# ") {
			h1Title := strings.TrimSpace(strings.TrimPrefix(line, "# "))
			if collection.QuickIsCollection(h1Title) {
				// Meta/anthology title: skip, do not start a work, but
				// close out whatever work was accumulating.
				flush()
				inWork = false
				content = nil
				continue
			}
			flush()
			title = h1Title
			content = nil
			inWork = true
			continue
		}
		if inWork {
			content = append(content, line)
		}
	}
	flush()

	return works
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
