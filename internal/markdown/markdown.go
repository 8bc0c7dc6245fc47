// Package markdown parses markdown text into an ordered section/block
// tree. It is a hand-rolled line-oriented parser, not a CommonMark
// engine: the pipeline only needs heading-hierarchy boundaries and a
// handful of block kinds, not full markdown fidelity.
package markdown

import (
	"regexp"
	"strings"

	"docsum/internal/core"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// Parse converts markdown source into a ParsedDocument: a flat, ordered
// list of sections, each owning a heading and the blocks up to (but not
// including) the next heading of any level. Each section keeps its
// heading level, so callers can rebuild the hierarchy.
func Parse(source string) core.ParsedDocument {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	var sections []core.Section
	var cur *core.Section

	flushParagraph := func(buf *[]string) {
		if cur == nil || len(*buf) == 0 {
			*buf = (*buf)[:0]
			return
		}
		text := strings.TrimRight(strings.Join(*buf, "\n"), "\n")
		if strings.TrimSpace(text) != "" {
			cur.Blocks = append(cur.Blocks, core.Block{Kind: core.BlockParagraph, Text: text})
		}
		*buf = (*buf)[:0]
	}

	ensureSection := func() {
		if cur == nil {
			sections = append(sections, core.Section{})
			cur = &sections[len(sections)-1]
		}
	}

	var paragraphBuf []string
	var codeBuf []string
	inCode := false
	var blockquoteBuf []string
	inBlockquote := false

	flushBlockquote := func() {
		if cur == nil || len(blockquoteBuf) == 0 {
			blockquoteBuf = blockquoteBuf[:0]
			return
		}
		text := strings.Join(blockquoteBuf, "\n")
		cur.Blocks = append(cur.Blocks, core.Block{Kind: core.BlockBlockquote, Text: text})
		blockquoteBuf = blockquoteBuf[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")

		if strings.HasPrefix(strings.TrimSpace(trimmed), "```") {
			if inCode {
				if cur != nil {
					cur.Blocks = append(cur.Blocks, core.Block{
						Kind: core.BlockCode,
						Text: strings.Join(codeBuf, "\n"),
					})
				}
				codeBuf = codeBuf[:0]
				inCode = false
			} else {
				flushParagraph(&paragraphBuf)
				flushBlockquote()
				ensureSection()
				inCode = true
			}
			continue
		}
		if inCode {
			codeBuf = append(codeBuf, line)
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flushParagraph(&paragraphBuf)
			flushBlockquote()
			level := len(m[1])
			sections = append(sections, core.Section{Heading: trimmed, Level: level})
			cur = &sections[len(sections)-1]
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(trimmed), ">") {
			flushParagraph(&paragraphBuf)
			ensureSection()
			inBlockquote = true
			content := strings.TrimPrefix(strings.TrimSpace(trimmed), ">")
			blockquoteBuf = append(blockquoteBuf, strings.TrimPrefix(content, " "))
			continue
		}
		if inBlockquote && strings.TrimSpace(trimmed) == "" {
			flushBlockquote()
			inBlockquote = false
			continue
		}

		if isListItem(trimmed) {
			flushParagraph(&paragraphBuf)
			ensureSection()
			cur.Blocks = append(cur.Blocks, core.Block{
				Kind: core.BlockListItem,
				Text: strings.TrimSpace(trimmed),
			})
			continue
		}

		if strings.TrimSpace(trimmed) == "" {
			flushParagraph(&paragraphBuf)
			continue
		}

		ensureSection()
		paragraphBuf = append(paragraphBuf, trimmed)
	}
	flushParagraph(&paragraphBuf)
	flushBlockquote()
	if inCode && cur != nil && len(codeBuf) > 0 {
		cur.Blocks = append(cur.Blocks, core.Block{Kind: core.BlockCode, Text: strings.Join(codeBuf, "\n")})
	}

	return core.ParsedDocument{Sections: sections}
}

var listItemRe = regexp.MustCompile(`^[-*+]\s+|^\d+\.\s+`)

func isListItem(line string) bool {
	return listItemRe.MatchString(strings.TrimSpace(line))
}
