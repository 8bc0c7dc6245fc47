// Package archive safely extracts a text payload from compressed archives.
// Only the .zip format is supported; entries are inspected before any of
// their content is decoded, and three safety bounds guard against
// zip-bomb style inputs.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"docsum/internal/apperr"
	"docsum/internal/core"
)

// Options configures the ingestor's safety bounds.
type Options struct {
	MaxEntries    int     // default 1000
	MaxSize       int64   // default 100 MiB
	MaxRatio      float64 // default 100.0
	MaxCandidates int     // default 10
}

// DefaultOptions returns the bounds specified for archive ingestion.
func DefaultOptions() Options {
	return Options{
		MaxEntries:    1000,
		MaxSize:       100 * 1024 * 1024,
		MaxRatio:      100.0,
		MaxCandidates: 10,
	}
}

var candidateExtensions = map[string]int{
	".html":     3,
	".htm":      3,
	".xhtml":    3,
	".md":       2,
	".markdown": 2,
	".txt":      1,
	".text":     1,
}

type candidate struct {
	entry      *zip.File
	extension  string
	priority   int
	uncompr    int64
	compr      int64
}

// Ingest opens a .zip archive held in memory, selects its main text entry,
// and returns the flattened markdown payload alongside an ArchiveInfo
// describing the decision.
func Ingest(data []byte, opts Options) (string, core.ArchiveInfo, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		info := core.ArchiveInfo{IsValid: false, Error: "ReadFailure"}
		return "", info, apperr.Wrap(apperr.ArchiveRejected, "ReadFailure", err)
	}

	if len(zr.File) > opts.MaxEntries {
		info := core.ArchiveInfo{IsValid: false, Error: "TooManyEntries"}
		return "", info, apperr.New(apperr.ArchiveRejected, "TooManyEntries")
	}

	var candidates []candidate
	var totalUncompressed int64
	isGutenberg := false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(f.Name, "images/") {
			isGutenberg = true
		}
		ext := strings.ToLower(path.Ext(f.Name))
		priority, ok := candidateExtensions[ext]
		if !ok {
			continue
		}
		if gutenbergFilename.MatchString(path.Base(f.Name)) {
			isGutenberg = true
		}
		c := candidate{
			entry:     f,
			extension: ext,
			priority:  priority,
			uncompr:   int64(f.UncompressedSize64),
			compr:     int64(f.CompressedSize64),
		}
		candidates = append(candidates, c)
		totalUncompressed += c.uncompr
	}

	if len(candidates) == 0 {
		info := core.ArchiveInfo{IsValid: false, Error: "NoTextFiles"}
		return "", info, apperr.New(apperr.ArchiveRejected, "NoTextFiles")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].uncompr > candidates[j].uncompr
	})
	if len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	// The ratio bound compares the summed uncompressed size of all text
	// candidates with the size of the archive itself.
	if len(data) > 0 {
		ratio := float64(totalUncompressed) / float64(len(data))
		if ratio > opts.MaxRatio {
			info := core.ArchiveInfo{IsValid: false, Error: "SuspiciousRatio"}
			return "", info, apperr.New(apperr.ArchiveRejected,
				fmt.Sprintf("SuspiciousRatio: %.1f > %.1f", ratio, opts.MaxRatio))
		}
	}

	var candidateTotal int64
	for _, c := range candidates {
		candidateTotal += c.uncompr
	}
	if candidateTotal > opts.MaxSize {
		info := core.ArchiveInfo{IsValid: false, Error: "ContentTooLarge"}
		return "", info, apperr.New(apperr.ArchiveRejected, "ContentTooLarge")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].uncompr > candidates[j].uncompr
	})
	main := candidates[0]

	if gutenbergFilename.MatchString(path.Base(main.entry.Name)) {
		isGutenberg = true
	}

	raw, err := readEntryBounded(main.entry, opts.MaxSize)
	if err != nil {
		info := core.ArchiveInfo{IsValid: false, Error: err.Error()}
		return "", info, apperr.Wrap(apperr.ArchiveRejected, err.Error(), err)
	}

	ratio := 0.0
	if main.compr > 0 {
		ratio = float64(main.uncompr) / float64(main.compr)
	}

	markdown := raw
	if main.priority == 3 {
		markdown = htmlToMarkdown(raw, isGutenberg)
	}

	info := core.ArchiveInfo{
		IsValid:          true,
		MainFileName:     main.entry.Name,
		MainFileSize:     main.uncompr,
		TotalTextFiles:   len(candidates),
		CompressionRatio: ratio,
		IsGutenberg:      isGutenberg,
	}
	return markdown, info, nil
}

var gutenbergFilename = regexp.MustCompile(`(?i)^pg\d+(-\w+)?\.html?$`)

// readEntryBounded decodes an entry's text content while re-enforcing the
// size bound against the actual decoded byte count (not an approximation).
func readEntryBounded(f *zip.File, maxSize int64) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("ReadFailure")
	}
	defer rc.Close()

	var buf bytes.Buffer
	chunk := make([]byte, 64*1024)
	for {
		n, rerr := rc.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > maxSize {
				return "", fmt.Errorf("ContentTooLarge")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("ReadFailure")
		}
	}

	return stripBOM(buf.Bytes()), nil
}

func stripBOM(b []byte) string {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		b = b[3:]
	}
	if !utf8.Valid(b) {
		return string(bytes.ToValidUTF8(b, []byte("")))
	}
	return string(b)
}

var (
	scriptStyleHeadRe = regexp.MustCompile(`(?is)<(script|style|head)\b[^>]*>.*?</(script|style|head)>`)
	headingRe         = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	blockquoteRe      = regexp.MustCompile(`(?is)<blockquote[^>]*>(.*?)</blockquote>`)
	paragraphOpenRe   = regexp.MustCompile(`(?i)<p[^>]*>`)
	paragraphCloseRe  = regexp.MustCompile(`(?i)</p>`)
	brRe              = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrRe              = regexp.MustCompile(`(?i)<hr\s*/?>`)
	anyTagRe          = regexp.MustCompile(`(?s)<[^>]+>`)
	runsOfSpaceRe     = regexp.MustCompile(`[ \t]+`)
	runsOfNewlineRe   = regexp.MustCompile(`\n{3,}`)
	pgHeaderFooterRe  = regexp.MustCompile(`(?is)<div[^>]*\bid\s*=\s*"pg-(header|footer)"[^>]*>.*?</div>|<div[^>]*\bclass\s*=\s*"pg-(header|footer)"[^>]*>.*?</div>`)
	gutenbergStartRe  = regexp.MustCompile(`(?is)\*\*\*\s*START OF[^*]*\*\*\*`)
	gutenbergEndRe    = regexp.MustCompile(`(?is)\*\*\*\s*END OF[^*]*\*\*\*`)
)

// htmlToMarkdown performs regex-based structural flattening: a full HTML
// parser is out of scope. Only the handful of tags that matter for
// summarisation input are converted; everything else is stripped.
func htmlToMarkdown(html string, gutenberg bool) string {
	if gutenberg {
		html = stripGutenbergBoilerplate(html)
	}

	out := scriptStyleHeadRe.ReplaceAllString(html, "")
	out = pgHeaderFooterRe.ReplaceAllString(out, "")

	out = headingRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := headingRe.FindStringSubmatch(m)
		return "\n" + strings.Repeat("#", levelOf(sub[1])) + " " + stripInline(sub[2]) + "\n"
	})

	out = blockquoteRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := blockquoteRe.FindStringSubmatch(m)
		lines := strings.Split(stripInline(sub[1]), "\n")
		for i, l := range lines {
			l = strings.TrimSpace(l)
			if l == "" {
				continue
			}
			lines[i] = "> " + l
		}
		return "\n" + strings.Join(lines, "\n") + "\n"
	})

	out = paragraphOpenRe.ReplaceAllString(out, "\n")
	out = paragraphCloseRe.ReplaceAllString(out, "\n")
	out = brRe.ReplaceAllString(out, "\n")
	out = hrRe.ReplaceAllString(out, "\n---\n")
	out = anyTagRe.ReplaceAllString(out, "")
	out = decodeEntities(out)
	out = runsOfSpaceRe.ReplaceAllString(out, " ")
	out = runsOfNewlineRe.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}

func levelOf(digits string) int {
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		n = 1
	}
	if n > 6 {
		n = 6
	}
	return n
}

func stripInline(s string) string {
	s = brRe.ReplaceAllString(s, "\n")
	return anyTagRe.ReplaceAllString(s, "")
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
	"&apos;", "'",
	"&mdash;", "--",
	"&ndash;", "-",
	"&hellip;", "...",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// stripGutenbergBoilerplate discards everything before the start marker and
// after the end marker of a Project Gutenberg HTML payload.
func stripGutenbergBoilerplate(html string) string {
	if loc := gutenbergStartRe.FindStringIndex(html); loc != nil {
		html = html[loc[1]:]
	}
	if loc := gutenbergEndRe.FindStringIndex(html); loc != nil {
		html = html[:loc[0]]
	}
	return html
}
