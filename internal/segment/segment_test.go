package segment

import (
	"strings"
	"testing"

	"docsum/internal/core"
)

func TestSanitiseDocID(t *testing.T) {
	cases := map[string]string{
		"My Doc-1.txt": "my_doc_1_txt",
		"ALLCAPS":      "allcaps",
		"weird!@#name": "weirdname",
	}
	for in, want := range cases {
		if got := SanitiseDocID(in); got != want {
			t.Errorf("SanitiseDocID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContentHashStableUnderWhitespace(t *testing.T) {
	a := "Hello   world.\n\nSecond line."
	b := "Hello world. Second line."
	if ContentHash(a) != ContentHash(b) {
		t.Error("expected identical hashes for whitespace-only reformatting")
	}
}

func TestContentHashDiffersForDifferentText(t *testing.T) {
	if ContentHash("alpha") == ContentHash("beta") {
		t.Error("expected different hashes for different text")
	}
}

func TestExtractProducesUniqueIDsInOrder(t *testing.T) {
	doc := core.ParsedDocument{Sections: []core.Section{
		{Heading: "# One", Level: 1, Blocks: []core.Block{{Text: strings.Repeat("word ", 500)}}},
		{Heading: "# Two", Level: 1, Blocks: []core.Block{{Text: "short"}}},
	}}
	segments := Extract("My Doc", doc, DefaultOptions())
	seen := make(map[string]bool)
	for i, s := range segments {
		if s.Index != i {
			t.Errorf("segment %d has Index %d", i, s.Index)
		}
		if seen[s.ID] {
			t.Errorf("duplicate id %q", s.ID)
		}
		seen[s.ID] = true
		if !strings.HasPrefix(s.ID, "my_doc_") {
			t.Errorf("id %q does not carry sanitised doc id prefix", s.ID)
		}
	}
}

func TestExtractRespectsCharBudget(t *testing.T) {
	doc := core.ParsedDocument{Sections: []core.Section{
		{Heading: "# Long", Level: 1, Blocks: []core.Block{{Text: strings.Repeat("A sentence here. ", 200)}}},
	}}
	segments := Extract("doc", doc, DefaultOptions())
	if len(segments) < 2 {
		t.Fatalf("expected the long section to split into multiple segments, got %d", len(segments))
	}
	for _, s := range segments {
		if len(s.Text) > DefaultOptions().MaxChars+1 {
			t.Errorf("segment exceeds max char budget: %d chars", len(s.Text))
		}
	}
}

func TestSalienceDeterministicAndBounded(t *testing.T) {
	chunks := []string{"The Quick Brown Fox jumps.", "middle chunk text here.", "Final Segment Here."}
	for i, c := range chunks {
		s1 := Salience(chunks, i, c)
		s2 := Salience(chunks, i, c)
		if s1 != s2 {
			t.Errorf("Salience not deterministic: %v vs %v", s1, s2)
		}
		if s1 < 0 || s1 > 1 {
			t.Errorf("Salience out of bounds: %v", s1)
		}
	}
}

func TestSectionPathTracksHeadingHierarchy(t *testing.T) {
	doc := core.ParsedDocument{Sections: []core.Section{
		{Heading: "# Book", Level: 1, Blocks: []core.Block{{Text: "book intro"}}},
		{Heading: "## Chapter 1", Level: 2, Blocks: []core.Block{{Text: "chapter text"}}},
	}}
	segments := Extract("book", doc, DefaultOptions())
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if len(segments[1].SectionPath) != 2 {
		t.Errorf("expected nested section path of length 2, got %v", segments[1].SectionPath)
	}
	if segments[1].SectionPath[0] != "# Book" || segments[1].SectionPath[1] != "## Chapter 1" {
		t.Errorf("unexpected section path: %v", segments[1].SectionPath)
	}
}
