package summarize

import (
	"strings"
	"testing"
)

func TestPartitionSkipsMetaH1(t *testing.T) {
	longA := strings.Repeat("A long line of Hamlet content. ", 10)
	longB := strings.Repeat("A long line of Macbeth content. ", 10)
	md := "# Complete Works\n# Hamlet\n" + longA + "\n# Macbeth\n" + longB

	works := Partition(md)
	if len(works) != 2 {
		t.Fatalf("expected 2 works, got %d: %+v", len(works), works)
	}
	if works[0].Title != "Hamlet" || works[1].Title != "Macbeth" {
		t.Fatalf("unexpected titles: %+v", works)
	}
	if works[0].Index != 0 || works[1].Index != 1 {
		t.Fatalf("expected original-order indices, got %+v", works)
	}
}

func TestPartitionDiscardsShortWorks(t *testing.T) {
	md := "# Title\n# Stub\nA\n# Real\n" + strings.Repeat("word ", 30)
	works := Partition(md)
	if len(works) != 1 {
		t.Fatalf("expected only the long work to survive, got %d: %+v", len(works), works)
	}
	if works[0].Title != "Real" {
		t.Fatalf("expected Real to survive discard, got %+v", works)
	}
}

func TestPartitionNoMetaTitleTreatsFirstH1AsWork(t *testing.T) {
	md := "# Solo Essay\n" + strings.Repeat("word ", 30)
	works := Partition(md)
	if len(works) != 1 || works[0].Title != "Solo Essay" {
		t.Fatalf("expected single work with its own H1 title, got %+v", works)
	}
}
