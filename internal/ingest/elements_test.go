package ingest

import (
	"strings"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

func TestBuildBlocksTitleMergesWithFollowing(t *testing.T) {
	elements := []ports.ParsedElement{
		{Text: "Refunds", ElementType: "Title"},
		{Text: "Refunds are issued within 5 days.", ElementType: "NarrativeText"},
	}

	blocks := buildBlocks(elements)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if !blocks[0].atomic {
		t.Fatalf("title-merged block must be atomic")
	}
	if !strings.Contains(blocks[0].text, "Refunds are issued within 5 days.") {
		t.Fatalf("merged block missing trailing text: %q", blocks[0].text)
	}
	if blocks[0].sectionHeading != "Refunds" {
		t.Fatalf("sectionHeading = %q, want Refunds", blocks[0].sectionHeading)
	}
}

func TestBuildBlocksConsecutiveTitlesStandAlone(t *testing.T) {
	elements := []ports.ParsedElement{
		{Text: "Part One", ElementType: "Title"},
		{Text: "Part Two", ElementType: "Title"},
		{Text: "body text", ElementType: "NarrativeText"},
	}

	blocks := buildBlocks(elements)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].text != "Part One" {
		t.Fatalf("first block = %q, want standalone title", blocks[0].text)
	}
	if !strings.Contains(blocks[1].text, "Part Two") || !strings.Contains(blocks[1].text, "body text") {
		t.Fatalf("second block should merge Part Two with body: %q", blocks[1].text)
	}
}

func TestBuildBlocksListItemsMergeIntoOneAtomicBlock(t *testing.T) {
	elements := []ports.ParsedElement{
		{Text: "first item", ElementType: "ListItem"},
		{Text: "second item", ElementType: "ListItem"},
		{Text: "third item", ElementType: "ListItem"},
		{Text: "after list", ElementType: "NarrativeText"},
	}

	blocks := buildBlocks(elements)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !blocks[0].atomic {
		t.Fatalf("list-item run must be atomic")
	}
	for _, item := range []string{"first item", "second item", "third item"} {
		if !strings.Contains(blocks[0].text, item) {
			t.Fatalf("merged list block missing %q: %q", item, blocks[0].text)
		}
	}
}

func TestBuildBlocksTableIsAlwaysAtomic(t *testing.T) {
	elements := []ports.ParsedElement{
		{
			Text:        "Pricing",
			ElementType: "Table",
			TableRows:   [][]string{{"Plan", "Price"}, {"Basic", "$10"}, {"Pro", "$20"}},
		},
	}

	blocks := buildBlocks(elements)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if !blocks[0].atomic || !blocks[0].isTable {
		t.Fatalf("table block must be atomic and tagged isTable")
	}
	if !strings.Contains(blocks[0].text, "| Plan | Price |") {
		t.Fatalf("table not rendered to markdown grid: %q", blocks[0].text)
	}
}

func TestBuildBlocksDropsEmptyElements(t *testing.T) {
	elements := []ports.ParsedElement{
		{Text: "   ", ElementType: "NarrativeText"},
		{Text: "real content", ElementType: "NarrativeText"},
	}

	blocks := buildBlocks(elements)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1 (empty element dropped)", len(blocks))
	}
	if blocks[0].elementType != domain.ElementNarrativeText {
		t.Fatalf("unexpected element type %v", blocks[0].elementType)
	}
}

func TestRenderTableFallsBackToRawTextWithoutRows(t *testing.T) {
	el := ports.ParsedElement{Text: "raw table text", ElementType: "Table"}
	got := renderTable(el)
	if !strings.HasPrefix(got, "Table:\n") {
		t.Fatalf("want Table: prefix, got %q", got)
	}
}
