package ingest

import (
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// block is an intermediate unit between a raw ParsedElement and an emitted
// chunk: either atomic (must stay whole in one chunk) or free to be
// concatenated with neighboring blocks in the same section.
type block struct {
	text           string
	elementType    domain.ElementType
	sectionHeading string
	atomic         bool
	isTable        bool
}

// buildBlocks walks the parser's element stream and applies the structural
// merge rules from spec §4.1 stage 2:
//   - a running "current section heading" updates on every Title and
//     attaches to every subsequent element
//   - a Title merges with the single immediately-following non-Title
//     element into one atomic block
//   - a run of consecutive ListItems merges into one atomic,
//     bullet-prefixed block
//   - a Table is rendered to markdown-grid form (or "Table:" prefixed raw
//     text) and is always atomic
//   - empty-text elements are dropped before any of the above
func buildBlocks(elements []ports.ParsedElement) []block {
	elements = dropEmpty(elements)

	var blocks []block
	section := ""

	for i := 0; i < len(elements); i++ {
		el := elements[i]

		switch domain.ElementType(el.ElementType) {
		case domain.ElementTitle:
			section = el.Text
			if i+1 < len(elements) && domain.ElementType(elements[i+1].ElementType) != domain.ElementTitle {
				next := elements[i+1]
				nextText := next.Text
				isTable := false
				switch domain.ElementType(next.ElementType) {
				case domain.ElementTable:
					nextText = renderTable(next)
					isTable = true
				case domain.ElementListItem:
					items := []string{next.Text}
					for i+2 < len(elements) && domain.ElementType(elements[i+2].ElementType) == domain.ElementListItem {
						i++
						items = append(items, elements[i+1].Text)
					}
					nextText = renderListItems(items)
				}
				blocks = append(blocks, block{
					text:           el.Text + "\n\n" + nextText,
					elementType:    domain.ElementTitle,
					sectionHeading: section,
					atomic:         true,
					isTable:        isTable,
				})
				i++
				continue
			}
			blocks = append(blocks, block{
				text:           el.Text,
				elementType:    domain.ElementTitle,
				sectionHeading: section,
				atomic:         true,
			})

		case domain.ElementTable:
			blocks = append(blocks, block{
				text:           renderTable(el),
				elementType:    domain.ElementTable,
				sectionHeading: section,
				atomic:         true,
				isTable:        true,
			})

		case domain.ElementListItem:
			var items []string
			items = append(items, el.Text)
			for i+1 < len(elements) && domain.ElementType(elements[i+1].ElementType) == domain.ElementListItem {
				i++
				items = append(items, elements[i].Text)
			}
			blocks = append(blocks, block{
				text:           renderListItems(items),
				elementType:    domain.ElementListItem,
				sectionHeading: section,
				atomic:         true,
			})

		default:
			blocks = append(blocks, block{
				text:           el.Text,
				elementType:    domain.ElementNarrativeText,
				sectionHeading: section,
				atomic:         false,
			})
		}
	}

	return blocks
}

// dropEmpty filters out elements whose text is empty after trimming.
func dropEmpty(elements []ports.ParsedElement) []ports.ParsedElement {
	out := make([]ports.ParsedElement, 0, len(elements))
	for _, el := range elements {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		out = append(out, el)
	}
	return out
}

// renderTable renders a Table element to markdown-grid form when its
// structural representation (TableRows) is available; otherwise the raw
// text is preserved with a "Table:" prefix.
func renderTable(el ports.ParsedElement) string {
	if len(el.TableRows) == 0 {
		return "Table:\n" + el.Text
	}

	var sb strings.Builder
	for ri, row := range el.TableRows {
		sb.WriteString("| ")
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString(" |\n")
		if ri == 0 {
			sb.WriteString("|")
			for range row {
				sb.WriteString(" --- |")
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderListItems renders a run of list items as bullet-prefixed lines.
func renderListItems(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "• " + it
	}
	return strings.Join(lines, "\n")
}
