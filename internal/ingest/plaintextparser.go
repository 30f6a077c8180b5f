package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// PlaintextParser is a minimal ports.Parser for plain-text (.txt/.md)
// uploads: it treats blank-line-separated blocks as NarrativeText
// elements. Real document-format extraction (PDF/DOCX/HTML/CSV, table
// structure, OCR) is the external collaborator named in spec §1 Non-goals;
// this exists only so cmd/server's illustrative ingest wiring has a
// concrete Parser to call rather than none at all.
type PlaintextParser struct{}

var _ ports.Parser = PlaintextParser{}

func (PlaintextParser) Parse(ctx context.Context, filepath, filename string) ([]ports.ParsedElement, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("ingest.PlaintextParser.Parse: %w", err)
	}

	var elements []ports.ParsedElement
	for _, block := range strings.Split(string(data), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		elements = append(elements, ports.ParsedElement{
			Text:        block,
			ElementType: string(domain.ElementNarrativeText),
		})
	}
	return elements, nil
}
