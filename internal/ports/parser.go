package ports

import "context"

// ParsedElement is the structural unit returned by the document parser.
// Document-format parsing itself (PDF/DOCX/HTML/CSV extraction) is an
// external collaborator out of scope for this module; it is treated as an
// opaque function that returns a sequence of these.
type ParsedElement struct {
	Text           string
	ElementType    string // "Title", "NarrativeText", "Table", "ListItem", ...
	SectionHeading string // filled in by the element, if it carries one (rare)
	PageNumber     int
	// TableRows, when non-nil, is the structural grid representation of a
	// Table element (rows of cells) for markdown rendering. Nil means only
	// raw text is available and the "Table:" prefix form is used instead.
	TableRows [][]string
}

// Parser abstracts document text extraction into structural elements.
type Parser interface {
	Parse(ctx context.Context, filepath, filename string) ([]ParsedElement, error)
}
