package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// Chunking parameters from spec §4.1 stage 2. Tokenizer identity (cl100k_base)
// is part of the external contract — see tokenizer.go.
const (
	targetTokens   = 450
	hardMaxTokens  = 500
	overlapTokens  = 50
	mergeThreshold = 100
)

// Chunk is one token-bounded retrieval unit emitted by Chunk, ready for
// metadata enrichment and embedding.
type Chunk struct {
	ID             string
	Text           string
	ElementType    domain.ElementType
	SectionHeading string
	TokenCount     int
	CharCount      int
}

// Chunker splits parsed document elements into token-bounded chunks
// honoring the hard structural rules in spec §4.1 stage 2.
type Chunker struct {
	tok *Tokenizer
}

// NewChunker creates a Chunker backed by the given tokenizer.
func NewChunker(tok *Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// Chunk groups parsed elements into chunks. A Table is always exactly one
// chunk, however large. A Title is merged with its immediately following
// element. A run of ListItems is merged into one block. Everything else is
// buffered within a section and flushed on section change, on hitting an
// atomic block, or when the hard max would be exceeded; oversized buffers
// and oversized non-Table atomic blocks are sliding-window split.
func (c *Chunker) Chunk(elements []ports.ParsedElement) []Chunk {
	blocks := buildBlocks(elements)

	var chunks []Chunk
	var buffer []block
	bufferSection := ""

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		text := joinBlocks(buffer)
		chunks = append(chunks, c.emit(text, domain.ElementNarrativeText, bufferSection, false)...)
		buffer = nil
	}

	for _, b := range blocks {
		if b.atomic {
			flush()
			chunks = append(chunks, c.emit(b.text, b.elementType, b.sectionHeading, b.isTable)...)
			continue
		}

		if len(buffer) > 0 && b.sectionHeading != bufferSection {
			flush()
		}

		candidate := joinBlocks(append(append([]block{}, buffer...), b))
		if len(buffer) > 0 && c.tok.Count(candidate) > hardMaxTokens {
			flush()
		}

		buffer = append(buffer, b)
		bufferSection = b.sectionHeading
	}
	flush()

	return c.mergeSmall(chunks)
}

// emit turns one logical text block into one or more Chunks, splitting it
// with a sliding token window if it exceeds the hard max. Table blocks are
// never split regardless of size.
func (c *Chunker) emit(text string, elementType domain.ElementType, section string, isTable bool) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	tokens := c.tok.Count(text)
	if isTable || tokens <= hardMaxTokens {
		return []Chunk{c.newChunk(text, elementType, section, tokens)}
	}

	return c.windowSplit(text, elementType, section)
}

// windowSplit slides a hardMaxTokens-wide window with overlapTokens shared
// between consecutive windows across the encoded token stream.
func (c *Chunker) windowSplit(text string, elementType domain.ElementType, section string) []Chunk {
	ids := c.tok.Encode(text)
	if len(ids) == 0 {
		return nil
	}

	var chunks []Chunk
	step := hardMaxTokens - overlapTokens
	if step <= 0 {
		step = hardMaxTokens
	}

	for start := 0; start < len(ids); start += step {
		end := start + hardMaxTokens
		if end > len(ids) {
			end = len(ids)
		}
		window := ids[start:end]
		windowText := c.tok.Decode(window)
		chunks = append(chunks, c.newChunk(windowText, elementType, section, len(window)))
		if end == len(ids) {
			break
		}
	}

	return chunks
}

// mergeSmall folds any chunk under the merge threshold into its successor
// within the same section, provided the combined size still fits the hard
// max. Atomic single-element chunks (Table, Title-merge, ListItem-run) are
// never candidates: they are already as small as the structure allows.
func (c *Chunker) mergeSmall(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	var out []Chunk
	i := 0
	for i < len(chunks) {
		cur := chunks[i]
		if cur.ElementType == domain.ElementNarrativeText && cur.TokenCount < mergeThreshold && i+1 < len(chunks) {
			next := chunks[i+1]
			if next.ElementType == domain.ElementNarrativeText && next.SectionHeading == cur.SectionHeading {
				combinedText := cur.Text + "\n\n" + next.Text
				combinedTokens := c.tok.Count(combinedText)
				if combinedTokens <= hardMaxTokens {
					out = append(out, c.newChunk(combinedText, domain.ElementNarrativeText, cur.SectionHeading, combinedTokens))
					i += 2
					continue
				}
			}
		}
		out = append(out, cur)
		i++
	}
	return out
}

func (c *Chunker) newChunk(text string, elementType domain.ElementType, section string, tokens int) Chunk {
	return Chunk{
		ID:             uuid.NewString(),
		Text:           text,
		ElementType:    elementType,
		SectionHeading: section,
		TokenCount:     tokens,
		CharCount:      len(text),
	}
}

func joinBlocks(blocks []block) string {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.text
	}
	return strings.Join(texts, "\n\n")
}
