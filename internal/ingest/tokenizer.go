package ingest

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens using the cl100k_base byte-pair encoding. Tokenizer
// identity is part of the external contract documented in spec §9: changing
// it silently changes chunk boundaries and cache hit rates.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
	defaultTokenizerErr  error
)

// NewTokenizer loads the cl100k_base encoding. Construction is expensive
// (loads the BPE rank table) so callers should build one Tokenizer and
// reuse it for the process lifetime.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("ingest.NewTokenizer: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Default lazily builds and caches the process-wide cl100k_base tokenizer.
func Default() (*Tokenizer, error) {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer, defaultTokenizerErr = NewTokenizer()
	})
	return defaultTokenizer, defaultTokenizerErr
}

// Count returns the number of cl100k_base tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Encode returns the token IDs for text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode reassembles text from a slice of token IDs.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
