package chunk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Chunk size defaults
const (
	DefaultMaxSentences = 4
	DefaultOverlap      = 1
	DefaultWordSize     = 200
)

// Chunk is one embeddable window of a document.
type Chunk struct {
	ID      string // "<docID>#<index>"
	DocID   int
	Index   int // 0-indexed position within the document
	Content string
}

// DocumentInput is input for the Chunker interface
type DocumentInput struct {
	DocID int
	Text  string
}

// Chunker splits a document into ordered chunks.
type Chunker interface {
	Chunk(ctx context.Context, doc *DocumentInput) ([]*Chunk, error)
}

// Options controls window size and overlap. Units depend on the chunker
// (sentences or words).
type Options struct {
	Size    int
	Overlap int
}

// DefaultSentenceOptions returns the window used by the semantic index.
func DefaultSentenceOptions() Options {
	return Options{Size: DefaultMaxSentences, Overlap: DefaultOverlap}
}

// Validate checks that the window advances on every step.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", o.Overlap)
	}
	if o.Overlap >= o.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than size %d", o.Overlap, o.Size)
	}
	return nil
}

// ChunkID formats the vector id of a document chunk.
func ChunkID(docID, index int) string {
	return strconv.Itoa(docID) + "#" + strconv.Itoa(index)
}

// ParseChunkID splits a chunk id back into document id and chunk index.
func ParseChunkID(id string) (docID, index int, err error) {
	left, right, ok := strings.Cut(id, "#")
	if !ok {
		return 0, 0, fmt.Errorf("malformed chunk id %q", id)
	}
	docID, err = strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	index, err = strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	return docID, index, nil
}
