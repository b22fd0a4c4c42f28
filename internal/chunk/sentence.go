package chunk

import (
	"context"
	"strings"
	"unicode"
)

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace. Pieces are trimmed and empty pieces dropped.
func SplitSentences(text string) []string {
	sentences := []string{}
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Windows groups units into overlapping windows of at most opts.Size units.
// The last window always ends at the final unit; no window is a suffix of
// its predecessor.
func Windows(units []string, opts Options) [][]string {
	windows := [][]string{}
	if len(units) == 0 {
		return windows
	}
	step := opts.Size - opts.Overlap
	for start := 0; ; start += step {
		end := min(start+opts.Size, len(units))
		windows = append(windows, units[start:end])
		if end == len(units) {
			break
		}
	}
	return windows
}

// Sentences splits text into sentence windows joined by a single space.
func Sentences(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return join(Windows(SplitSentences(text), opts)), nil
}

// Words splits text into fixed-size word windows.
func Words(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return join(Windows(strings.Fields(text), opts)), nil
}

func join(windows [][]string) []string {
	out := make([]string, len(windows))
	for i, w := range windows {
		out[i] = strings.Join(w, " ")
	}
	return out
}

// SentenceChunker chunks documents on sentence boundaries.
type SentenceChunker struct {
	opts Options
}

// NewSentenceChunker validates opts and returns a chunker.
func NewSentenceChunker(opts Options) (*SentenceChunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &SentenceChunker{opts: opts}, nil
}

// Chunk implements Chunker.
func (c *SentenceChunker) Chunk(ctx context.Context, doc *DocumentInput) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts := join(Windows(SplitSentences(doc.Text), c.opts))
	chunks := make([]*Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = &Chunk{
			ID:      ChunkID(doc.DocID, i),
			DocID:   doc.DocID,
			Index:   i,
			Content: t,
		}
	}
	return chunks, nil
}
