package store

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	porterstemmer "github.com/blevesearch/go-porterstemmer"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// Tokenizer turns text into index terms: lower-cased, punctuation-stripped,
// stop-word-filtered and Porter-stemmed, in input order.
//
// A Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer builds a tokenizer from a stop-word list. Entries are
// normalized the same way as text. An entry that is not valid UTF-8, or
// that normalizes to nothing, is malformed stop-word data.
func NewTokenizer(stopWords []string) (*Tokenizer, error) {
	set := make(map[string]struct{}, len(stopWords))
	for i, word := range stopWords {
		if !utf8.ValidString(word) {
			return nil, herrors.New(herrors.ErrCodeStopWordsInvalid,
				fmt.Sprintf("stop word %d is not valid UTF-8", i), nil)
		}
		normalized := stripPunctuation(strings.ToLower(strings.TrimSpace(word)))
		if normalized == "" || strings.ContainsFunc(normalized, unicode.IsSpace) {
			return nil, herrors.New(herrors.ErrCodeStopWordsInvalid,
				fmt.Sprintf("stop word %d (%q) is not a single word", i, word), nil)
		}
		set[normalized] = struct{}{}
	}
	return &Tokenizer{stopWords: set}, nil
}

// NewDefaultTokenizer uses the English stop-word list shipped with bleve.
func NewDefaultTokenizer() (*Tokenizer, error) {
	words, err := ParseStopWords(en.EnglishStopWords)
	if err != nil {
		return nil, err
	}
	return NewTokenizer(words)
}

// LoadStopWords reads a stop-word file: whitespace-separated words, with
// '#' and '|' starting comments. An empty path selects the built-in list.
func LoadStopWords(path string) ([]string, error) {
	if path == "" {
		return ParseStopWords(en.EnglishStopWords)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.New(herrors.ErrCodeStopWordsInvalid,
			fmt.Sprintf("read stop words %s", path), err).WithDetail("path", path)
	}
	return ParseStopWords(data)
}

// ParseStopWords parses stop-word data in bleve's token map format.
func ParseStopWords(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, herrors.New(herrors.ErrCodeStopWordsInvalid, "stop-word data is not valid UTF-8", nil)
	}

	tm := analysis.NewTokenMap()
	if err := tm.LoadBytes(data); err != nil {
		return nil, herrors.New(herrors.ErrCodeStopWordsInvalid, "parse stop-word data", err)
	}

	words := make([]string, 0, len(tm))
	for word := range tm {
		words = append(words, word)
	}
	return words, nil
}

// Tokenize returns the terms of text. It never fails; an input with no
// indexable words yields an empty, non-nil slice.
func (t *Tokenizer) Tokenize(text string) []string {
	fields := strings.Fields(stripPunctuation(strings.ToLower(text)))

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, stop := t.stopWords[field]; stop {
			continue
		}
		tokens = append(tokens, porterstemmer.StemString(field))
	}
	return tokens
}

// IsStopWord reports whether word (after normalization) is filtered.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[stripPunctuation(strings.ToLower(word))]
	return ok
}

// stripPunctuation drops punctuation and symbol runes. Other runes,
// including whitespace, are kept so word boundaries survive.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
}
