package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// indexState is one complete, immutable generation of the index. Build and
// Load construct a new state and publish it with a single pointer swap, so
// readers never observe a partially built index.
type indexState struct {
	docs        map[int]Document
	docIDs      []int // ascending
	postings    map[string]*roaring.Bitmap
	termFreqs   map[int]map[string]int
	docLengths  map[int]int
	totalLength int
}

func (s *indexState) avgDocLength() float64 {
	if len(s.docIDs) == 0 {
		return 0
	}
	return float64(s.totalLength) / float64(len(s.docIDs))
}

func (s *indexState) docFreq(term string) int {
	if bm, ok := s.postings[term]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// InvertedIndex maps terms to the documents containing them and scores
// documents with BM25. It is read-only between builds and safe for
// concurrent use.
type InvertedIndex struct {
	tokenizer *Tokenizer
	config    BM25Config
	state     atomic.Pointer[indexState]
}

// NewInvertedIndex creates an empty index. Queries fail with
// ErrIndexUnavailable until Build or Load succeeds.
func NewInvertedIndex(tokenizer *Tokenizer, cfg BM25Config) (*InvertedIndex, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, herrors.ConfigError(err.Error(), err)
	}
	return &InvertedIndex{tokenizer: tokenizer, config: cfg}, nil
}

// Config returns the BM25 tunables used by BM25 and BM25Search.
func (idx *InvertedIndex) Config() BM25Config {
	return idx.config
}

// Tokenizer returns the tokenizer shared by indexing and querying.
func (idx *InvertedIndex) Tokenizer() *Tokenizer {
	return idx.tokenizer
}

// Build indexes docs and replaces the current state. On error or
// cancellation the previous state is kept.
func (idx *InvertedIndex) Build(ctx context.Context, docs []Document) error {
	start := time.Now()

	if err := validateDocuments(docs); err != nil {
		return err
	}

	st := &indexState{
		docs:       make(map[int]Document, len(docs)),
		docIDs:     make([]int, 0, len(docs)),
		postings:   make(map[string]*roaring.Bitmap),
		termFreqs:  make(map[int]map[string]int, len(docs)),
		docLengths: make(map[int]int, len(docs)),
	}

	for i, doc := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		tokens := idx.tokenizer.Tokenize(doc.Text())
		tf := make(map[string]int)
		for _, token := range tokens {
			tf[token]++
			bm, ok := st.postings[token]
			if !ok {
				bm = roaring.New()
				st.postings[token] = bm
			}
			bm.Add(uint32(doc.ID))
		}

		st.docs[doc.ID] = doc
		st.docIDs = append(st.docIDs, doc.ID)
		st.termFreqs[doc.ID] = tf
		st.docLengths[doc.ID] = len(tokens)
		st.totalLength += len(tokens)
	}

	for _, bm := range st.postings {
		bm.RunOptimize()
	}
	sort.Ints(st.docIDs)

	idx.state.Store(st)

	slog.Info("index_built",
		slog.Int("documents", len(st.docIDs)),
		slog.Int("terms", len(st.postings)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// current returns the published state or an index-unavailable error.
func (idx *InvertedIndex) current() (*indexState, error) {
	st := idx.state.Load()
	if st == nil {
		return nil, herrors.New(herrors.ErrCodeIndexUnavailable, "index has not been built or loaded", ErrIndexUnavailable).
			WithSuggestion("Run 'hoopla build-index' first")
	}
	return st, nil
}

// Ready reports whether a built or loaded index is available.
func (idx *InvertedIndex) Ready() bool {
	return idx.state.Load() != nil
}

// singleToken tokenizes term and requires exactly one resulting token.
func (idx *InvertedIndex) singleToken(term string) (string, error) {
	tokens := idx.tokenizer.Tokenize(term)
	if len(tokens) != 1 {
		return "", herrors.New(herrors.ErrCodeInvalidQuery,
			fmt.Sprintf("term %q must produce exactly one token, got %d", term, len(tokens)), nil).
			WithDetail("term", term)
	}
	return tokens[0], nil
}

func docNotFound(docID int) error {
	return herrors.New(herrors.ErrCodeDocumentNotFound,
		fmt.Sprintf("document %d is not indexed", docID), nil)
}

// DocumentsFor returns the ascending ids of documents containing term.
// The term is tokenized like indexed text; if it yields several tokens the
// result is the union of their posting lists.
func (idx *InvertedIndex) DocumentsFor(term string) ([]int, error) {
	st, err := idx.current()
	if err != nil {
		return nil, err
	}

	var lists []*roaring.Bitmap
	for _, token := range idx.tokenizer.Tokenize(term) {
		if bm, ok := st.postings[token]; ok {
			lists = append(lists, bm)
		}
	}
	if len(lists) == 0 {
		return []int{}, nil
	}

	ids := roaring.FastOr(lists...).ToArray()
	result := make([]int, len(ids))
	for i, id := range ids {
		result[i] = int(id)
	}
	return result, nil
}

// TermFrequency returns the raw count of term in document docID.
func (idx *InvertedIndex) TermFrequency(docID int, term string) (int, error) {
	st, err := idx.current()
	if err != nil {
		return 0, err
	}
	token, err := idx.singleToken(term)
	if err != nil {
		return 0, err
	}
	tf, ok := st.termFreqs[docID]
	if !ok {
		return 0, docNotFound(docID)
	}
	return tf[token], nil
}

// IDF returns the classic inverse document frequency ln((N+1)/(df+1)).
func (idx *InvertedIndex) IDF(term string) (float64, error) {
	st, err := idx.current()
	if err != nil {
		return 0, err
	}
	token, err := idx.singleToken(term)
	if err != nil {
		return 0, err
	}
	return classicIDF(len(st.docIDs), st.docFreq(token)), nil
}

// BM25IDF returns ln((N - df + 0.5) / (df + 0.5) + 1).
func (idx *InvertedIndex) BM25IDF(term string) (float64, error) {
	st, err := idx.current()
	if err != nil {
		return 0, err
	}
	token, err := idx.singleToken(term)
	if err != nil {
		return 0, err
	}
	return bm25IDF(len(st.docIDs), st.docFreq(token)), nil
}

// BM25TF returns the saturated, length-normalized term frequency of term in
// docID using the given tunables.
func (idx *InvertedIndex) BM25TF(docID int, term string, k1, b float64) (float64, error) {
	if err := (BM25Config{K1: k1, B: b}).Validate(); err != nil {
		return 0, herrors.ValidationError(err.Error(), err)
	}
	st, err := idx.current()
	if err != nil {
		return 0, err
	}
	token, err := idx.singleToken(term)
	if err != nil {
		return 0, err
	}
	tf, ok := st.termFreqs[docID]
	if !ok {
		return 0, docNotFound(docID)
	}
	return bm25TF(tf[token], st.docLengths[docID], st.avgDocLength(), k1, b), nil
}

// BM25 returns BM25TF * BM25IDF for a single term with the index tunables.
func (idx *InvertedIndex) BM25(docID int, term string) (float64, error) {
	st, err := idx.current()
	if err != nil {
		return 0, err
	}
	token, err := idx.singleToken(term)
	if err != nil {
		return 0, err
	}
	tf, ok := st.termFreqs[docID]
	if !ok {
		return 0, docNotFound(docID)
	}
	score := bm25TF(tf[token], st.docLengths[docID], st.avgDocLength(), idx.config.K1, idx.config.B) *
		bm25IDF(len(st.docIDs), st.docFreq(token))
	return score, nil
}

// BM25Search scores every indexed document against query and returns the
// top limit by score descending, ties by id ascending. Documents matching
// no query term are included with score 0. A limit <= 0 returns all.
func (idx *InvertedIndex) BM25Search(query string, limit int) ([]*BM25Result, error) {
	st, err := idx.current()
	if err != nil {
		return nil, err
	}

	tokens := idx.tokenizer.Tokenize(query)
	idfs := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		if _, ok := idfs[token]; !ok {
			idfs[token] = bm25IDF(len(st.docIDs), st.docFreq(token))
		}
	}

	avg := st.avgDocLength()
	results := make([]*BM25Result, 0, len(st.docIDs))
	for _, docID := range st.docIDs {
		tf := st.termFreqs[docID]
		docLen := st.docLengths[docID]

		var score float64
		matched := []string{}
		for _, token := range tokens {
			count := tf[token]
			if count == 0 {
				continue
			}
			score += bm25TF(count, docLen, avg, idx.config.K1, idx.config.B) * idfs[token]
			if !containsString(matched, token) {
				matched = append(matched, token)
			}
		}
		results = append(results, &BM25Result{DocID: docID, Score: score, MatchedTerms: matched})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// LexicalSearch returns up to limit documents containing any query token,
// walking tokens in query order and each posting list in id order.
func (idx *InvertedIndex) LexicalSearch(query string, limit int) ([]Document, error) {
	st, err := idx.current()
	if err != nil {
		return nil, err
	}

	results := []Document{}
	seen := make(map[int]struct{})
	for _, token := range idx.tokenizer.Tokenize(query) {
		bm, ok := st.postings[token]
		if !ok {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := int(it.Next())
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			results = append(results, st.docs[id])
			if limit > 0 && len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

// Document returns the indexed document with the given id.
func (idx *InvertedIndex) Document(docID int) (Document, error) {
	st, err := idx.current()
	if err != nil {
		return Document{}, err
	}
	doc, ok := st.docs[docID]
	if !ok {
		return Document{}, docNotFound(docID)
	}
	return doc, nil
}

// Documents returns all indexed documents ordered by id.
func (idx *InvertedIndex) Documents() ([]Document, error) {
	st, err := idx.current()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(st.docIDs))
	for i, id := range st.docIDs {
		docs[i] = st.docs[id]
	}
	return docs, nil
}

// Stats returns corpus-level statistics.
func (idx *InvertedIndex) Stats() (IndexStats, error) {
	st, err := idx.current()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{
		DocumentCount: len(st.docIDs),
		TermCount:     len(st.postings),
		AvgDocLength:  st.avgDocLength(),
	}, nil
}

// Fingerprint returns the corpus fingerprint of the indexed documents.
func (idx *InvertedIndex) Fingerprint() (string, error) {
	st, err := idx.current()
	if err != nil {
		return "", err
	}
	docs := make([]Document, 0, len(st.docIDs))
	for _, id := range st.docIDs {
		docs = append(docs, st.docs[id])
	}
	return Fingerprint(docs)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
