package store

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/zeebo/blake3"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// corpusFile is the on-disk corpus shape: {"movies": [...]}.
type corpusFile struct {
	Movies []Document `json:"movies"`
}

// LoadCorpus reads and validates the movie corpus at path. The returned
// documents are sorted by id.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.IOError(fmt.Sprintf("read corpus %s", path), err).
			WithDetail("path", path)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes corpus JSON and validates document ids.
func ParseCorpus(data []byte) ([]Document, error) {
	var cf corpusFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, herrors.New(herrors.ErrCodeCorpusInvalid, "decode corpus", err)
	}
	if cf.Movies == nil {
		return nil, herrors.New(herrors.ErrCodeCorpusInvalid, `corpus has no "movies" array`, nil)
	}

	if err := validateDocuments(cf.Movies); err != nil {
		return nil, err
	}

	docs := cf.Movies
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// validateDocuments enforces unique ids that fit a posting-list bitmap.
func validateDocuments(docs []Document) error {
	seen := make(map[int]struct{}, len(docs))
	for _, doc := range docs {
		if doc.ID < 0 || doc.ID > math.MaxUint32 {
			return herrors.New(herrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("document id %d out of range [0, %d]", doc.ID, uint32(math.MaxUint32)), nil)
		}
		if _, dup := seen[doc.ID]; dup {
			return herrors.New(herrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("duplicate document id %d", doc.ID), nil)
		}
		seen[doc.ID] = struct{}{}
	}
	return nil
}

// Fingerprint identifies a corpus by content: the hex BLAKE3-256 digest of
// its documents in ascending id order. Two indexes built from the same
// corpus carry the same fingerprint.
func Fingerprint(docs []Document) (string, error) {
	sorted := slices.Clone(docs)
	slices.SortFunc(sorted, func(a, b Document) int { return cmp.Compare(a.ID, b.ID) })
	raw, err := snapshotEncMode.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("encode corpus fingerprint: %w", err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
