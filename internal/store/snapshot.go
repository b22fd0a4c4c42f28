package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

const (
	snapshotFormat  = "hoopla-index"
	snapshotVersion = 1
)

// snapshotEnvelope is the outer container written to disk. Body is the
// zstd-compressed CBOR payload; Checksum is its BLAKE3-256 digest.
type snapshotEnvelope struct {
	Format   string `cbor:"1,keyasint"`
	Version  uint   `cbor:"2,keyasint"`
	Checksum []byte `cbor:"3,keyasint"`
	Body     []byte `cbor:"4,keyasint"`
}

// snapshotPayload holds all four index tables so they are saved and loaded
// as one unit.
type snapshotPayload struct {
	Documents []snapshotDocument `cbor:"1,keyasint"`
	Postings  map[string][]byte  `cbor:"2,keyasint"` // term -> roaring bitmap
}

type snapshotDocument struct {
	Doc       Document       `cbor:"1,keyasint"`
	Length    int            `cbor:"2,keyasint"`
	TermFreqs map[string]int `cbor:"3,keyasint"`
}

var (
	snapshotEncMode cbor.EncMode
	zstdEncoder     *zstd.Encoder
	zstdDecoder     *zstd.Decoder
)

func init() {
	var err error

	// Core Deterministic Encoding sorts map keys, so equal indexes
	// serialize to identical bytes.
	snapshotEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// Save writes the index to path as a single versioned snapshot. The file
// is written to path+".tmp", synced and renamed into place.
func (idx *InvertedIndex) Save(path string) error {
	st, err := idx.current()
	if err != nil {
		return err
	}

	data, err := encodeSnapshot(st)
	if err != nil {
		return herrors.New(herrors.ErrCodeIndexFailed, "encode index snapshot", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return herrors.New(herrors.ErrCodeIndexFailed, "write index snapshot", err).
			WithDetail("path", path)
	}

	slog.Debug("index_saved",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.Int("documents", len(st.docIDs)))
	return nil
}

// Load replaces the in-memory index with the snapshot at path. Every
// failure wraps ErrIndexUnavailable and leaves the current state as is.
func (idx *InvertedIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return herrors.New(herrors.ErrCodeIndexUnavailable,
				fmt.Sprintf("index snapshot %s not found", path),
				fmt.Errorf("%w: %w", ErrIndexUnavailable, err)).
				WithSuggestion("Run 'hoopla build-index' first")
		}
		return herrors.New(herrors.ErrCodeIndexUnavailable, "read index snapshot",
			fmt.Errorf("%w: %w", ErrIndexUnavailable, err))
	}

	st, err := decodeSnapshot(data)
	if err != nil {
		return herrors.New(herrors.ErrCodeCorruptIndex,
			fmt.Sprintf("index snapshot %s is unusable", path),
			fmt.Errorf("%w: %w", ErrIndexUnavailable, err)).
			WithDetail("path", path).
			WithSuggestion("Rebuild with 'hoopla build-index'")
	}

	idx.state.Store(st)
	slog.Debug("index_loaded",
		slog.String("path", path),
		slog.Int("documents", len(st.docIDs)),
		slog.Int("terms", len(st.postings)))
	return nil
}

func encodeSnapshot(st *indexState) ([]byte, error) {
	payload := snapshotPayload{
		Documents: make([]snapshotDocument, 0, len(st.docIDs)),
		Postings:  make(map[string][]byte, len(st.postings)),
	}
	for _, id := range st.docIDs {
		payload.Documents = append(payload.Documents, snapshotDocument{
			Doc:       st.docs[id],
			Length:    st.docLengths[id],
			TermFreqs: st.termFreqs[id],
		})
	}
	for term, bm := range st.postings {
		raw, err := bm.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal postings for %q: %w", term, err)
		}
		payload.Postings[term] = raw
	}

	raw, err := snapshotEncMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	body := zstdEncoder.EncodeAll(raw, nil)
	sum := blake3.Sum256(body)

	return snapshotEncMode.Marshal(snapshotEnvelope{
		Format:   snapshotFormat,
		Version:  snapshotVersion,
		Checksum: sum[:],
		Body:     body,
	})
}

func decodeSnapshot(data []byte) (*indexState, error) {
	var env snapshotEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Format != snapshotFormat {
		return nil, fmt.Errorf("unknown snapshot format %q", env.Format)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", env.Version, snapshotVersion)
	}

	sum := blake3.Sum256(env.Body)
	if !bytes.Equal(sum[:], env.Checksum) {
		return nil, fmt.Errorf("checksum mismatch")
	}

	raw, err := zstdDecoder.DecodeAll(env.Body, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	var payload snapshotPayload
	if err := cbor.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return stateFromPayload(payload)
}

// stateFromPayload rebuilds an indexState and checks the cross-table
// invariants: every document has a length equal to its token count,
// postings only reference known documents, and postings agree with the
// term-frequency tables.
func stateFromPayload(p snapshotPayload) (*indexState, error) {
	st := &indexState{
		docs:       make(map[int]Document, len(p.Documents)),
		docIDs:     make([]int, 0, len(p.Documents)),
		postings:   make(map[string]*roaring.Bitmap, len(p.Postings)),
		termFreqs:  make(map[int]map[string]int, len(p.Documents)),
		docLengths: make(map[int]int, len(p.Documents)),
	}

	docs := make([]Document, 0, len(p.Documents))
	for _, d := range p.Documents {
		docs = append(docs, d.Doc)
	}
	if err := validateDocuments(docs); err != nil {
		return nil, err
	}

	for _, d := range p.Documents {
		tf := d.TermFreqs
		if tf == nil {
			tf = map[string]int{}
		}
		total := 0
		for term, count := range tf {
			if count <= 0 {
				return nil, fmt.Errorf("document %d has non-positive count for %q", d.Doc.ID, term)
			}
			total += count
		}
		if total != d.Length {
			return nil, fmt.Errorf("document %d length %d does not match token count %d", d.Doc.ID, d.Length, total)
		}

		st.docs[d.Doc.ID] = d.Doc
		st.docIDs = append(st.docIDs, d.Doc.ID)
		st.termFreqs[d.Doc.ID] = tf
		st.docLengths[d.Doc.ID] = d.Length
		st.totalLength += d.Length
	}
	sort.Ints(st.docIDs)

	postingRefs := 0
	for term, raw := range p.Postings {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("decode postings for %q: %w", term, err)
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := int(it.Next())
			if st.termFreqs[id][term] == 0 {
				if _, known := st.docs[id]; !known {
					return nil, fmt.Errorf("postings for %q reference unknown document %d", term, id)
				}
				return nil, fmt.Errorf("postings for %q list document %d without a term count", term, id)
			}
			postingRefs++
		}
		st.postings[term] = bm
	}

	tfRefs := 0
	for _, tf := range st.termFreqs {
		tfRefs += len(tf)
	}
	if tfRefs != postingRefs {
		return nil, fmt.Errorf("term-frequency tables hold %d entries but postings hold %d", tfRefs, postingRefs)
	}

	return st, nil
}

// writeFileAtomic writes data to path via a synced temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
