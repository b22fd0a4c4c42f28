package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the persisted indexes in the cache directory.
type StatusInfo struct {
	Corpus   string `json:"corpus"`
	CacheDir string `json:"cache_dir"`

	LexicalReady  bool      `json:"lexical_ready"`
	Documents     int       `json:"documents"`
	Terms         int       `json:"terms"`
	AvgDocLength  float64   `json:"avg_doc_length"`
	IndexSize     int64     `json:"index_size"`
	IndexModified time.Time `json:"index_modified"`

	SemanticReady bool      `json:"semantic_ready"`
	Model         string    `json:"model,omitempty"`
	Dimensions    int       `json:"dimensions,omitempty"`
	Chunks        int       `json:"chunks"`
	VectorSize    int64     `json:"vector_size"`
	SemanticBuilt time.Time `json:"semantic_built,omitempty"`

	CachedEmbeddings int `json:"cached_embeddings"`
}

// StatusRenderer prints StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor), now: time.Now}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Hoopla index: "+info.CacheDir))
	_, _ = fmt.Fprintf(r.out, "  Corpus: %s\n\n", info.Corpus)

	_, _ = fmt.Fprintf(r.out, "  Lexical:  %s\n", r.state(info.LexicalReady))
	if info.LexicalReady {
		_, _ = fmt.Fprintf(r.out, "    Movies:     %d\n", info.Documents)
		_, _ = fmt.Fprintf(r.out, "    Terms:      %d\n", info.Terms)
		_, _ = fmt.Fprintf(r.out, "    Avg length: %.1f tokens\n", info.AvgDocLength)
		_, _ = fmt.Fprintf(r.out, "    Snapshot:   %s, %s\n", FormatBytes(info.IndexSize), r.ago(info.IndexModified))
	}

	_, _ = fmt.Fprintf(r.out, "  Semantic: %s\n", r.state(info.SemanticReady))
	if info.SemanticReady {
		_, _ = fmt.Fprintf(r.out, "    Model:      %s (%d dims)\n", info.Model, info.Dimensions)
		_, _ = fmt.Fprintf(r.out, "    Chunks:     %d\n", info.Chunks)
		_, _ = fmt.Fprintf(r.out, "    Vectors:    %s, %s\n", FormatBytes(info.VectorSize), r.ago(info.SemanticBuilt))
	}
	_, err := fmt.Fprintf(r.out, "  Cached embeddings: %d\n", info.CachedEmbeddings)
	return err
}

// RenderJSON writes info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) state(ready bool) string {
	if ready {
		return r.styles.Success.Render("ready")
	}
	return r.styles.Warning.Render("missing (run build-index)")
}

func (r *StatusRenderer) ago(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	diff := r.now().Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
