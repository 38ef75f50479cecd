package ingest

import (
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Metadata keys attached to every chunk beyond the provenance inherited from
// its source file.
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
	MetaChunkChars = "chunk_chars"
	MetaCJKRatio   = "cjk_ratio"
	MetaStrategy   = "strategy"
)

// Chunk is a bounded span of normalized document text, the unit stored in
// the vector index.
type Chunk struct {
	ID       string  // Generated unique identifier
	Content  string  // Non-empty trimmed text
	Index    int     // Ordinal position within the source unit
	Total    int     // Sibling count within the source unit
	Length   int     // Content length in runes
	CJKRatio float64 // Script ratio of the source unit
	Strategy string  // Chunking strategy tag (script-aware / generic)

	// Metadata carries inherited provenance plus the chunk-specific keys
	// above, in the string-map form the vector store persists.
	Metadata map[string]string
}

// BuildChunks splits normalized text and wraps each piece in a Chunk with
// ordinal metadata. Ordinals (index, total) are assigned only here, after
// the full piece list is known, since the sibling count is not knowable
// mid-split.
//
// provenance entries are copied into every chunk's metadata; the map is not
// retained or mutated.
func BuildChunks(normalized string, p Profile, chunkSize, overlap int, provenance map[string]string) []Chunk {
	splitter := SplitterFor(p, chunkSize, overlap)
	pieces := splitter.Split(normalized)
	if len(pieces) == 0 {
		return nil
	}

	total := len(pieces)
	chunks := make([]Chunk, 0, total)

	for i, piece := range pieces {
		length := utf8.RuneCountInString(piece)

		meta := make(map[string]string, len(provenance)+5)
		for k, v := range provenance {
			meta[k] = v
		}
		meta[MetaChunkIndex] = strconv.Itoa(i)
		meta[MetaChunkTotal] = strconv.Itoa(total)
		meta[MetaChunkChars] = strconv.Itoa(length)
		meta[MetaCJKRatio] = strconv.FormatFloat(p.CJKRatio, 'f', 3, 64)
		meta[MetaStrategy] = splitter.Strategy()

		chunks = append(chunks, Chunk{
			ID:       uuid.NewString(),
			Content:  piece,
			Index:    i,
			Total:    total,
			Length:   length,
			CJKRatio: p.CJKRatio,
			Strategy: splitter.Strategy(),
			Metadata: meta,
		})
	}

	return chunks
}
