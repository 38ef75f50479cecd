package ingest

import (
	"strings"
	"testing"
)

func TestBuildChunks_OrdinalMetadata(t *testing.T) {
	text := strings.Repeat("字", 250)
	p := ProfileText(text)

	provenance := map[string]string{
		"file_name": "test.txt",
		"file_ext":  ".txt",
	}

	chunks := BuildChunks(text, p, 100, 20, provenance)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	total := len(chunks)
	seen := make(map[string]bool, total)

	for i, c := range chunks {
		if c.ID == "" {
			t.Errorf("chunk %d has empty ID", i)
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk ID %q", c.ID)
		}
		seen[c.ID] = true

		if c.Index != i {
			t.Errorf("chunk %d: Index = %d", i, c.Index)
		}
		if c.Total != total {
			t.Errorf("chunk %d: Total = %d, want %d", i, c.Total, total)
		}
		if c.Strategy != StrategyScriptAware {
			t.Errorf("chunk %d: Strategy = %q, want %q", i, c.Strategy, StrategyScriptAware)
		}
		if c.Content == "" {
			t.Errorf("chunk %d: empty content", i)
		}

		// Provenance inherited, ordinals recorded.
		if c.Metadata["file_name"] != "test.txt" {
			t.Errorf("chunk %d: missing provenance metadata", i)
		}
		if c.Metadata[MetaChunkTotal] == "" || c.Metadata[MetaChunkIndex] == "" {
			t.Errorf("chunk %d: missing ordinal metadata: %v", i, c.Metadata)
		}
	}

	// The provenance map must not be mutated by the builder.
	if len(provenance) != 2 {
		t.Errorf("provenance map mutated: %v", provenance)
	}
}

func TestBuildChunks_EmptyText(t *testing.T) {
	if got := BuildChunks("", Profile{}, 100, 10, nil); got != nil {
		t.Errorf("empty text: got %v, want nil", got)
	}
}
