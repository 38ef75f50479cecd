// Package ingest implements the text-processing half of the knowledge-base
// ingestion pipeline: input file validation, text normalization, language
// profiling, and bounded overlapping chunking.
//
// The pipeline stages are deliberately small and pure so they compose in
// order:
//
//	validator := ingest.NewValidator(maxSize, nil)
//	paths, err := validator.ValidateAll(files)
//	// ... load paths into raw text units ...
//	profile := ingest.ProfileText(raw)
//	normalized := ingest.Normalize(raw)
//	chunks := ingest.BuildChunks(normalized, profile, chunkSize, overlap, provenance)
//
// Two chunking strategies exist: a script-aware splitter for CJK-heavy text
// that prefers cutting at 。！？ / ；： / ，、 boundaries, and a generic
// sentence splitter backed by Unicode UAX #29 segmentation. The strategy is
// selected from the profile's CJK ratio, computed once per text unit.
//
// All lengths in this package are measured in runes, not bytes: chunk size
// limits must hold for Chinese text where a character is three UTF-8 bytes.
package ingest
