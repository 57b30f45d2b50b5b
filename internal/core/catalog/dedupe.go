package catalog

import "github.com/kirillkom/catalog-image-sync/internal/core/domain"

// DedupeLatest keeps one record per natural key: the one with the greatest source
// modification time, later input winning ties. Output follows first appearance of each key.
func DedupeLatest(records []domain.CandidateRecord) []domain.CandidateRecord {
	if len(records) == 0 {
		return nil
	}
	index := make(map[domain.NaturalKey]int, len(records))
	out := make([]domain.CandidateRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		if rec.SourceModifiedMillis() >= out[pos].SourceModifiedMillis() {
			out[pos] = rec
		}
	}
	return out
}
