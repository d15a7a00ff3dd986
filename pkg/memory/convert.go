package memory

import "github.com/brightclass/teachmem/pkg/storage"

// toStorageRecord converts a memory.Record to its storage representation.
func toStorageRecord(r *Record) *storage.Record {
	return &storage.Record{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Type:            string(r.Type),
		Key:             r.Key,
		ValueKind:       string(r.Value.Kind),
		Value:           r.Value.Raw,
		Confidence:      r.Confidence,
		Verified:        r.Verified,
		SourceSessionID: r.SourceSessionID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		LastAccessedAt:  r.LastAccessedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// fromStorageRecord converts a storage record back to a memory.Record.
func fromStorageRecord(r *storage.Record) *Record {
	if r == nil {
		return nil
	}
	return &Record{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Type:            Type(r.Type),
		Key:             r.Key,
		Value:           Value{Kind: ValueKind(r.ValueKind), Raw: r.Value},
		Confidence:      r.Confidence,
		Verified:        r.Verified,
		SourceSessionID: r.SourceSessionID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		LastAccessedAt:  r.LastAccessedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// fromStorageRecords converts a slice of storage records.
func fromStorageRecords(records []*storage.Record) []*Record {
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = fromStorageRecord(r)
	}
	return out
}
