package indexstore

import (
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/snapshot"
	"github.com/standardbeagle/ffindex/internal/types"
)

// Export produces a plain snapshot.Data from the index's current live
// state: tombstones are dropped and extension-bucket slot indices are
// renumbered against the compacted record list, exactly as Optimize does.
func (idx *Index) Export() snapshot.Data {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	liveRecords := make([]record.FileRecord, 0, len(idx.records))
	remap := make(map[types.RecordID]uint32, len(idx.records))
	for i, rec := range idx.records {
		if idx.tomb[i] {
			continue
		}
		remap[types.RecordID(i)] = uint32(len(liveRecords))
		liveRecords = append(liveRecords, rec)
	}

	cur := idx.snap.Load()
	buckets := make(map[uint32][]uint32, len(cur.extBuckets))
	for ext, slots := range cur.extBuckets {
		var out []uint32
		for _, s := range slots {
			if ns, ok := remap[s]; ok {
				out = append(out, ns)
			}
		}
		if len(out) > 0 {
			buckets[uint32(ext)] = out
		}
	}

	return snapshot.Data{
		Strings:    idx.pool.ExportOrdered(),
		Records:    liveRecords,
		ExtBuckets: buckets,
	}
}

// Restore replaces the index's entire in-memory state from d. The
// caller must supply an Index whose Pool is fresh and empty: Restore
// re-interns d.Strings in order to reproduce their original ids (see
// Pool.ExportOrdered) and would corrupt a pool that already holds
// unrelated entries.
func (idx *Index) Restore(d snapshot.Data) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	for _, s := range d.Strings {
		if _, err := idx.pool.Intern(s); err != nil {
			return err
		}
	}

	idx.records = append([]record.FileRecord(nil), d.Records...)
	idx.tomb = make([]bool, len(idx.records))

	byPath := make(map[types.StringID]types.RecordID, len(idx.records))
	for i, rec := range idx.records {
		byPath[rec.FullPathID] = types.RecordID(i)
	}

	extBuckets := make(map[types.StringID][]types.RecordID, len(d.ExtBuckets))
	for ext, slots := range d.ExtBuckets {
		converted := make([]types.RecordID, len(slots))
		for i, s := range slots {
			converted[i] = types.RecordID(s)
		}
		extBuckets[types.StringID(ext)] = converted
	}

	idx.snap.Store(&auxSnapshot{length: len(idx.records), byPath: byPath, extBuckets: extBuckets})
	idx.liveCount.Store(int64(len(idx.records)))

	idx.filterMu.Lock()
	idx.nameFilter.Reset()
	idx.filterMu.Unlock()
	for _, rec := range idx.records {
		idx.indexNameForSearch(rec.NameID)
	}
	return nil
}
