// Package indexstore implements the Index: an append-only vector of
// FileRecords plus the auxiliary structures (a full_path_id -> slot map,
// extension buckets, and a name-trigram Bloom filter) that make lookups
// and extension-filtered scans fast.
//
// Concurrency follows MasterIndex (internal/indexing/master_index.go):
// a single writeMu serializes writers, each writer clones the current
// auxiliary snapshot, mutates the clone, and publishes it through an
// atomic.Pointer so concurrent scanners always observe one consistent,
// immutable view (fileSnapshot/snapshotMu there, snap/writeMu here). The
// append-only record vector itself is never mutated in place past a
// reader's captured length, so growing it during a later insert can't
// corrupt an in-flight scan.
package indexstore

import (
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/ffindex/internal/bloom"
	"github.com/standardbeagle/ffindex/internal/change"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
	"github.com/standardbeagle/ffindex/internal/types"
)

type auxSnapshot struct {
	length     int
	byPath     map[types.StringID]types.RecordID
	extBuckets map[types.StringID][]types.RecordID
}

func emptySnapshot() *auxSnapshot {
	return &auxSnapshot{
		byPath:     make(map[types.StringID]types.RecordID),
		extBuckets: make(map[types.StringID][]types.RecordID),
	}
}

// Stats reports index-wide counters.
type Stats struct {
	LiveRecords      int64
	TombstonedSlots  int64
	ExtensionBuckets int
}

// Index is the C6 store.
type Index struct {
	pool *stringpool.Pool

	writeMu sync.Mutex
	records []record.FileRecord
	tomb    []bool
	snap    atomic.Pointer[auxSnapshot]

	filterMu   sync.RWMutex
	nameFilter *bloom.Filter

	liveCount atomic.Int64
}

// New creates an empty Index backed by pool. expectedNames sizes the
// Bloom filter's bit array; it is a hint, not a hard cap.
func New(pool *stringpool.Pool, expectedNames int) *Index {
	idx := &Index{
		pool:       pool,
		nameFilter: bloom.New(expectedNames, 0.01),
	}
	idx.snap.Store(emptySnapshot())
	return idx
}

func cloneByPath(m map[types.StringID]types.RecordID) map[types.StringID]types.RecordID {
	out := make(map[types.StringID]types.RecordID, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneExtBuckets(m map[types.StringID][]types.RecordID) map[types.StringID][]types.RecordID {
	out := make(map[types.StringID][]types.RecordID, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func appendToBucket(m map[types.StringID][]types.RecordID, ext types.StringID, slot types.RecordID) {
	existing := m[ext]
	grown := make([]types.RecordID, len(existing)+1)
	copy(grown, existing)
	grown[len(existing)] = slot
	m[ext] = grown
}

func removeFromBucket(m map[types.StringID][]types.RecordID, ext types.StringID, slot types.RecordID) {
	existing := m[ext]
	out := make([]types.RecordID, 0, len(existing))
	for _, s := range existing {
		if s != slot {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(m, ext)
		return
	}
	m[ext] = out
}

// Insert appends rec as a new live record. It fails if full_path_id is
// already present.
func (idx *Index) Insert(rec record.FileRecord) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()
	if _, exists := cur.byPath[rec.FullPathID]; exists {
		return fferrors.NewIndexingError("insert", fferrors.ErrDuplicate)
	}

	slot := types.RecordID(len(idx.records))
	idx.records = append(idx.records, rec)
	idx.tomb = append(idx.tomb, false)

	newByPath := cloneByPath(cur.byPath)
	newByPath[rec.FullPathID] = slot
	newExt := cloneExtBuckets(cur.extBuckets)
	if rec.ExtID != 0 {
		appendToBucket(newExt, rec.ExtID, slot)
	}

	idx.snap.Store(&auxSnapshot{length: len(idx.records), byPath: newByPath, extBuckets: newExt})
	idx.liveCount.Add(1)
	idx.indexNameForSearch(rec.NameID)
	return nil
}

func (idx *Index) indexNameForSearch(nameID types.StringID) {
	name, ok := idx.pool.GetFolded(nameID)
	if !ok {
		return
	}
	idx.filterMu.Lock()
	idx.nameFilter.AddTrigramsOf(name)
	idx.filterMu.Unlock()
}

// Update replaces the mutable fields (size, timestamps, attrs) of the
// live record identified by fullPathID.
func (idx *Index) Update(fullPathID types.StringID, size, modified, accessed int64, attrs types.Attrs) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()
	slot, ok := cur.byPath[fullPathID]
	if !ok {
		return fferrors.ErrNotFound
	}
	idx.records[slot] = idx.records[slot].WithStat(size, modified, accessed, attrs)
	return nil
}

// Remove tombstones the live record identified by fullPathID.
func (idx *Index) Remove(fullPathID types.StringID) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	return idx.removeLocked(fullPathID)
}

func (idx *Index) removeLocked(fullPathID types.StringID) error {
	cur := idx.snap.Load()
	slot, ok := cur.byPath[fullPathID]
	if !ok {
		return fferrors.ErrNotFound
	}

	idx.tomb[slot] = true
	newByPath := cloneByPath(cur.byPath)
	delete(newByPath, fullPathID)
	newExt := cloneExtBuckets(cur.extBuckets)
	if ext := idx.records[slot].ExtID; ext != 0 {
		removeFromBucket(newExt, ext, slot)
	}
	idx.snap.Store(&auxSnapshot{length: cur.length, byPath: newByPath, extBuckets: newExt})
	idx.liveCount.Add(-1)
	return nil
}

// Rename updates the path identity of the live record at oldFullPathID
// in place, preserving its slot (and therefore its position in scan
// order).
func (idx *Index) Rename(oldFullPathID types.StringID, newIDs record.FileRecord) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()
	slot, ok := cur.byPath[oldFullPathID]
	if !ok {
		return fferrors.ErrNotFound
	}

	oldExt := idx.records[slot].ExtID
	idx.records[slot] = idx.records[slot].WithRename(newIDs.FullPathID, newIDs.NameID, newIDs.DirID, newIDs.ExtID)

	newByPath := cloneByPath(cur.byPath)
	delete(newByPath, oldFullPathID)
	newByPath[newIDs.FullPathID] = slot

	newExt := cloneExtBuckets(cur.extBuckets)
	if oldExt != newIDs.ExtID {
		if oldExt != 0 {
			removeFromBucket(newExt, oldExt, slot)
		}
		if newIDs.ExtID != 0 {
			appendToBucket(newExt, newIDs.ExtID, slot)
		}
	}

	idx.snap.Store(&auxSnapshot{length: cur.length, byPath: newByPath, extBuckets: newExt})
	idx.indexNameForSearch(newIDs.NameID)
	return nil
}

// Lookup returns the live record for fullPathID.
func (idx *Index) Lookup(fullPathID types.StringID) (record.FileRecord, bool) {
	cur := idx.snap.Load()
	slot, ok := cur.byPath[fullPathID]
	if !ok {
		return record.FileRecord{}, false
	}
	return idx.records[slot], true
}

// Scan iterates every live record in slot order.
func (idx *Index) Scan() iter.Seq[record.FileRecord] {
	cur := idx.snap.Load()
	length := cur.length
	return func(yield func(record.FileRecord) bool) {
		for i := 0; i < length; i++ {
			if idx.tomb[i] {
				continue
			}
			if !yield(idx.records[i]) {
				return
			}
		}
	}
}

// ScanByExtension iterates the live records in extID's bucket.
func (idx *Index) ScanByExtension(extID types.StringID) iter.Seq[record.FileRecord] {
	cur := idx.snap.Load()
	slots := cur.extBuckets[extID]
	return func(yield func(record.FileRecord) bool) {
		for _, slot := range slots {
			if idx.tomb[slot] {
				continue
			}
			if !yield(idx.records[slot]) {
				return
			}
		}
	}
}

// MayContainSubstring consults the name-trigram Bloom filter, the fast
// reject path a QueryExecutor uses before running the real matcher.
func (idx *Index) MayContainSubstring(needle string) bool {
	idx.filterMu.RLock()
	defer idx.filterMu.RUnlock()
	return idx.nameFilter.MayContainSubstring(needle)
}

// Apply folds a change event into the index. resolve is called for
// Created/Modified to obtain the record's current filesystem metadata;
// Index itself never stats the filesystem. For Resync, Apply only
// tombstones everything under the affected prefix — the caller (Engine)
// is responsible for re-enumerating and re-inserting afterward.
func (idx *Index) Apply(ev change.Event, resolve func(path string) (record.FileRecord, error)) error {
	switch ev.Kind {
	case change.Created:
		rec, err := resolve(ev.NewPath)
		if err != nil {
			return err
		}
		return idx.Insert(rec)

	case change.Modified:
		rec, err := resolve(ev.NewPath)
		if err != nil {
			return err
		}
		return idx.Update(rec.FullPathID, rec.Size, rec.Modified, rec.Accessed, rec.Attrs)

	case change.Deleted:
		fullPathID, err := idx.pool.Intern(ev.NewPath)
		if err != nil {
			return err
		}
		return idx.Remove(fullPathID)

	case change.Renamed:
		oldID, err := idx.pool.Intern(ev.OldPath)
		if err != nil {
			return err
		}
		comps, err := idx.pool.InternPathComponents(ev.NewPath)
		if err != nil {
			return err
		}
		return idx.Rename(oldID, record.FileRecord{
			FullPathID: comps.FullPathID,
			NameID:     comps.NameID,
			DirID:      comps.DirID,
			ExtID:      comps.ExtID,
		})

	case change.Resync:
		return idx.tombstonePrefix(ev.NewPath)

	default:
		return fferrors.NewIndexingError("apply", fferrors.ErrUnsupported)
	}
}

func (idx *Index) tombstonePrefix(prefix string) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()
	var toRemove []types.StringID
	for fullPathID := range cur.byPath {
		resolved, ok := idx.pool.Get(fullPathID)
		if !ok {
			continue
		}
		if strings.HasPrefix(resolved, prefix) {
			toRemove = append(toRemove, fullPathID)
		}
	}
	for _, id := range toRemove {
		if err := idx.removeLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// Optimize compacts tombstones out of the record vector and rebuilds the
// extension buckets against the new slot numbering.
func (idx *Index) Optimize() {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	compacted := make([]record.FileRecord, 0, len(idx.records))
	remap := make(map[types.RecordID]types.RecordID, len(idx.records))
	for i, rec := range idx.records {
		if idx.tomb[i] {
			continue
		}
		remap[types.RecordID(i)] = types.RecordID(len(compacted))
		compacted = append(compacted, rec)
	}

	newByPath := make(map[types.StringID]types.RecordID, len(compacted))
	for i, rec := range compacted {
		newByPath[rec.FullPathID] = types.RecordID(i)
	}

	cur := idx.snap.Load()
	newExt := make(map[types.StringID][]types.RecordID, len(cur.extBuckets))
	for ext, slots := range cur.extBuckets {
		var remapped []types.RecordID
		for _, s := range slots {
			if ns, ok := remap[s]; ok {
				remapped = append(remapped, ns)
			}
		}
		if len(remapped) > 0 {
			newExt[ext] = remapped
		}
	}

	idx.records = compacted
	idx.tomb = make([]bool, len(compacted))
	idx.snap.Store(&auxSnapshot{length: len(compacted), byPath: newByPath, extBuckets: newExt})
}

// Stats reports point-in-time counters.
func (idx *Index) Stats() Stats {
	cur := idx.snap.Load()
	return Stats{
		LiveRecords:      idx.liveCount.Load(),
		TombstonedSlots:  int64(cur.length) - idx.liveCount.Load(),
		ExtensionBuckets: len(cur.extBuckets),
	}
}
