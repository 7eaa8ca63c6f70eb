// Package record defines FileRecord, the fixed-layout entry an Index
// stores one of per indexed file or directory, and its wire codec.
//
// The layout is grounded on the TrigramBucket/FileSnapshot
// shape (internal/indexing/master_index.go, internal/core/trigram_sharded_storage.go):
// small, fixed-width, interned-id-keyed records that are cheap to copy
// and cheap to hash into buckets.
package record

import "github.com/standardbeagle/ffindex/internal/types"

// Size is the encoded byte width of a FileRecord on the wire: four u32
// ids, three i64 timestamps, one i64 size, one u32 attrs bitset.
const Size = 4*4 + 4*8 + 4

// FileRecord is a single indexed filesystem entry.
type FileRecord struct {
	FullPathID types.StringID
	NameID     types.StringID
	DirID      types.StringID
	ExtID      types.StringID

	Size int64 // bytes; UnknownSize (-1) for MFT records pending a size pass; 0 for directories

	Created  int64 // ns since epoch, UTC
	Modified int64
	Accessed int64

	Attrs types.Attrs
}

// IsDirectory reports whether the record's attrs mark it as a directory.
func (r FileRecord) IsDirectory() bool { return r.Attrs.IsDirectory() }

// WithRename returns a copy of r with its path identity replaced, as
// ChangeMonitor does on a Renamed event.
func (r FileRecord) WithRename(fullPathID, nameID, dirID, extID types.StringID) FileRecord {
	r.FullPathID = fullPathID
	r.NameID = nameID
	r.DirID = dirID
	r.ExtID = extID
	return r
}

// WithStat returns a copy of r with its mutable filesystem-observed
// fields replaced, as ChangeMonitor does on a Modified event.
func (r FileRecord) WithStat(size, modified, accessed int64, attrs types.Attrs) FileRecord {
	r.Size = size
	r.Modified = modified
	r.Accessed = accessed
	r.Attrs = attrs
	return r
}
