// Package types holds the small value types shared across every layer of
// the engine (string ids, attribute bitsets, record ids) so that no package
// needs to import another purely for a primitive.
package types

// StringID identifies a byte sequence interned in a StringPool. Id 0 is
// reserved for the empty string and is always valid.
type StringID uint32

// RecordID identifies a live slot in an Index's record vector. It is
// distinct from StringID so the two id spaces can never be confused at
// compile time.
type RecordID uint32

// InvalidRecord marks the absence of a record slot.
const InvalidRecord RecordID = 1<<32 - 1

// UnknownSize is the sentinel used for FileRecord.Size when an enumerator
// (the NTFS MFT backend, for small/directory entries) cannot cheaply
// determine a file's size.
const UnknownSize int64 = -1

// Attrs is the bitset carried on every FileRecord.
type Attrs uint32

const (
	AttrHidden Attrs = 1 << iota
	AttrSystem
	AttrReadonly
	AttrDirectory
	AttrSymlink
	AttrReparse
)

func (a Attrs) Has(flag Attrs) bool { return a&flag != 0 }

func (a Attrs) IsDirectory() bool { return a.Has(AttrDirectory) }

// Generation tags a StringPool epoch. Ids minted before a Cleanup() call
// are not valid against a pool with a later generation.
type Generation uint32
