// Package ntfs implements the NTFS MFT/USN-journal enumerator backend.
//
// USN_RECORD_V2 parsing and the FRN-forest path resolution in this file
// are pure byte/graph operations with no Win32 dependency, so they are
// kept free of a windows build tag and exercised directly in tests on
// any platform; only the actual volume I/O (ntfs_windows.go) is gated.
package ntfs

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/standardbeagle/ffindex/internal/types"
)

// maxPathDepth bounds FRN-parent-chain walks. The MFT forest cannot
// contain a cycle when well-formed; this is a guard against corruption,
// not an expected code path.
const maxPathDepth = 256

// usnRecordV2HeaderSize is the fixed portion of a USN_RECORD_V2 before
// its variable-length, UTF-16 FileName.
const usnRecordV2HeaderSize = 60

// mftRecord is one parsed USN_RECORD_V2: a file reference number, its
// parent, a name, and attributes. Timestamps arrive as Windows FILETIME
// (100ns ticks since 1601-01-01) and are converted to unix nanoseconds
// at parse time so nothing downstream needs to know about FILETIME.
type mftRecord struct {
	FRN        uint64
	ParentFRN  uint64
	Name       string
	Attributes uint32
	TimestampNs int64
}

// parseUSNRecordV2 decodes one USN_RECORD_V2 from the head of buf and
// returns the record along with the number of bytes it occupied
// (buf[recordLength:] is where the next record, if any, begins). A
// recordLength of 0 signals the enumeration buffer's logical end.
func parseUSNRecordV2(buf []byte) (rec mftRecord, recordLength int, err error) {
	if len(buf) < 4 {
		return mftRecord{}, 0, fmt.Errorf("ntfs: buffer too short for a USN record header")
	}
	recordLength = int(binary.LittleEndian.Uint32(buf[0:4]))
	if recordLength == 0 {
		return mftRecord{}, 0, nil
	}
	if recordLength < usnRecordV2HeaderSize || recordLength > len(buf) {
		return mftRecord{}, 0, fmt.Errorf("ntfs: malformed USN record length %d", recordLength)
	}

	frn := binary.LittleEndian.Uint64(buf[8:16])
	parentFRN := binary.LittleEndian.Uint64(buf[16:24])
	filetime := int64(binary.LittleEndian.Uint64(buf[32:40]))
	attrs := binary.LittleEndian.Uint32(buf[52:56])
	nameLen := int(binary.LittleEndian.Uint16(buf[56:58]))
	nameOffset := int(binary.LittleEndian.Uint16(buf[58:60]))

	if nameOffset+nameLen > recordLength {
		return mftRecord{}, 0, fmt.Errorf("ntfs: USN record name extends past record length")
	}
	name, err := decodeUTF16Name(buf[nameOffset : nameOffset+nameLen])
	if err != nil {
		return mftRecord{}, 0, err
	}

	return mftRecord{
		FRN:         frn,
		ParentFRN:   parentFRN,
		Name:        name,
		Attributes:  attrs,
		TimestampNs: filetimeToUnixNs(filetime),
	}, recordLength, nil
}

// decodeUTF16Name decodes a little-endian UTF-16 byte slice (no
// trailing NUL, as USN_RECORD_V2 FileName is length-prefixed rather
// than NUL-terminated).
func decodeUTF16Name(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("ntfs: odd-length UTF-16 filename (%d bytes)", len(b))
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(units)), nil
}

// filetimeEpochDeltaNs is the number of 100ns ticks between the
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochDelta100ns = 116444736000000000

func filetimeToUnixNs(filetime int64) int64 {
	return (filetime - filetimeEpochDelta100ns) * 100
}

// isSystemFRN reports whether frn belongs to one of the MFT's reserved
// system metafiles ($MFT, $MFTMirr, $LogFile, ...), which always occupy
// the first 16 file reference numbers.
func isSystemFRN(frn uint64) bool {
	return (frn & 0x0000FFFFFFFFFFFF) < 16
}

// resolvedPath is one FRN's position in the directory forest once
// fully resolved: its interned path components plus the raw name/attrs
// needed to build a FileRecord.
type resolvedPath struct {
	FullPath string
	DirPath  string
	Name     string
}

// resolveFullPaths walks every record's parent chain up to rootFRN (or
// to a FRN this batch never saw, in which case the chain is left
// unresolved and the record is skipped by the caller) and returns the
// full path for each FRN. byFRN is the forest: FRN -> (parent FRN,
// name). A chain deeper than maxPathDepth is treated as corruption and
// its FRN is omitted rather than looping forever.
func resolveFullPaths(byFRN map[uint64]mftRecord, rootFRN uint64, sep string) map[uint64]resolvedPath {
	resolved := make(map[uint64]resolvedPath, len(byFRN))
	for frn := range byFRN {
		if _, ok := resolved[frn]; ok {
			continue
		}
		resolveChain(frn, byFRN, rootFRN, sep, resolved, nil)
	}
	return resolved
}

// resolveChain resolves frn and, transitively, every unresolved
// ancestor needed to do so, memoizing into resolved. visiting tracks
// the current call stack to break cycles defensively even though a
// well-formed MFT forest cannot contain one.
func resolveChain(frn uint64, byFRN map[uint64]mftRecord, rootFRN uint64, sep string, resolved map[uint64]resolvedPath, visiting map[uint64]bool) {
	if _, ok := resolved[frn]; ok {
		return
	}
	rec, ok := byFRN[frn]
	if !ok {
		return // parent outside this batch; caller's record stays unresolved
	}

	if frn == rootFRN {
		resolved[frn] = resolvedPath{FullPath: sep, DirPath: "", Name: sep}
		return
	}

	if visiting == nil {
		visiting = make(map[uint64]bool, maxPathDepth)
	}
	if visiting[frn] || len(visiting) >= maxPathDepth {
		return // cycle or pathological depth: treat as corruption, drop silently
	}
	visiting[frn] = true
	defer delete(visiting, frn)

	if _, ok := resolved[rec.ParentFRN]; !ok {
		resolveChain(rec.ParentFRN, byFRN, rootFRN, sep, resolved, visiting)
	}
	parent, ok := resolved[rec.ParentFRN]
	if !ok {
		return
	}

	dir := parent.FullPath
	full := joinNTFSPath(dir, rec.Name, sep)
	resolved[frn] = resolvedPath{FullPath: full, DirPath: dir, Name: rec.Name}
}

func joinNTFSPath(dir, name, sep string) string {
	if dir == sep {
		return dir + name
	}
	return dir + sep + name
}

// attrsFromFileAttributes maps Win32 FILE_ATTRIBUTE_* bits to the
// engine's Attrs bitset.
func attrsFromFileAttributes(winAttrs uint32) types.Attrs {
	const (
		fileAttributeReadonly    = 0x00000001
		fileAttributeHidden      = 0x00000002
		fileAttributeSystem      = 0x00000004
		fileAttributeDirectory   = 0x00000010
		fileAttributeReparsePoint = 0x00000400
	)
	var attrs types.Attrs
	if winAttrs&fileAttributeReadonly != 0 {
		attrs |= types.AttrReadonly
	}
	if winAttrs&fileAttributeHidden != 0 {
		attrs |= types.AttrHidden
	}
	if winAttrs&fileAttributeSystem != 0 {
		attrs |= types.AttrSystem
	}
	if winAttrs&fileAttributeDirectory != 0 {
		attrs |= types.AttrDirectory
	}
	if winAttrs&fileAttributeReparsePoint != 0 {
		attrs |= types.AttrReparse
	}
	return attrs
}
