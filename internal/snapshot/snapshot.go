// Package snapshot implements the binary on-disk shape an Index can be
// serialized to and restored from: a magic-tagged, versioned, CRC32-
// checked stream of the string pool's contents, the live record vector,
// and the extension-bucket index.
//
// The write-then-checksum shape is grounded on
// internal/testing/binary_snapshot.go (SnapshotTrigramIndexData /
// ValidateSnapshotIntegrity): a binary.Write header followed by a
// checksum computed over the payload, with binary.Read performing the
// mirrored validation on load. CRC32 replaces that file's sha256 because
// the target format calls for a 4-byte trailer, not a content-addressed
// digest.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/types"
)

// Magic identifies an ffindex snapshot file. Version 1 is the only
// version this package understands.
var Magic = [8]byte{'F', 'F', 'I', 'N', 'D', 'X', '0', '1'}

const Version uint32 = 1

// FlagCaseFoldedIndex marks that the string pool's folded-form cache was
// populated at save time. It is informational only: restore always
// recomputes folded forms lazily regardless of this bit.
const FlagCaseFoldedIndex uint32 = 1 << 0

// Data is the plain, in-memory content of a snapshot. Record slot
// indices inside ExtBuckets refer to positions in Records.
type Data struct {
	Strings    []string
	Records    []record.FileRecord
	ExtBuckets map[uint32][]uint32 // ext_id -> record slot indices
	Flags      uint32
}

type crcWriter struct {
	w   io.Writer
	crc uint32
}

func (c *crcWriter) Write(p []byte) (int, error) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p)
	return c.w.Write(p)
}

// Encode writes d to w in the documented wire format.
func Encode(w io.Writer, d Data) error {
	bw := bufio.NewWriter(w)
	cw := &crcWriter{w: bw}

	if _, err := cw.Write(Magic[:]); err != nil {
		return err
	}
	if err := writeU32(cw, Version); err != nil {
		return err
	}
	if err := writeU32(cw, d.Flags); err != nil {
		return err
	}
	if err := writeU64(cw, uint64(len(d.Strings))); err != nil {
		return err
	}
	for _, s := range d.Strings {
		if err := writeU32(cw, uint32(len(s))); err != nil {
			return err
		}
		if _, err := cw.Write([]byte(s)); err != nil {
			return err
		}
	}

	if err := writeU64(cw, uint64(len(d.Records))); err != nil {
		return err
	}
	buf := make([]byte, record.Size)
	for _, r := range d.Records {
		record.Encode(r, buf)
		if _, err := cw.Write(buf); err != nil {
			return err
		}
	}

	if err := writeU32(cw, uint32(len(d.ExtBuckets))); err != nil {
		return err
	}
	for extID, slots := range d.ExtBuckets {
		if err := writeU32(cw, extID); err != nil {
			return err
		}
		if err := writeU32(cw, uint32(len(slots))); err != nil {
			return err
		}
		for _, slot := range slots {
			if err := writeU32(cw, slot); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, cw.crc); err != nil {
		return err
	}
	return bw.Flush()
}

// Decode reads a Data back from r, validating magic, version, and CRC32.
// On any mismatch it returns a *fferrors.SnapshotError wrapping FormatError
// and returns a zero Data; the caller's existing in-memory state is
// untouched since Decode never mutates caller state directly.
func Decode(r io.Reader) (Data, error) {
	br := bufio.NewReader(r)
	crcReader := crc32.NewIEEE()
	tee := io.TeeReader(br, crcReader)

	var magic [8]byte
	if _, err := io.ReadFull(tee, magic[:]); err != nil {
		return Data{}, fferrors.NewSnapshotError("read magic", err)
	}
	if magic != Magic {
		return Data{}, fferrors.NewSnapshotFormatError("bad magic")
	}

	version, err := readU32(tee)
	if err != nil {
		return Data{}, fferrors.NewSnapshotError("read version", err)
	}
	if version != Version {
		return Data{}, fferrors.NewSnapshotFormatError("unsupported version")
	}

	flags, err := readU32(tee)
	if err != nil {
		return Data{}, fferrors.NewSnapshotError("read flags", err)
	}

	stringCount, err := readU64(tee)
	if err != nil {
		return Data{}, fferrors.NewSnapshotError("read string count", err)
	}
	strs := make([]string, 0, stringCount)
	for i := uint64(0); i < stringCount; i++ {
		n, err := readU32(tee)
		if err != nil {
			return Data{}, fferrors.NewSnapshotError("read string length", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(tee, buf); err != nil {
			return Data{}, fferrors.NewSnapshotError("read string bytes", err)
		}
		strs = append(strs, string(buf))
	}

	recordCount, err := readU64(tee)
	if err != nil {
		return Data{}, fferrors.NewSnapshotError("read record count", err)
	}
	recs := make([]record.FileRecord, 0, recordCount)
	recBuf := make([]byte, record.Size)
	for i := uint64(0); i < recordCount; i++ {
		if _, err := io.ReadFull(tee, recBuf); err != nil {
			return Data{}, fferrors.NewSnapshotError("read record", err)
		}
		recs = append(recs, record.Decode(recBuf))
	}

	bucketCount, err := readU32(tee)
	if err != nil {
		return Data{}, fferrors.NewSnapshotError("read bucket count", err)
	}
	buckets := make(map[uint32][]uint32, bucketCount)
	for i := uint32(0); i < bucketCount; i++ {
		extID, err := readU32(tee)
		if err != nil {
			return Data{}, fferrors.NewSnapshotError("read bucket ext id", err)
		}
		count, err := readU32(tee)
		if err != nil {
			return Data{}, fferrors.NewSnapshotError("read bucket count", err)
		}
		slots := make([]uint32, count)
		for j := uint32(0); j < count; j++ {
			slot, err := readU32(tee)
			if err != nil {
				return Data{}, fferrors.NewSnapshotError("read bucket slot", err)
			}
			slots[j] = slot
		}
		buckets[extID] = slots
	}

	computedCRC := crcReader.Sum32()
	var fileCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &fileCRC); err != nil {
		return Data{}, fferrors.NewSnapshotError("read crc", err)
	}
	if fileCRC != computedCRC {
		return Data{}, fferrors.NewSnapshotFormatError("crc mismatch")
	}

	return Data{Strings: strs, Records: recs, ExtBuckets: buckets, Flags: flags}, nil
}

func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU64(w io.Writer, v uint64) error { return binary.Write(w, binary.LittleEndian, v) }

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// StringID is a convenience re-export so callers outside this package
// don't need a second import just to type a bucket key.
type StringID = types.StringID
