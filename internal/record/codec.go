package record

import (
	"encoding/binary"

	"github.com/standardbeagle/ffindex/internal/types"
)

// Encode writes r into buf[:Size] in little-endian wire order.
func Encode(r FileRecord, buf []byte) {
	_ = buf[Size-1] // bounds check hint
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.FullPathID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.NameID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.DirID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.ExtID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.Size))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(r.Created))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(r.Modified))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(r.Accessed))
	binary.LittleEndian.PutUint32(buf[48:52], uint32(r.Attrs))
}

// Decode reads a FileRecord from buf[:Size].
func Decode(buf []byte) FileRecord {
	_ = buf[Size-1]
	return FileRecord{
		FullPathID: types.StringID(binary.LittleEndian.Uint32(buf[0:4])),
		NameID:     types.StringID(binary.LittleEndian.Uint32(buf[4:8])),
		DirID:      types.StringID(binary.LittleEndian.Uint32(buf[8:12])),
		ExtID:      types.StringID(binary.LittleEndian.Uint32(buf[12:16])),
		Size:       int64(binary.LittleEndian.Uint64(buf[16:24])),
		Created:    int64(binary.LittleEndian.Uint64(buf[24:32])),
		Modified:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		Accessed:   int64(binary.LittleEndian.Uint64(buf[40:48])),
		Attrs:      types.Attrs(binary.LittleEndian.Uint32(buf[48:52])),
	}
}
