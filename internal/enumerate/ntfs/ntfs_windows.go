//go:build windows
// +build windows

package ntfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sys/windows"

	"github.com/standardbeagle/ffindex/internal/enumerate"
	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/ffdebug"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
	"github.com/standardbeagle/ffindex/internal/types"
)

// FSCTL control codes and USN/MFT structure layouts below are fixed
// Windows DDK constants (winioctl.h); x/sys/windows does not export
// them, only the CreateFile/DeviceIoControl syscalls used to issue them
// (grounded on flock_windows.go's windows.Open/LockFileEx pairing of a
// raw handle with x/sys/windows syscalls).
const (
	fsctlQueryUSNJournal = 0x000900F4
	fsctlCreateUSNJournal = 0x000900E7
	fsctlEnumUSNData     = 0x000900B3

	rootMFTIndex = 5 // the volume root directory always occupies MFT record 5
)

// Enumerator is the NTFS MFT/USN-journal backend.
type Enumerator struct {
	pool *stringpool.Pool
}

// New builds an Enumerator that interns discovered paths into pool.
func New(pool *stringpool.Pool) *Enumerator {
	return &Enumerator{pool: pool}
}

// Enumerate implements enumerate.Enumerator by walking each root's
// volume via the USN journal (§4.3a): open the volume, ensure a
// journal exists, page through FSCTL_ENUM_USN_DATA, resolve every FRN's
// full path against the forest accumulated so far, and emit one
// FileRecord per surviving entry.
func (e *Enumerator) Enumerate(ctx context.Context, cfg *ffconfig.Config, sink enumerate.Sink) error {
	if len(cfg.Roots) == 0 {
		return fferrors.NewIndexingError("enumerate", fferrors.ErrNotFound)
	}

	excludeExts := make(map[string]bool, len(cfg.ExcludedExtensions))
	for _, ext := range cfg.ExcludedExtensions {
		excludeExts[strings.ToLower(ext)] = true
	}

	for _, root := range cfg.Roots {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.enumerateVolume(ctx, root, cfg, excludeExts, sink); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enumerator) enumerateVolume(ctx context.Context, root string, cfg *ffconfig.Config, excludeExts map[string]bool, sink enumerate.Sink) error {
	drive := volumeSpec(root)
	handle, err := openVolume(drive)
	if err != nil {
		return fferrors.NewVolumeIOError(drive, err)
	}
	defer windows.CloseHandle(handle)

	if err := ensureUSNJournal(handle); err != nil {
		return fferrors.NewVolumeIOError(drive, err)
	}

	bufSize := ffconfig.ClampMFTBuffer(cfg.MFTBufferBytes)
	buf := make([]byte, bufSize)

	byFRN := make(map[uint64]mftRecord)
	var rootFRN uint64
	haveRoot := false

	var startFRN uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, nextStart, err := enumUSNData(handle, startFRN, buf)
		if err != nil {
			return fferrors.NewVolumeIOError(drive, err)
		}
		if n == 0 {
			break
		}

		offset := 8 // first 8 bytes are the next StartFileReferenceNumber
		for offset < n {
			rec, consumed, perr := parseUSNRecordV2(buf[offset:n])
			if perr != nil {
				ffdebug.LogIndexing("ntfs: dropping malformed USN record on %s: %v", drive, perr)
				break
			}
			if consumed == 0 {
				break
			}
			byFRN[rec.FRN] = rec
			if frnIndex(rec.FRN) == rootMFTIndex {
				rootFRN = rec.FRN
				haveRoot = true
			}
			offset += consumed
		}

		if nextStart == startFRN {
			break
		}
		startFRN = nextStart
	}

	if !haveRoot {
		return fferrors.NewVolumeIOError(drive, fmt.Errorf("ntfs: volume root (MFT record %d) not found in USN enumeration", rootMFTIndex))
	}

	resolved := resolveFullPaths(byFRN, rootFRN, `\`)
	batch := make([]record.FileRecord, 0, cfg.BatchSize)
	for frn, rec := range byFRN {
		rp, ok := resolved[frn]
		if !ok || frn == rootFRN {
			continue
		}
		if cfg.SkipSystemFiles && isSystemFRN(frn) {
			continue
		}
		fullPath := drive + rp.FullPath
		if isExcludedPath(fullPath, cfg.ExcludedPaths) {
			continue
		}
		attrs := attrsFromFileAttributes(rec.Attributes)
		if !cfg.IncludeHidden && attrs.Has(types.AttrHidden) {
			continue
		}
		if !cfg.IncludeSystem && attrs.Has(types.AttrSystem) {
			continue
		}

		ext := strings.ToLower(extOf(rec.Name))
		if ext != "" && excludeExts[ext] {
			continue
		}

		size := types.UnknownSize
		if !attrs.IsDirectory() {
			if sz, err := queryFileSize(fullPath); err == nil {
				size = sz
			}
		} else {
			size = 0
		}
		if cfg.MaxFileSize > 0 && size > cfg.MaxFileSize {
			continue
		}

		comps, err := e.pool.InternPathComponents(fullPath)
		if err != nil {
			return err
		}

		batch = append(batch, record.FileRecord{
			FullPathID: comps.FullPathID,
			NameID:     comps.NameID,
			DirID:      comps.DirID,
			ExtID:      comps.ExtID,
			Size:       size,
			Created:    rec.TimestampNs,
			Modified:   rec.TimestampNs,
			Accessed:   rec.TimestampNs,
			Attrs:      attrs,
		})
		if len(batch) >= cfg.BatchSize {
			if err := flushBatch(batch, sink); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	return flushBatch(batch, sink)
}

func flushBatch(batch []record.FileRecord, sink enumerate.Sink) error {
	for _, rec := range batch {
		if err := sink(rec); err != nil {
			return err
		}
	}
	return nil
}

func frnIndex(frn uint64) uint64 { return frn & 0x0000FFFFFFFFFFFF }

func extOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[idx:]
	}
	return ""
}

func isExcludedPath(path string, patterns []string) bool {
	// Grounded on the posix backend's normalized doublestar matching;
	// NTFS full paths use backslashes, so forward-slash them first.
	normalized := strings.TrimPrefix(strings.ReplaceAll(path, `\`, "/"), "/")
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, normalized); matched {
			return true
		}
	}
	return false
}

func volumeSpec(root string) string {
	letter := strings.TrimSuffix(root, `\`)
	if len(letter) == 2 && letter[1] == ':' {
		return letter
	}
	return root
}

func openVolume(drive string) (windows.Handle, error) {
	path := `\\.\` + drive
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
}

func ensureUSNJournal(handle windows.Handle) error {
	var outBuf [56]byte
	var bytesReturned uint32
	err := windows.DeviceIoControl(handle, fsctlQueryUSNJournal, nil, 0, &outBuf[0], uint32(len(outBuf)), &bytesReturned, nil)
	if err == nil {
		return nil
	}

	// No journal yet: create one with generous defaults and retry the query.
	var createBuf [16]byte
	putU64(createBuf[0:8], 32<<20)  // MaximumSize: 32 MiB
	putU64(createBuf[8:16], 4<<20)  // AllocationDelta: 4 MiB
	if err := windows.DeviceIoControl(handle, fsctlCreateUSNJournal, &createBuf[0], uint32(len(createBuf)), nil, 0, &bytesReturned, nil); err != nil {
		return fmt.Errorf("ntfs: create USN journal: %w", err)
	}
	return windows.DeviceIoControl(handle, fsctlQueryUSNJournal, nil, 0, &outBuf[0], uint32(len(outBuf)), &bytesReturned, nil)
}

// enumUSNData issues one FSCTL_ENUM_USN_DATA call starting at startFRN
// and returns the number of output bytes filled, the next call's
// StartFileReferenceNumber, and any error.
func enumUSNData(handle windows.Handle, startFRN uint64, buf []byte) (n int, nextStart uint64, err error) {
	var inBuf [24]byte
	putU64(inBuf[0:8], startFRN)
	putU64(inBuf[8:16], 0)               // LowUsn
	putU64(inBuf[16:24], ^uint64(0)>>1)  // HighUsn: max USN, take everything

	var bytesReturned uint32
	err = windows.DeviceIoControl(handle, fsctlEnumUSNData, &inBuf[0], uint32(len(inBuf)), &buf[0], uint32(len(buf)), &bytesReturned, nil)
	if err != nil {
		if err == windows.ERROR_HANDLE_EOF {
			return 0, startFRN, nil
		}
		return 0, 0, err
	}
	if bytesReturned < 8 {
		return 0, startFRN, nil
	}
	nextStart = getU64(buf[0:8])
	return int(bytesReturned), nextStart, nil
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// queryFileSize opens path just long enough to read its size, for the
// small-file secondary pass §4.3a calls for (USN records never carry
// size). Directories are sized 0 by the caller without reaching here.
func queryFileSize(path string) (int64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var fd windows.Win32finddata
	h, err := windows.FindFirstFile(p, &fd)
	if err != nil {
		return 0, err
	}
	defer windows.FindClose(h)
	return int64(fd.FileSizeHigh)<<32 | int64(fd.FileSizeLow), nil
}

// AvailableRoots lists the NTFS-formatted fixed drives on this host.
func (e *Enumerator) AvailableRoots() ([]string, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}

	var roots []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		drive := string(rune('A'+i)) + `:\`
		p, err := windows.UTF16PtrFromString(drive)
		if err != nil {
			continue
		}
		if windows.GetDriveType(p) != windows.DRIVE_FIXED {
			continue
		}
		if !isNTFS(drive) {
			continue
		}
		roots = append(roots, drive)
	}
	return roots, nil
}

func isNTFS(drive string) bool {
	p, err := windows.UTF16PtrFromString(drive)
	if err != nil {
		return false
	}
	fsName := make([]uint16, 32)
	err = windows.GetVolumeInformation(p, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName)))
	if err != nil {
		return false
	}
	return windows.UTF16ToString(fsName) == "NTFS"
}

var _ enumerate.Enumerator = (*Enumerator)(nil)
