package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/record"
)

func sampleData() Data {
	return Data{
		Strings: []string{"", "/a", "foo.txt", ".txt"},
		Records: []record.FileRecord{
			{FullPathID: 1, NameID: 2, DirID: 1, ExtID: 3, Size: 10, Created: 1, Modified: 2, Accessed: 3},
		},
		ExtBuckets: map[uint32][]uint32{3: {0}},
	}
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	d := sampleData()
	require.NoError(t, Encode(&buf, d))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, d.Strings, got.Strings)
	require.Equal(t, d.Records, got.Records)
	require.Equal(t, d.ExtBuckets, got.ExtBuckets)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData()))
	corrupted := buf.Bytes()
	corrupted[0] = 'X'

	_, err := Decode(bytes.NewReader(corrupted))
	require.Error(t, err)
	require.True(t, errors.Is(err, fferrors.ErrFormat))
}

func TestDecodeRejectsCorruptedCRC(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleData()))
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(corrupted))
	require.Error(t, err)
	require.True(t, errors.Is(err, fferrors.ErrFormat))
}

func TestEncodeDecodeEmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Data{}))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Empty(t, got.Strings)
	require.Empty(t, got.Records)
	require.Empty(t, got.ExtBuckets)
}
