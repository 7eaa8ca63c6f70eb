package bloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddUint32ThenMayContainIsTrue(t *testing.T) {
	f := New(1000, 0.01)
	f.AddUint32(42)
	require.True(t, f.MayContainUint32(42))
}

func TestMayContainNeverFalseNegative(t *testing.T) {
	f := New(500, 0.01)
	for i := uint32(0); i < 500; i++ {
		f.AddUint32(i)
	}
	for i := uint32(0); i < 500; i++ {
		require.True(t, f.MayContainUint32(i), "must not false-negative on %d", i)
	}
}

func TestResetClearsFilter(t *testing.T) {
	f := New(10, 0.01)
	f.AddUint32(7)
	require.True(t, f.MayContainUint32(7))
	f.Reset()
	require.False(t, f.MayContainUint32(7))
}

func TestTrigramsSplitsOverlappingWindows(t *testing.T) {
	require.Equal(t, [][]byte{[]byte("abc"), []byte("bcd"), []byte("cde")}, Trigrams("abcde"))
	require.Nil(t, Trigrams("ab"))
	require.Nil(t, Trigrams(""))
}

func TestMayContainSubstringRejectsAbsentTrigram(t *testing.T) {
	f := New(100, 0.01)
	f.AddTrigramsOf("readme")

	require.True(t, f.MayContainSubstring("read"))
	require.True(t, f.MayContainSubstring("dme"))
	require.False(t, f.MayContainSubstring("xyz"))
}

func TestMayContainSubstringShortNeedleAlwaysPasses(t *testing.T) {
	f := New(100, 0.01)
	require.True(t, f.MayContainSubstring("a"))
	require.True(t, f.MayContainSubstring(""))
}
