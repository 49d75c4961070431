package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleFile40KiB(t *testing.T) *Manifest {
	t.Helper()
	m, err := New([]FileRecord{
		{Path: "a.bin", Size: 40 * 1024, Offset: 0},
	}, 16*1024)
	require.NoError(t, err)
	return m
}

func TestNew_rejectsNonContiguousOffsets(t *testing.T) {
	_, err := New([]FileRecord{
		{Path: "a", Size: 10, Offset: 0},
		{Path: "b", Size: 10, Offset: 20},
	}, 16)
	require.Error(t, err)
}

func TestPieceSize_lastPieceShort(t *testing.T) {
	m := singleFile40KiB(t)
	require.Equal(t, 3, m.NumPieces())
	assert.Equal(t, int64(16*1024), m.PieceSize(0))
	assert.Equal(t, int64(16*1024), m.PieceSize(1))
	assert.Equal(t, int64(8*1024), m.PieceSize(2))
}

func TestMapBlock_mappingTotality(t *testing.T) {
	m := singleFile40KiB(t)
	for p := 0; p < m.NumPieces(); p++ {
		slices, err := m.MapBlock(p, 0, m.PieceSize(p))
		require.NoError(t, err)
		var total int64
		for _, s := range slices {
			total += s.Length
		}
		assert.Equal(t, m.PieceSize(p), total)
	}
}

func TestMapBlock_padFileScenario(t *testing.T) {
	// file "a"=10KiB, pad=6KiB, file "b"=16KiB; P=16KiB (scenario S2).
	m, err := New([]FileRecord{
		{Path: "a", Size: 10 * 1024, Offset: 0},
		{Path: "a.pad", Size: 6 * 1024, Offset: 10 * 1024, PadFile: true},
		{Path: "b", Size: 16 * 1024, Offset: 16 * 1024},
	}, 16*1024)
	require.NoError(t, err)

	slices, err := m.MapBlock(0, 0, 16*1024)
	require.NoError(t, err)
	require.Len(t, slices, 2)
	assert.Equal(t, 0, slices[0].FileIndex)
	assert.Equal(t, int64(10*1024), slices[0].Length)
	assert.False(t, slices[0].PadFile)
	assert.Equal(t, 1, slices[1].FileIndex)
	assert.Equal(t, int64(6*1024), slices[1].Length)
	assert.True(t, slices[1].PadFile)
}

func TestFileIndexAt(t *testing.T) {
	m := singleFile40KiB(t)
	idx, err := m.FileIndexAt(0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = m.FileIndexAt(40 * 1024)
	require.Error(t, err)
}

func TestMutable_renamePreservesBase(t *testing.T) {
	m := singleFile40KiB(t)
	mm := NewMutable(m)
	require.NoError(t, mm.RenameFile(0, "renamed.bin"))

	assert.Equal(t, "renamed.bin", mm.Path(0))
	assert.Equal(t, "a.bin", mm.Base().File(0).Path)
}

func TestMutable_defaultPriority(t *testing.T) {
	m := singleFile40KiB(t)
	mm := NewMutable(m)
	assert.Equal(t, 4, mm.Priority(0))
	require.NoError(t, mm.SetPriority(0, 0))
	assert.Equal(t, 0, mm.Priority(0))
}
