package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentstore/diskcore/pkg/filepool"
	"github.com/torrentstore/diskcore/pkg/manifest"
)

func newTestStorage(t *testing.T, files []manifest.FileRecord, pieceLength int64) *Storage {
	t.Helper()
	m, err := manifest.New(files, pieceLength)
	require.NoError(t, err)

	pool := filepool.New(8, false)
	s := New("s1", m, t.TempDir(), pool, nil, ModeCached)
	require.NoError(t, s.Initialize(true))
	return s
}

// S1: single-file torrent, piece 0 round-trip.
func TestReadAfterWrite_singleFileRoundTrip(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a.bin", Size: 40 * 1024, Offset: 0},
	}, 16*1024)

	data := bytes.Repeat([]byte{0xAA}, 16*1024)
	n, err := s.Writev([]IoVec{{Buf: data}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(16*1024), n)

	readBuf := make([]byte, 16*1024)
	n, err = s.Readv([]IoVec{{Buf: readBuf}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(16*1024), n)
	assert.Equal(t, data, readBuf)
}

func TestReadAfterWrite_lastPieceShort(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a.bin", Size: 40 * 1024, Offset: 0},
	}, 16*1024)

	data := bytes.Repeat([]byte{0x42}, 8*1024)
	n, err := s.Writev([]IoVec{{Buf: data}}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8*1024), n)

	readBuf := make([]byte, 8*1024)
	n, err = s.Readv([]IoVec{{Buf: readBuf}}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8*1024), n)
	assert.Equal(t, data, readBuf)
}

// S2: pad-file read returns zeros without opening the underlying file.
func TestPadFile_readReturnsZerosWithoutOpeningRealFile(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a", Size: 10 * 1024, Offset: 0},
		{Path: "a.pad", Size: 6 * 1024, Offset: 10 * 1024, PadFile: true},
		{Path: "b", Size: 16 * 1024, Offset: 16 * 1024},
	}, 16*1024)

	data := bytes.Repeat([]byte{0x01}, 10*1024)
	n, err := s.Writev([]IoVec{{Buf: data}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024), n)

	// "b" must never be created by this read.
	bPath := filepath.Join(s.SavePath, "b")
	require.NoError(t, os.Remove(bPath))

	readBuf := make([]byte, 16*1024)
	n, err = s.Readv([]IoVec{{Buf: readBuf}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(16*1024), n)
	assert.Equal(t, data, readBuf[:10*1024])
	assert.Equal(t, make([]byte, 6*1024), readBuf[10*1024:])

	_, err = os.Stat(bPath)
	assert.True(t, os.IsNotExist(err), "pad-file read must not have recreated file b")
}

func TestPadFile_writeIsDiscarded(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a", Size: 10 * 1024, Offset: 0},
		{Path: "a.pad", Size: 6 * 1024, Offset: 10 * 1024, PadFile: true},
	}, 16*1024)

	n, err := s.Writev([]IoVec{{Buf: bytes.Repeat([]byte{0x7}, 6*1024)}}, 0, 10*1024)
	require.NoError(t, err)
	assert.Equal(t, int64(6*1024), n)

	_, err = os.Stat(filepath.Join(s.SavePath, "a.pad"))
	assert.True(t, os.IsNotExist(err))
}

func TestRename_missingSourceIsNotAnError(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a.bin", Size: 16 * 1024, Offset: 0},
	}, 16*1024)
	require.NoError(t, os.Remove(filepath.Join(s.SavePath, "a.bin")))

	require.NoError(t, s.Rename(0, "renamed.bin"))
	assert.Equal(t, "renamed.bin", s.Manifest().Path(0))
}

func TestDeleteFiles_missingFileIgnored(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a.bin", Size: 16 * 1024, Offset: 0},
	}, 16*1024)
	require.NoError(t, os.Remove(filepath.Join(s.SavePath, "a.bin")))

	err := s.DeleteFiles(DeleteOptions{DeleteDirectories: true})
	require.NoError(t, err)
}

func TestHasAnyFile(t *testing.T) {
	s := newTestStorage(t, []manifest.FileRecord{
		{Path: "a.bin", Size: 16 * 1024, Offset: 0},
	}, 16*1024)
	assert.True(t, s.HasAnyFile())
}
