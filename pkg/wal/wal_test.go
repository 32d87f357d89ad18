package wal

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, path string, recs ...string) *Writer {
	t.Helper()
	w, err := OpenWrite(path, 0)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Append([]byte(r)))
	}
	require.NoError(t, w.Flush())
	return w
}

func TestReplay_AllRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wal")
	w := writeRecords(t, path, "one", "two", "three")
	require.NoError(t, w.Close())

	var got []string
	st, err := Replay(path, ReplayOptions{}, func(p []byte) error {
		got = append(got, string(p))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, 3, st.Records)
	assert.False(t, st.TruncatedTail)
	assert.Equal(t, int64(3*headerSize+3+3+5), st.LastGoodOffset)
}

func TestReplay_MissingFile(t *testing.T) {
	st, err := Replay(filepath.Join(t.TempDir(), "none.wal"), ReplayOptions{}, func([]byte) error {
		t.Fatal("不应该有记录")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Records)
}

func TestReplay_TruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.wal")
	w := writeRecords(t, path, "one", "two")
	good := w.Offset()
	require.NoError(t, w.Close())

	// 模拟崩溃：第三条只写了一半
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{5, 0, 0, 0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Replay(path, ReplayOptions{}, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptHeader)

	st, err := Replay(path, ReplayOptions{AllowTruncatedTail: true}, func([]byte) error { return nil })
	require.NoError(t, err)
	assert.True(t, st.TruncatedTail)
	assert.Equal(t, good, st.LastGoodOffset)

	require.NoError(t, TruncateTo(path, st.LastGoodOffset))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, good, info.Size())
}

func TestReplay_ChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.wal")
	w := writeRecords(t, path, "payload")
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[len(b)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(path, ReplayOptions{AllowTruncatedTail: true}, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReader_FromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.wal")
	w, err := OpenWrite(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("first")))
	mid := w.Offset()
	require.NoError(t, w.Append([]byte("second")))
	require.NoError(t, w.Close())

	r, err := OpenReader(path, mid, ReaderOptions{AllowTruncatedTail: true})
	require.NoError(t, err)
	defer r.Close()

	p, next, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", string(p))
	assert.Equal(t, next, r.LastGoodOffset())

	_, _, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriter_ClosedAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e.wal")
	w, err := OpenWrite(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Append([]byte("x")), ErrClosed)
	assert.NoError(t, w.Close())
}
