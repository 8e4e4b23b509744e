package storage

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestArchive(t *testing.T) *MapArchive {
	t.Helper()
	archive, err := NewMemoryMapArchive()
	require.NoError(t, err, "не удалось создать архив")
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestPutAndGet(t *testing.T) {
	archive := setupTestArchive(t)
	data := bytes.Repeat([]byte{77, 9, 0, 0, 0, 1}, 200)

	digest, changed, err := archive.Put(1, data)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, DigestOf(data), digest)

	got, err := archive.Get(1)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	stored, err := archive.Digest(1)
	require.NoError(t, err)
	assert.Equal(t, digest, stored)
	assert.Len(t, stored.String(), 64)
}

func TestPutSameContentIsNoop(t *testing.T) {
	archive := setupTestArchive(t)

	_, changed, err := archive.Put(5, []byte("first"))
	require.NoError(t, err)
	require.True(t, changed)

	_, changed, err = archive.Put(5, []byte("first"))
	require.NoError(t, err)
	assert.False(t, changed, "повторная запись тех же байт пропускается")

	digest, changed, err := archive.Put(5, []byte("second"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, DigestOf([]byte("second")), digest)

	got, err := archive.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestMissingMap(t *testing.T) {
	archive := setupTestArchive(t)

	_, err := archive.Get(404)
	assert.ErrorIs(t, err, ErrMapNotFound)

	_, err = archive.Digest(404)
	assert.ErrorIs(t, err, ErrMapNotFound)

	ok, err := archive.Has(404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAndDelete(t *testing.T) {
	archive := setupTestArchive(t)
	for _, id := range []uint32{10, 2, 300} {
		_, _, err := archive.Put(id, []byte{byte(id)})
		require.NoError(t, err)
	}

	ids, err := archive.List()
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 10, 300}, ids)

	require.NoError(t, archive.Delete(10))
	ok, err := archive.Has(10)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = archive.List()
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 300}, ids)
}

func TestArchiveOnDisk(t *testing.T) {
	dir, err := os.MkdirTemp("", "map-archive-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	archive, err := NewMapArchive(dir)
	require.NoError(t, err)
	_, _, err = archive.Put(7, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, archive.Close())

	reopened, err := NewMapArchive(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(7)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestClosedArchive(t *testing.T) {
	archive, err := NewMemoryMapArchive()
	require.NoError(t, err)
	require.NoError(t, archive.Close())
	require.NoError(t, archive.Close(), "повторное закрытие безопасно")

	_, err = archive.Get(1)
	assert.Error(t, err)
	_, _, err = archive.Put(1, []byte("x"))
	assert.Error(t, err)
}
