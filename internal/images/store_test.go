package images

import (
	"errors"
	"issue-map/internal/errs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("photo.JPG"))
	assert.True(t, Allowed("x.webp"))
	assert.False(t, Allowed("notes.txt"))
	assert.False(t, Allowed("noext"))
}

func TestSecureName(t *testing.T) {
	assert.Equal(t, "passwd", SecureName("../../etc/passwd"))
	assert.Equal(t, "my_photo.png", SecureName("my photo.png"))
	assert.Equal(t, "evil.jpg", SecureName(`C:\Users\evil.jpg`))
	assert.Equal(t, "image", SecureName("..."))
}

func TestStore_Save(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024)
	require.NoError(t, err)

	stored, err := store.Save("hole.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored, "_hole.jpg"), stored)

	data, err := os.ReadFile(filepath.Join(store.Dir(), stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "/uploads/"+stored, URL(stored))
}

func TestStore_RejectsBadExtension(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = store.Save("payload.exe", strings.NewReader("x"))
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestStore_RejectsOversizedAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 4)
	require.NoError(t, err)

	_, err = store.Save("big.png", strings.NewReader("12345"))
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0)
	require.NoError(t, err)

	stored, err := store.Save("a.gif", strings.NewReader("gif"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(stored))
	require.NoError(t, store.Delete(stored))

	_, err = os.Stat(filepath.Join(dir, stored))
	assert.True(t, os.IsNotExist(err))
}
