package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir, "/assets/")
	require.NoError(t, err)

	url, key, err := store.Save("cover.jpg", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/assets/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))

	require.NoError(t, store.Delete(key))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingKeyIsANoop(t *testing.T) {
	store, err := NewDirStore(t.TempDir(), "/assets")
	require.NoError(t, err)
	assert.NoError(t, store.Delete("no-such-key.png"))
}

func TestDeleteRejectsPathLikeKeys(t *testing.T) {
	store, err := NewDirStore(t.TempDir(), "/assets")
	require.NoError(t, err)

	assert.Error(t, store.Delete(""))
	assert.Error(t, store.Delete("../outside.txt"))
	assert.Error(t, store.Delete(`sub\dir.png`))
}

func TestSaveGeneratesUniqueKeys(t *testing.T) {
	store, err := NewDirStore(t.TempDir(), "/assets")
	require.NoError(t, err)

	_, first, err := store.Save("a.png", strings.NewReader("one"))
	require.NoError(t, err)
	_, second, err := store.Save("a.png", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
