package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// jpegBytes carries a JPEG magic number so content sniffing accepts it.
func jpegBytes() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
}

func TestImageStore_SaveAvatar(t *testing.T) {
	req := require.New(t)
	store := NewImageStore(t.TempDir())

	path, err := store.SaveAvatar("alice", jpegBytes())
	req.NoError(err)
	req.Equal(filepath.Join("avatars", "alice.jpg"), path)

	// Replacing an existing avatar keeps the same path.
	path2, err := store.SaveAvatar("alice", jpegBytes())
	req.NoError(err)
	req.Equal(path, path2)
}

func TestImageStore_RejectsNonJPEG(t *testing.T) {
	req := require.New(t)
	store := NewImageStore(t.TempDir())

	_, err := store.SaveAvatar("alice", []byte("<html>not an image</html>"))
	req.ErrorIs(err, ErrNotJPEG)

	_, err = store.SaveItemImage("alice", "lamp", []byte{0x89, 'P', 'N', 'G'})
	req.ErrorIs(err, ErrNotJPEG)
}

func TestImageStore_ItemImagesLifecycle(t *testing.T) {
	req := require.New(t)
	store := NewImageStore(t.TempDir())

	first, err := store.SaveItemImage("alice", "lamp", jpegBytes())
	req.NoError(err)
	second, err := store.SaveItemImage("alice", "lamp", jpegBytes())
	req.NoError(err)
	req.NotEqual(first, second)

	paths, err := store.ItemImagePaths("alice", "lamp")
	req.NoError(err)
	req.Len(paths, 2)

	req.NoError(store.DeleteItemImages("alice", "lamp"))

	paths, err = store.ItemImagePaths("alice", "lamp")
	req.NoError(err)
	req.Empty(paths)

	// Deleting again is a no-op.
	req.NoError(store.DeleteItemImages("alice", "lamp"))
}

func TestImageStore_DeleteOwnerImagesAndAvatar(t *testing.T) {
	req := require.New(t)
	store := NewImageStore(t.TempDir())

	_, err := store.SaveAvatar("alice", jpegBytes())
	req.NoError(err)
	_, err = store.SaveItemImage("alice", "lamp", jpegBytes())
	req.NoError(err)
	_, err = store.SaveItemImage("alice", "chair", jpegBytes())
	req.NoError(err)

	req.NoError(store.DeleteAvatar("alice"))
	req.NoError(store.DeleteOwnerImages("alice"))

	for _, item := range []string{"lamp", "chair"} {
		paths, err := store.ItemImagePaths("alice", item)
		req.NoError(err)
		req.Empty(paths)
	}

	// Both are no-ops when nothing is stored.
	req.NoError(store.DeleteAvatar("alice"))
	req.NoError(store.DeleteOwnerImages("alice"))
}

func TestImageStore_RenameOwnerFolder(t *testing.T) {
	req := require.New(t)
	store := NewImageStore(t.TempDir())

	_, err := store.SaveItemImage("alice", "lamp", jpegBytes())
	req.NoError(err)

	req.NoError(store.RenameOwnerFolder("alice", "alicia"))

	paths, err := store.ItemImagePaths("alicia", "lamp")
	req.NoError(err)
	req.Len(paths, 1)

	// Renaming a user with no stored images is fine.
	req.NoError(store.RenameOwnerFolder("ghost", "phantom"))
}

func TestImageStore_SanitizesNames(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	store := NewImageStore(root)

	path, err := store.SaveItemImage("../../etc", "../passwd", jpegBytes())
	req.NoError(err)

	// The stored path never escapes the root.
	abs := filepath.Join(root, path)
	rel, err := filepath.Rel(root, abs)
	req.NoError(err)
	req.False(filepath.IsAbs(rel))
	req.NotContains(rel, "..")
}
