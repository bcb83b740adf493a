package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotJPEG rejects uploads that are not jpeg images. Detection is done on
// content, not on the client-supplied filename or header.
var ErrNotJPEG = errors.New("only jpg images are allowed")

// ImageStore keeps avatars and item images on the local filesystem:
// <root>/avatars/<username>.jpg and <root>/<username>/<item>/<file>.jpg.
type ImageStore struct {
	root string
}

func NewImageStore(root string) *ImageStore {
	return &ImageStore{root: root}
}

// SaveAvatar writes the account's avatar, replacing any previous one.
// Returns the path relative to the store root, usable as a URL suffix.
func (s *ImageStore) SaveAvatar(username string, data []byte) (string, error) {
	if err := checkJPEG(data); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := sanitize(username) + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}

	return filepath.Join("avatars", name), nil
}

// SaveItemImage stores one image for an item. The stored filename is a UUID
// so concurrent uploads and client-supplied names cannot collide.
func (s *ImageStore) SaveItemImage(username, itemName string, data []byte) (string, error) {
	if err := checkJPEG(data); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, sanitize(username), sanitize(itemName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}

	return filepath.Join(sanitize(username), sanitize(itemName), name), nil
}

// ItemImagePaths lists the stored images for an item, relative to the root.
func (s *ImageStore) ItemImagePaths(username, itemName string) ([]string, error) {
	dir := filepath.Join(s.root, sanitize(username), sanitize(itemName))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(sanitize(username), sanitize(itemName), entry.Name()))
	}
	return paths, nil
}

// DeleteItemImages removes every stored image for an item. Missing
// directories are fine.
func (s *ImageStore) DeleteItemImages(username, itemName string) error {
	dir := filepath.Join(s.root, sanitize(username), sanitize(itemName))
	err := os.RemoveAll(dir)
	if err != nil {
		return fmt.Errorf("remove item images: %w", err)
	}
	return nil
}

// DeleteAvatar removes an account's avatar file. Missing files are fine.
func (s *ImageStore) DeleteAvatar(username string) error {
	path := filepath.Join(s.root, "avatars", sanitize(username)+".jpg")
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove avatar: %w", err)
	}
	return nil
}

// DeleteOwnerImages removes a user's whole item-image tree, used when the
// account itself is deleted.
func (s *ImageStore) DeleteOwnerImages(username string) error {
	dir := filepath.Join(s.root, sanitize(username))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove owner images: %w", err)
	}
	return nil
}

// RenameOwnerFolder moves a user's item-image tree when they change their
// username.
func (s *ImageStore) RenameOwnerFolder(oldName, newName string) error {
	oldDir := filepath.Join(s.root, sanitize(oldName))
	newDir := filepath.Join(s.root, sanitize(newName))
	if _, err := os.Stat(oldDir); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(oldDir, newDir)
}

// RenameAvatar moves a user's avatar file when they change their username.
func (s *ImageStore) RenameAvatar(oldName, newName string) error {
	oldPath := filepath.Join(s.root, "avatars", sanitize(oldName)+".jpg")
	newPath := filepath.Join(s.root, "avatars", sanitize(newName)+".jpg")
	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(oldPath, newPath)
}

// Root exposes the store root for the static file handler.
func (s *ImageStore) Root() string {
	return s.root
}

func checkJPEG(data []byte) error {
	kind := mimetype.Detect(data)
	if !kind.Is("image/jpeg") {
		return ErrNotJPEG
	}
	return nil
}

// sanitize strips path separators so user-supplied names cannot escape the
// store root.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "_"
	}
	return name
}
