// Package storage keeps processed episode audio on disk, one file per episode.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cesargomez89/adfreecast/internal/constants"
)

var ErrInvalidName = errors.New("invalid audio file name")

// keyLen is the number of hex characters used from the episode id digest.
const keyLen = 32

type Store struct {
	Dir string
}

func New(dir string) (*Store, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Key derives a stable, filesystem safe name from an episode id. Episode ids
// are GUIDs or URLs, so they are never used on disk directly.
func Key(episodeID string) string {
	sum := sha256.Sum256([]byte(episodeID))
	return hex.EncodeToString(sum[:])[:keyLen]
}

func FileName(episodeID, ext string) string {
	return Key(episodeID) + ext
}

// ExtForContentType maps a response content type to a file extension.
// Unknown types fall back to mp3, which is what the backend produces.
func ExtForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch strings.ToLower(mediaType) {
	case constants.MimeTypeFLAC, "audio/x-flac":
		return constants.ExtFLAC
	case constants.MimeTypeMP4, "audio/x-m4a", "audio/m4a":
		return constants.ExtM4A
	default:
		return constants.ExtMP3
	}
}

// ContentTypeForName is the inverse of ExtForContentType.
func ContentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case constants.ExtFLAC:
		return constants.MimeTypeFLAC
	case constants.ExtM4A:
		return constants.MimeTypeMP4
	default:
		return constants.MimeTypeMP3
	}
}

// Save streams r into the episode's file. The data is written to a temporary
// file in the same directory and renamed into place, so readers never see a
// partial file. Returns the final path.
func (s *Store) Save(episodeID, contentType string, r io.Reader) (string, error) {
	if err := EnsureDir(s.Dir); err != nil {
		return "", err
	}

	final := filepath.Join(s.Dir, FileName(episodeID, ExtForContentType(contentType)))
	tmp := filepath.Join(s.Dir, "."+uuid.NewString()+".part")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}

	if err := MoveFile(tmp, final); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return final, nil
}

// Path resolves a served file name inside the store. Only names produced by
// FileName are accepted.
func (s *Store) Path(name string) (string, error) {
	if !ValidFileName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.Dir, name), nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func ValidFileName(name string) bool {
	ext := filepath.Ext(name)
	switch ext {
	case constants.ExtMP3, constants.ExtFLAC, constants.ExtM4A:
	default:
		return false
	}
	key := strings.TrimSuffix(name, ext)
	if len(key) != keyLen {
		return false
	}
	for _, r := range key {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	return nil
}
