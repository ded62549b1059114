package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaFile describes one discovered video.
type MediaFile struct {
	Name       string
	Directory  string
	FullPath   string
	SizeMB     float64
	ModifiedAt time.Time
}

// Stem returns the file name without its extension.
func (m MediaFile) Stem() string {
	return fileStem(m.Name)
}

// NewMediaFile builds a MediaFile from the file system metadata of path.
func NewMediaFile(path string) (MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediaFile{}, newStageError(ErrFileSystem, StageDiscover, path, err)
	}
	if info.IsDir() {
		return MediaFile{}, newStageError(ErrFileSystem, StageDiscover, path, fmt.Errorf("is a directory"))
	}
	return mediaFileFromInfo(filepath.Dir(path), path, info), nil
}

func mediaFileFromInfo(dir, path string, info fs.FileInfo) MediaFile {
	return MediaFile{
		Name:       info.Name(),
		Directory:  dir,
		FullPath:   path,
		SizeMB:     float64(info.Size()) / (1024 * 1024),
		ModifiedAt: info.ModTime(),
	}
}

// ExtensionVideoFinder walks a directory tree and keeps files whose name ends
// with one of Extensions. The match is case-sensitive: "talk.MP4" is not a
// match for ".mp4".
type ExtensionVideoFinder struct {
	Extensions []string
}

// NewExtensionVideoFinder creates a finder for the given extensions, or ".mp4"
// when none are given.
func NewExtensionVideoFinder(extensions ...string) *ExtensionVideoFinder {
	if len(extensions) == 0 {
		extensions = []string{".mp4"}
	}
	return &ExtensionVideoFinder{Extensions: extensions}
}

// FindVideos walks rootDir recursively. A missing or unreadable root is an
// ErrFileSystem; a readable tree without matches yields an empty slice.
func (f *ExtensionVideoFinder) FindVideos(rootDir string) ([]MediaFile, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, newStageError(ErrFileSystem, StageDiscover, rootDir, err)
	}
	if !info.IsDir() {
		return nil, newStageError(ErrFileSystem, StageDiscover, rootDir, fmt.Errorf("not a directory"))
	}

	videos := []MediaFile{}
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !f.Matches(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		videos = append(videos, mediaFileFromInfo(filepath.Dir(path), path, info))
		return nil
	})
	if err != nil {
		return nil, newStageError(ErrFileSystem, StageDiscover, rootDir, err)
	}

	return videos, nil
}

// Matches reports whether name carries one of the configured extensions.
func (f *ExtensionVideoFinder) Matches(name string) bool {
	for _, ext := range f.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
