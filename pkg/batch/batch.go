// Package batch enumerates image files and assembles the byte payloads for
// one inference request.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// ImageRecord is one selected image: its path plus raw, unprocessed bytes.
// The ensemble model does the decoding and preprocessing server side.
type ImageRecord struct {
	Path    string
	Content []byte
}

// ListFiles resolves an input path into candidate image files, sorted
// lexicographically. A directory yields its regular files; anything else
// is treated as a single-file list.
func ListFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no regular files under %s", path)
	}
	sort.Strings(files)

	return files, nil
}

// Build reads up to capacity files into memory. When more files are given
// than the model's batch limit allows, only the first capacity names are
// kept and a warning is emitted. Any unreadable file aborts the batch.
func Build(logger *zap.Logger, paths []string, capacity int) ([]ImageRecord, error) {
	if len(paths) > capacity {
		logger.Warn(fmt.Sprintf(
			"the number of images exceeds the maximum batch size, only the first %d images, sorted by name alphabetically, will be processed",
			capacity))
		paths = paths[:capacity]
	}

	records := make([]ImageRecord, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read image %s: %w", path, err)
		}
		logger.Debug("image payload",
			zap.String("path", path),
			zap.Int("bytes", len(content)),
			zap.String("contentType", mimetype.Detect(content).String()))
		records = append(records, ImageRecord{Path: path, Content: content})
	}

	return records, nil
}
