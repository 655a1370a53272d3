package ingest

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ScanIncoming walks the incoming root and returns every regular file,
// sorted for deterministic planning. Hidden files and directories are
// skipped; partial uploads conventionally carry a leading dot until
// complete.
func ScanIncoming(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
