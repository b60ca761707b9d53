package integrity

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ListFiles walks root and returns every regular file as a forward-slash
// path relative to root, in byte order. Symlinks and other special files
// are returned in the second slice so callers can reject them.
func ListFiles(root string) (files []string, special []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if d.Type()&os.ModeType != 0 {
			special = append(special, rel)
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	sort.Strings(special)
	return files, special, nil
}
