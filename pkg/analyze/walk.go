package analyze

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Directories skipped during file collection: build output and dependency
// trees never hold code the routines should report on.
var excludedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"out":          {},
	"target":       {},
	"vendor":       {},
	"__pycache__":  {},
	".next":        {},
	".venv":        {},
}

// CollectFiles enumerates candidate files under root whose extension is in
// exts (leading dot, case-insensitive), excluding standard build and
// dependency directories. Returned paths are absolute. An empty exts slice
// matches every file.
func CollectFiles(root string, exts []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		wanted[strings.ToLower(ext)] = struct{}{}
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := excludedDirs[d.Name()]; skip && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
