package io

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CollectFiles expands args into image paths. Directories are walked
// recursively with entries in name order, skipping files of unsupported
// formats. A file named explicitly must be a supported image.
func CollectFiles(args ...string) ([]string, error) {
	var out []string
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return nil, fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("readdir %s: %w", arg, err)
			}
			sort.Slice(contents, func(i, j int) bool { return contents[i].Name() < contents[j].Name() })

			for _, content := range contents {
				path := filepath.Join(arg, content.Name())
				if !content.IsDir() && !IsSupported(path) {
					continue
				}
				files, err := CollectFiles(path)
				if err != nil {
					return nil, err
				}
				out = append(out, files...)
			}

		default:
			if !IsSupported(arg) {
				return nil, fmt.Errorf("unsupported image format: %s", arg)
			}
			out = append(out, arg)
		}
	}
	return out, nil
}
