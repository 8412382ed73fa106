// Package fileset builds the list of compression tasks from user-supplied
// files and folders, preserving subfolder structure for folder imports.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"squeezer-go/internal/media"
)

// Task pairs a source file with its relative destination path. For direct
// file selections the relative path is just the base name; for folder
// imports it preserves the subfolder structure under the imported root.
type Task struct {
	SourcePath string
	RelPath    string
}

// Collect expands the given paths (files or directories) into a flat task
// list. Directories are walked recursively; files with unsupported
// extensions inside a directory are silently skipped, but an explicitly
// named unsupported file is kept so the pipeline can report it.
func Collect(inputs []string) ([]Task, error) {
	var tasks []Task

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", in, err)
		}

		if !info.IsDir() {
			tasks = append(tasks, Task{SourcePath: in, RelPath: filepath.Base(in)})
			continue
		}

		root := in
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if media.Classify(path) == media.KindUnsupported {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = filepath.Base(path)
			}
			tasks = append(tasks, Task{SourcePath: path, RelPath: rel})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return tasks, nil
}

// UniqueOutputPath returns a destination path in outputDir derived from
// inputPath with the given suffix, adding a numeric counter when the name
// is already taken.
func UniqueOutputPath(inputPath, outputDir, suffix string) string {
	fileName := filepath.Base(inputPath)
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)

	outputPath := filepath.Join(outputDir, stem+suffix+ext)
	counter := 1
	for {
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		outputPath = filepath.Join(outputDir, fmt.Sprintf("%s%s_%d%s", stem, suffix, counter, ext))
		counter++
	}
}
