// Package discovery finds video files for batch extraction.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/util"
)

// Result contains the results of file discovery.
type Result struct {
	Files        []string
	SkippedCount int
}

// FindVideoFiles finds video files directly inside inputDir, sorted by name.
// Hidden files and subdirectories are skipped.
func FindVideoFiles(inputDir string) (*Result, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, coreerrors.NewPathError(fmt.Sprintf("directory does not exist: %s", inputDir))
	}
	if !info.IsDir() {
		return nil, coreerrors.NewPathError(fmt.Sprintf("%s is not a directory", inputDir))
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, coreerrors.NewIOError(fmt.Sprintf("cannot read directory %s", inputDir), err)
	}

	result := &Result{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		fullPath := filepath.Join(inputDir, name)
		if util.IsVideoFile(fullPath) {
			result.Files = append(result.Files, fullPath)
		} else {
			result.SkippedCount++
		}
	}

	if len(result.Files) == 0 {
		return nil, coreerrors.NewNoFilesFoundError(inputDir)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(result.Files[i])) < strings.ToLower(filepath.Base(result.Files[j]))
	})

	logDiscoveredFiles(result)
	return result, nil
}

// ResolveInputs expands each input into video files. Directories contribute
// their video files; regular files are kept as given.
func ResolveInputs(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		if util.DirectoryExists(in) {
			res, err := FindVideoFiles(in)
			if err != nil {
				return nil, err
			}
			files = append(files, res.Files...)
			continue
		}
		if !util.FileExists(in) {
			return nil, coreerrors.NewPathError(fmt.Sprintf("input not found: %s", in))
		}
		files = append(files, in)
	}
	return files, nil
}

// logDiscoveredFiles logs the first 5 discovered files plus a count.
func logDiscoveredFiles(result *Result) {
	logging.Info("found video files", "count", len(result.Files), "skipped", result.SkippedCount)

	maxToLog := min(5, len(result.Files))
	for i := range maxToLog {
		logging.Debug("discovered", "file", filepath.Base(result.Files[i]))
	}
	if len(result.Files) > 5 {
		logging.Debug("discovered more", "count", len(result.Files)-5)
	}
}
