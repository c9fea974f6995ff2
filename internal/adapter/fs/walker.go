package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"pestmatch/internal/domain"
	"pestmatch/internal/port"
)

// DefaultIncludes are the supported reference image extensions.
var DefaultIncludes = []string{"*.jpg", "*.jpeg", "*.png"}

// DatasetWalker reads a dataset laid out as root/<label>/<image>. The label
// comes from the directory name with dashes turned into spaces; every entry
// gets the same category.
type DatasetWalker struct {
	category string
	includes []string
}

func NewDatasetWalker(category string, includes []string) *DatasetWalker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &DatasetWalker{
		category: category,
		includes: includes,
	}
}

// Walk lists the labeled images in name order (os.ReadDir sorts), label
// directories first, then files within each. Entries directly under root and
// files not matching the include patterns are skipped.
func (w *DatasetWalker) Walk(root string) ([]port.LabeledFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", domain.ErrIndexBuild, root)
	}

	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
	}

	var files []port.LabeledFile
	for _, dir := range dirs {
		dirPath := filepath.Join(root, dir.Name())

		// Stat follows symlinked label directories
		dirInfo, err := os.Stat(dirPath)
		if err != nil || !dirInfo.IsDir() {
			continue
		}

		entries, err := os.ReadDir(dirPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexBuild, err)
		}

		label := LabelFromDir(dir.Name())
		for _, entry := range entries {
			if entry.IsDir() || !w.shouldInclude(entry.Name()) {
				continue
			}
			files = append(files, port.LabeledFile{
				Label:    label,
				Category: w.category,
				Path:     filepath.Join(dirPath, entry.Name()),
			})
		}
	}

	return files, nil
}

func (w *DatasetWalker) shouldInclude(name string) bool {
	name = strings.ToLower(name)
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// LabelFromDir turns a directory name such as "Lagarta-da-juta" into the
// label "Lagarta da juta".
func LabelFromDir(name string) string {
	return strings.ReplaceAll(name, "-", " ")
}
