// Package source enumerates the pictures eligible for tiling.
package source

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// Extensions lists the file suffixes accepted as source pictures, lower case.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp", ".tif", ".tiff"}

// outputName matches files this program writes into a destination folder,
// including the temporary files used for atomic replacement.
var outputName = regexp.MustCompile(`^\.?wallpaper(_monitor_\d+)?\.jpg(\.tmp-\w+)?$`)

// IsOutput reports whether name is a previously generated output file.
func IsOutput(name string) bool {
	return outputName.MatchString(strings.ToLower(filepath.Base(name)))
}

// Eligible reports whether name has an accepted extension and is not output.
func Eligible(name string) bool {
	if IsOutput(name) {
		return false
	}
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Scan lists eligible pictures directly inside dir as sorted absolute paths.
// Subdirectories are not descended into. Generated wallpapers are skipped by
// name, so dir may also be the destination folder.
func Scan(dir string) ([]string, error) {
	if err := errors.ValidateFolder("source", dir); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFolder, err, "resolve source folder %q", dir)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFolder, err, "read source folder %q", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Eligible(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(abs, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// Pick draws one path uniformly from pool, skipping anything in exclude.
// It returns false when every path is excluded.
func Pick(r *rand.Rand, pool []string, exclude func(string) bool) (string, bool) {
	var open []string
	for _, p := range pool {
		if exclude == nil || !exclude(p) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return "", false
	}
	return open[r.IntN(len(open))], true
}
