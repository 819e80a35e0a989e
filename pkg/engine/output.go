package engine

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/errors"
)

// persist encodes every snapshot and returns the written paths in order.
func (e *Engine) persist(cfg *config.Config, outs []output) ([]string, error) {
	paths := make([]string, 0, len(outs))
	for _, o := range outs {
		path := outputPath(cfg, o.target)
		if err := WriteJPEG(path, o.pixels, cfg.JPEGQuality); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJPEG encodes img to path through a temporary file in the same
// directory, so readers never observe a partially written image.
func WriteJPEG(path string, img image.Image, quality int) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create temporary file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "replace %s", path)
	}
	return nil
}
