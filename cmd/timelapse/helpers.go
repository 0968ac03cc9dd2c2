package main

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

func saveJPEG(path string, img image.Image, quality int) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}
