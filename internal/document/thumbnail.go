package document

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/zombor/terminowo/internal/scanning"
)

const (
	thumbnailWidth   = 200
	thumbnailQuality = 80
)

// makeThumbnail scales an image down to thumbnailWidth, keeping the aspect
// ratio, and encodes it as JPEG
func makeThumbnail(data []byte, contentType string) ([]byte, error) {
	src, err := scanning.DecodeImage(data, contentType)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}
	height := bounds.Dy() * thumbnailWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, thumbnailWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
