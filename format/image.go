package format

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes a validated image file.
type ImageInfo struct {
	MediaType string
	Width     int
	Height    int
}

// InspectImage validates that path is an image whose extension and content
// agree on an image media type. Raster images must also decode their header.
// SVG files are accepted on sniffing alone and report zero dimensions.
func InspectImage(path string) (ImageInfo, error) {
	byExt, ok := MediaTypeByExtension(path)
	if !ok || !IsImage(byExt) {
		return ImageInfo{}, fmt.Errorf("%w: %s", ErrMediaTypeUnknown, path)
	}

	sniffed, err := Sniff(path)
	if err != nil {
		return ImageInfo{}, err
	}
	if !IsImage(sniffed) {
		return ImageInfo{}, fmt.Errorf("%w: %s has content type %s", ErrMediaTypeUnknown, path, sniffed)
	}

	info := ImageInfo{MediaType: byExt}
	if sniffed == "image/svg+xml" {
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %s: %v", ErrMediaTypeUnknown, path, err)
	}
	info.Width = cfg.Width
	info.Height = cfg.Height
	return info, nil
}
