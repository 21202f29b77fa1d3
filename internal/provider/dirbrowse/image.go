package dirbrowse

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"gpcam/internal/provider"
)

const thumbQuality = 80

// dimensions decodes just enough of an image to size it.
func dimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func decodeExif(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, osError(err, filepath.Base(path))
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return nil, provider.Errorf(provider.CodeNotSupported, "no exif in %s", filepath.Base(path))
	}
	return x, nil
}

// exifBlock returns the raw EXIF segment of path.
func exifBlock(path string) ([]byte, error) {
	x, err := decodeExif(path)
	if err != nil {
		return nil, err
	}
	return x.Raw, nil
}

// thumbnail prefers the embedded EXIF thumbnail and otherwise scales the
// image to fit size x size, honouring the EXIF orientation.
func thumbnail(path string, size int) ([]byte, error) {
	orientation := 1
	if x, err := decodeExif(path); err == nil {
		if thumb, err := x.JpegThumbnail(); err == nil && len(thumb) > 0 {
			return thumb, nil
		}
		if tag, err := x.Get(exif.Orientation); err == nil {
			if v, err := tag.Int(0); err == nil {
				orientation = v
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, osError(err, filepath.Base(path))
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, provider.Errorf(provider.CodeNotSupported, "no preview for %s: %v", filepath.Base(path), err)
	}

	img = orient(img, orientation)
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, provider.Errorf(provider.CodeCorruptedData, "encode thumbnail: %v", err)
	}
	return buf.Bytes(), nil
}

func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
