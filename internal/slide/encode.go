package slide

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// JPEGQuality is used for every persisted layer.
const JPEGQuality = 90

// EncodeJPEG encodes a layer for storage in the run directory.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
