package fileparse

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"

	// Register decoders for the allowed image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// jpegQuality is used when re-encoding processed images.
const jpegQuality = 90

// processImage fits the image onto a square white canvas at one of the
// resolutions the vision models work with (256, 512 or 768) and returns it
// as base64 JPEG.
func processImage(data []byte) (string, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to decode image")
	}

	bounds := img.Bounds()
	maxDim := bounds.Dx()
	if bounds.Dy() > maxDim {
		maxDim = bounds.Dy()
	}
	targetSize := 768
	switch {
	case maxDim <= 256:
		targetSize = 256
	case maxDim <= 512:
		targetSize = 512
	}

	// Fit preserves aspect ratio; the result is centered on a white canvas
	// of the exact target resolution.
	fitted := imaging.Fit(img, targetSize, targetSize, imaging.Lanczos)
	canvas := imaging.New(targetSize, targetSize, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	composed := imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, composed, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", 0, errors.Wrap(err, "failed to encode image")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), targetSize, nil
}
