package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
)

// toJPEG shrinks an image to fit within maxSize and returns it JPEG-encoded.
func toJPEG(data []byte, maxSize int) ([]byte, error) {
	resized, err := fingerprint.ResizeImage(data, maxSize)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if format == "jpeg" {
		return resized, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
