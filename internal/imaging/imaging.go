// Package imaging turns uploaded pictures into profile avatars.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// AvatarSize is the side length of stored avatars. Smaller uploads are
// cropped square but not enlarged.
const AvatarSize = 256

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 5 << 20

// MaxDimension is the largest accepted width or height in pixels. It bounds
// decoding memory independently of the compressed upload size.
const MaxDimension = 4096

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// ErrUnsupported is returned for uploads that are not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image")

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Avatar is an encoded profile picture.
type Avatar struct {
	Data []byte
	MIME string
}

// ProcessAvatar sniffs the upload's real type, crops the centre square,
// scales it down to AvatarSize and re-encodes it as JPEG.
func ProcessAvatar(r io.Reader) (*Avatar, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrUnsupported, MaxUploadSize)
	}

	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels a side", ErrUnsupported, cfg.Width, cfg.Height, MaxDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, square(img, AvatarSize), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Avatar{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// square crops the largest centred square out of img and scales it to at
// most size pixels a side with Catmull-Rom interpolation.
func square(img image.Image, size int) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	out := min(side, size)
	dst := image.NewRGBA(image.Rect(0, 0, out, out))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}
