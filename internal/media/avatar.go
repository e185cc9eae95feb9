package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	AvatarSize  = 400
	jpegQuality = 85

	// MaxSourceDimension bounds either side of an image before it is decoded.
	MaxSourceDimension = 8000
)

// CropSquare decodes the image, crops the centred square and scales it to
// size x size. The result is always a JPEG. Images wider or taller than
// MaxSourceDimension are rejected without decoding their pixels.
func CropSquare(upload Upload, size int) (Upload, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return upload, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if cfg.Width > MaxSourceDimension || cfg.Height > MaxSourceDimension {
		return upload, fmt.Errorf("%w: %dx%d exceeds %d pixels per side",
			ErrUnsupportedType, cfg.Width, cfg.Height, MaxSourceDimension)
	}

	src, _, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return upload, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return upload, ErrUnsupportedType
	}
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return upload, fmt.Errorf("encode avatar: %w", err)
	}

	name := upload.Filename
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return Upload{
		Kind:        upload.Kind,
		Filename:    name + ".jpg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}
