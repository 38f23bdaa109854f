// Package transport moves a case seal between devices as a QR image.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"

	"github.com/user/custodian/internal/digest"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 512

// ErrNotSeal is returned when a decoded payload is not a well-formed seal.
var ErrNotSeal = errors.New("payload is not a seal")

// EncodePNG renders seal as a QR code PNG of size x size pixels.
func EncodePNG(seal string, size int) ([]byte, error) {
	if !digest.Valid(seal) {
		return nil, ErrNotSeal
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(seal, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DecodeImage extracts a seal from a QR code image. The payload is returned
// exactly as encoded and must already be a lowercase digest.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	res, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("decode qr: %w", err)
	}
	text := res.GetText()
	if !digest.Valid(text) {
		return "", ErrNotSeal
	}
	return text, nil
}

// Decode reads a PNG or JPEG from r and extracts its seal.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return DecodeImage(img)
}

// DecodeBytes is Decode over an in-memory image.
func DecodeBytes(data []byte) (string, error) {
	return Decode(bytes.NewReader(data))
}
