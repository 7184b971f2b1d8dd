// Package qrcode renders short URLs as QR code images embedded in data URLs.
package qrcode

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256

	dataURLPrefix = "data:image/png;base64,"
)

// Encoder produces PNG QR codes. The output depends only on the content.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}

	return &Encoder{
		size:  size,
		level: qrcode.Medium,
	}
}

// Encode returns a data URL holding a PNG QR code of content.
func (e *Encoder) Encode(content string) (string, error) {
	const op = "adapter.qrcode.Encoder.Encode"

	png, err := qrcode.Encode(content, e.level, e.size)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode qr code: %w", op, err)
	}

	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
