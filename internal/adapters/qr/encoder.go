package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"eventpass/internal/domain"
)

const imageSize = 256

type encoder struct{}

// NewEncoder returns a QREncoder that renders the payload as a PNG and
// wraps it in a data URL, which clients can drop straight into an img tag.
// Encoding is deterministic for a given payload.
func NewEncoder() domain.QREncoder {
	return &encoder{}
}

func (e *encoder) Encode(payload string) (string, error) {
	if payload == "" {
		return "", errors.New("empty qr payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
