// Package qr reads and writes the prescription QR codes printed on patient
// prescription cards.
package qr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	goqr "github.com/skip2/go-qrcode"
)

// ErrNoCode is returned when a frame holds no readable QR code.
var ErrNoCode = errors.New("qr: no code in frame")

const DefaultSize = 256

// Payload is the JSON document encoded on prescription cards.
type Payload struct {
	PrescriptionID string `json:"prescriptionId"`
}

// ParsePayload extracts the prescription id from scanned text. Cards encode
// {"prescriptionId": "..."}; anything else, including a JSON document with
// trailing text, is taken as a bare id.
func ParsePayload(text string) string {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return text
	}
	if _, err := dec.Token(); err != io.EOF {
		return text
	}
	switch v := obj["prescriptionId"].(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		if f, err := v.Float64(); err == nil && f != 0 {
			return v.String()
		}
	}
	return text
}

// Encode renders the card payload for prescriptionID as a PNG.
func Encode(prescriptionID string, size int) ([]byte, error) {
	if prescriptionID == "" {
		return nil, errors.New("qr: empty prescription id")
	}
	if size <= 0 {
		size = DefaultSize
	}
	content, err := json.Marshal(Payload{PrescriptionID: prescriptionID})
	if err != nil {
		return nil, err
	}
	png, err := goqr.Encode(string(content), goqr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// DataURL is Encode as a data:image/png;base64 URL.
func DataURL(prescriptionID string, size int) (string, error) {
	png, err := Encode(prescriptionID, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Decode reads the QR text from one PNG or JPEG camera frame.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("qr: read frame: %w", err)
	}
	return DecodeImage(img)
}

func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qr: binarize: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return res.GetText(), nil
}

// DecodeBytes is Decode over an in-memory frame.
func DecodeBytes(frame []byte) (string, error) {
	return Decode(bytes.NewReader(frame))
}
