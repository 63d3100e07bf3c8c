package scanner

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"qrattend/internal/camera"
)

// QRDetector decodes QR codes from image frames using gozxing.
type QRDetector struct {
	reader gozxing.Reader
}

// NewQRDetector builds a detector.
func NewQRDetector() *QRDetector {
	return &QRDetector{reader: qrcode.NewQRCodeReader()}
}

// Detect scans one frame for a QR code. A frame with no decodable code is
// a normal miss, not an error; only binarization failures surface as err.
func (d *QRDetector) Detect(f camera.Frame) (string, bool, error) {
	if f.Image == nil {
		return "", false, nil
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(f.Image)
	if err != nil {
		return "", false, err
	}
	res, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return "", false, nil
	}
	return res.GetText(), true, nil
}
