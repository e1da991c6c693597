package scan

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"go.uber.org/zap"

	"gateattend/internal/camera"
	"gateattend/internal/model"
)

// Webcam polls a camera and emits every QR payload it can decode.
type Webcam struct {
	cam      camera.FrameSource
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewWebcam(cam camera.FrameSource, interval time.Duration, log *zap.Logger) *Webcam {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Webcam{cam: cam, interval: interval, log: log, now: time.Now}
}

// Run grabs a frame every interval until ctx is done. Access and format errors
// from the camera end the loop and are returned; transient frame errors and
// frames without a readable code are skipped. The camera is closed on return.
func (w *Webcam) Run(ctx context.Context, out chan<- model.ScanEvent) error {
	defer func() {
		if cerr := w.cam.Close(); cerr != nil {
			w.log.Warn("camera close failed", zap.Error(cerr))
		}
	}()

	reader := qrcode.NewQRCodeReader()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := w.cam.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, model.ErrCameraAccessDenied) || errors.Is(err, model.ErrCameraUnsupported) || errors.Is(err, camera.ErrClosed) {
				return err
			}
			w.log.Debug("frame grab failed", zap.Error(err))
			continue
		}

		text, ok := decodeQR(reader, frame)
		if !ok {
			continue
		}
		evt := model.ScanEvent{RawToken: text, Source: model.SourceWebcam, CapturedAt: w.now()}
		select {
		case out <- evt:
		case <-ctx.Done():
			return nil
		}
	}
}

func decodeQR(reader gozxing.Reader, img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	res, err := reader.Decode(bmp, nil)
	if err != nil {
		return "", false
	}
	return res.GetText(), true
}
