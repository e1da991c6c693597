package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"gateattend/internal/app"
	"gateattend/internal/attendance"
	"gateattend/internal/camera"
	"gateattend/internal/config"
	"gateattend/internal/logging"
	"gateattend/internal/model"
	"gateattend/internal/notify"
	"gateattend/internal/scan"
	"gateattend/internal/schedule"
	"gateattend/internal/store"
	"gateattend/internal/student"
)

// Scanner runs one gate station: an IP camera and/or a keyboard-wedge QR
// scanner on stdin, both feeding the same pipeline.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("scanner failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	var rdb *store.Redis
	if app.NeedsRedis(cfg) {
		rdb = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
	}

	schedules := schedule.NewResolver(log)
	schedules.Load(ctx, repo)

	var notifier notify.Notifier = notify.NewDispatcher(repo, cfg.Location, log, nil)
	if cfg.QueueBackend == "redis" && rdb != nil {
		notifier = notify.NewPublisher(app.NewQueue(cfg, rdb, log), log)
	}

	proc := scan.NewProcessor(scan.Config{StationID: cfg.StationID, Direction: cfg.StationDirection}, scan.Deps{
		Filter:    app.NewFilter(cfg, rdb, log),
		Students:  student.NewResolver(repo),
		Schedules: schedules,
		Recorder:  attendance.NewService(repo, cfg.Location, log),
		Live:      repo,
		Notifier:  notifier,
		Log:       log,
	})
	defer proc.Wait()

	events := make(chan model.ScanEvent, 16)
	var wg sync.WaitGroup
	sources := 0

	if cfg.CameraSnapshotURL != "" {
		cam := camera.New(cfg.CameraSnapshotURL)
		if err := cam.Open(ctx); err != nil {
			_ = cam.Close()
			reportCameraError(err)
			log.Warn("camera unavailable", zap.Error(err))
		} else {
			sources++
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := scan.NewWebcam(cam, cfg.CameraFrameInterval, log).Run(ctx, events); err != nil {
					reportCameraError(err)
					log.Warn("camera stopped", zap.Error(err))
				}
			}()
			fmt.Println("camera ready:", cfg.CameraSnapshotURL)
		}
	}

	if cfg.ScannerInput == "stdin" {
		sources++
		keys := make(chan scan.Key, 64)
		go func() {
			// Blocks on stdin; it ends with the process.
			if err := scan.ReadKeys(ctx, os.Stdin, keys); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("stdin reader stopped", zap.Error(err))
			}
		}()
		fmt.Print("\x1b[?2004h") // enable bracketed paste
		defer fmt.Print("\x1b[?2004l")
		wg.Add(1)
		go func() {
			defer wg.Done()
			scan.NewKeystrokes(cfg.ScannerDebounce).Run(ctx, keys, events)
		}()
		fmt.Println("scanner ready: scan a QR code or type an ID and press Enter")
	}

	if sources == 0 {
		return errors.New("no scan source: set CAMERA_SNAPSHOT_URL or SCANNER_INPUT=stdin")
	}

	go func() {
		wg.Wait()
		close(events)
	}()

	log.Info("station started", zap.String("station", cfg.StationID), zap.String("direction", cfg.StationDirection))
	proc.Run(ctx, events, func(_ model.ScanEvent, out scan.Outcome, err error) {
		if line := feedback(out, err); line != "" {
			fmt.Println(line)
		}
	})
	log.Info("station stopped")
	return nil
}

// feedback is the one-line operator message for a scan.
func feedback(out scan.Outcome, err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyToken):
		return "  ✗ empty scan, try again"
	case errors.Is(err, model.ErrStudentNotFound):
		return fmt.Sprintf("  ✗ no student matches %q", out.Key)
	case errors.Is(err, model.ErrStoreUnavailable):
		return "  ✗ could not save, please scan again"
	case err != nil:
		return "  ✗ " + err.Error()
	case out.Duplicate:
		return ""
	case out.Record == nil:
		return "  ? nothing recorded"
	}
	name := out.Student.DisplayName
	verb := "IN "
	if out.Record.Direction == model.Exit {
		verb = "OUT"
	}
	if !out.Created {
		return fmt.Sprintf("  = %s already recorded (%s %s)", name, out.Record.Session, out.Record.Direction)
	}
	line := fmt.Sprintf("  ✓ %s %s %s", verb, name, out.Record.Status)
	if out.Record.Remarks != "" {
		line += ": " + out.Record.Remarks
	}
	return line
}

func reportCameraError(err error) {
	switch {
	case errors.Is(err, model.ErrCameraAccessDenied):
		fmt.Println("camera access denied: check the camera credentials, or use the handheld scanner")
	case errors.Is(err, model.ErrCameraUnsupported):
		fmt.Println("camera does not provide snapshots: use the handheld scanner instead")
	}
}
