package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtside/dualcam/internal/config"
	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/capture"
	"github.com/courtside/dualcam/pkg/pipeline"
	"github.com/courtside/dualcam/pkg/preview"
	"github.com/courtside/dualcam/pkg/record"
	"github.com/courtside/dualcam/pkg/registry"
	"github.com/courtside/dualcam/pkg/schedule"
)

func main() {
	// Command line flags
	list := flag.Bool("list", false, "List detected cameras and exit")
	photo := flag.Bool("photo", false, "Run a batch-photo job instead of recording")

	out := flag.String("out", config.GetOutputDir(), "Output directory")
	fps := flag.Int("fps", config.GetFPS(), "Recording frame rate")
	width := flag.Int("width", config.GetWidth(), "Capture width")
	height := flag.Int("height", config.GetHeight(), "Capture height")
	duration := flag.Duration("duration", 0, "Stop recording after this duration (0 = until Ctrl+C)")
	frames := flag.Int64("frames", 0, "Stop recording after this many frames per camera (0 = unbounded)")
	rotate1 := flag.Int("rotate1", 0, "Camera 1 rotation in degrees (0, 90, 180, 270)")
	rotate2 := flag.Int("rotate2", 0, "Camera 2 rotation in degrees (0, 90, 180, 270)")

	total := flag.Int("total", 3, "Photo mode: number of photos")
	interval := flag.Duration("interval", time.Second, "Photo mode: wait between shots")
	countdown := flag.Int("countdown", 3, "Photo mode: countdown seconds before each shot")
	prefix := flag.String("prefix", "photo", "Photo mode: filename prefix")

	previewPort := flag.String("preview", config.GetPreviewPort(), "Preview server port (empty to disable)")
	logLevel := flag.String("log-level", config.GetLogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	// Graceful shutdown on Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	reg := registry.New(
		registry.WithMaxDevices(config.GetMaxDevices()),
		registry.WithByIDDir(config.GetByIDDir()),
	)

	devices, err := reg.Scan(ctx)
	if err != nil {
		log.Error("camera scan failed", "error", err)
		os.Exit(1)
	}

	if *list {
		printDevices(devices)
		return
	}

	if *photo {
		runPhoto(ctx, devices, schedule.PhotoConfig{
			Total:          *total,
			Interval:       *interval,
			CountdownTicks: *countdown,
			OutputDir:      *out,
			Prefix:         *prefix,
			Width:          *width,
			Height:         *height,
		})
		return
	}

	runRecording(ctx, reg, devices, recordingArgs{
		out:      *out,
		fps:      *fps,
		width:    *width,
		height:   *height,
		duration: *duration,
		frames:   *frames,
		rotate1:  *rotate1,
		rotate2:  *rotate2,
		preview:  *previewPort,
	})
}

type recordingArgs struct {
	out           string
	fps           int
	width, height int
	duration      time.Duration
	frames        int64
	rotate1       int
	rotate2       int
	preview       string
}

func runRecording(ctx context.Context, reg *registry.Registry, devices []registry.Device, args recordingArgs) {
	if len(devices) < 2 {
		fmt.Printf("❌ Need at least 2 cameras for dual recording, found %d\n", len(devices))
		os.Exit(1)
	}

	cam1, cam2 := devices[0], devices[1]
	fmt.Println("🎥 dualcam recording")
	fmt.Printf("   Camera 1: %s\n", cam1.DisplayName())
	fmt.Printf("   Camera 2: %s\n", cam2.DisplayName())
	fmt.Printf("   Output:   %s @ %dfps\n", args.out, args.fps)

	pipe := pipeline.NewWithDrop(func(f capture.Frame) { f.Close() })
	coord := record.New(pipe)
	sched := schedule.New()

	var srv *preview.Server
	if args.preview != "" {
		srv = preview.NewServer(args.preview, reg, pipe, func() any {
			return recordingStatus(coord)
		})
		srv.StartAsync()
		fmt.Printf("   Preview:  ws://localhost:%s/ws/camera/camera1\n", args.preview)
	}

	sess, err := sched.StartContinuous(ctx, coord, schedule.ContinuousConfig{
		Record: record.Config{
			Camera1: record.CameraSpec{
				Name:       cam1.DisplayName(),
				Candidates: cam1.Candidates(),
				Width:      args.width,
				Height:     args.height,
				Rotation:   capture.Rotation(args.rotate1),
			},
			Camera2: record.CameraSpec{
				Name:       cam2.DisplayName(),
				Candidates: cam2.Candidates(),
				Width:      args.width,
				Height:     args.height,
				Rotation:   capture.Rotation(args.rotate2),
			},
			OutputDir: args.out,
			FPS:       args.fps,
		},
		MaxDuration: args.duration,
		MaxFrames:   args.frames,
	})
	if err != nil {
		log.Error("recording start failed", "error", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		sess.Stop()
	case <-sess.Done():
	}

	if srv != nil {
		srv.Shutdown()
	}

	if err := sess.Err(); err != nil {
		fmt.Printf("❌ Recording ended with error: %v\n", err)
		os.Exit(1)
	}
	f1, f2 := sess.Files()
	fmt.Printf("✅ Recording complete: %s\n", sess.Dir)
	fmt.Printf("   %s (%d frames), %s (%d frames)\n", f1, sess.FrameCount(1), f2, sess.FrameCount(2))
}

func runPhoto(ctx context.Context, devices []registry.Device, cfg schedule.PhotoConfig) {
	if len(devices) == 0 {
		fmt.Println("❌ No cameras detected")
		os.Exit(1)
	}

	dev := devices[0]
	cfg.Candidates = dev.Candidates()
	fmt.Printf("📸 Batch photo: %d shots from %s\n", cfg.Total, dev.DisplayName())

	sched := schedule.New()
	job, err := sched.StartPhotoJob(ctx, cfg)
	if err != nil {
		log.Error("photo job start failed", "error", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		job.Stop()
	case <-job.Done():
	}

	switch job.State() {
	case schedule.JobDone:
		fmt.Printf("✅ Saved %d photos to %s\n", job.Saved(), cfg.OutputDir)
	case schedule.JobStopped:
		fmt.Printf("⏹  Stopped after %d photos\n", job.Saved())
	default:
		fmt.Printf("❌ Photo job failed after %d photos: %v\n", job.Saved(), job.Err())
		os.Exit(1)
	}
}

func recordingStatus(coord *record.Coordinator) any {
	sess := coord.Current()
	if sess == nil {
		return map[string]any{"state": record.StateIdle.String()}
	}
	return map[string]any{
		"state":          sess.State().String(),
		"session":        sess.ID,
		"frames_camera1": sess.FrameCount(1),
		"frames_camera2": sess.FrameCount(2),
	}
}

func printDevices(devices []registry.Device) {
	if len(devices) == 0 {
		fmt.Println("❌ No cameras detected")
		return
	}
	for i, dev := range devices {
		fmt.Printf("%d. %s\n", i+1, dev.DisplayName())
		fmt.Printf("   Driver: %s\n", dev.Driver)
		if dev.BusInfo != "" {
			fmt.Printf("   Bus:    %s\n", dev.BusInfo)
		}
		top := dev.Capabilities
		if len(top) > 3 {
			top = top[:3]
		}
		for _, c := range top {
			fmt.Printf("   %s\n", c.Display())
		}
		if extra := len(dev.Capabilities) - len(top); extra > 0 {
			fmt.Printf("   ... and %d more\n", extra)
		}
	}
	fmt.Printf("Total cameras found: %d\n", len(devices))
}
