package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner serves canned v4l2-ctl output per device path.
type fakeRunner struct {
	info    map[string]string
	formats map[string]string
	err     map[string]error
	calls   []string
}

func (f *fakeRunner) run(_ context.Context, _ time.Duration, name string, args ...string) (string, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))

	// args: -d <path> --info | --list-formats-ext
	path, mode := args[1], args[2]
	if err := f.err[path]; err != nil {
		return "", err
	}
	if mode == "--info" {
		return f.info[path], nil
	}
	return f.formats[path], nil
}

func deviceDir(t *testing.T, nodes ...string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const goodFormats = `	[0]: 'MJPG' (Motion-JPEG, compressed)
		Size: Discrete 1920x1080
			Interval: Discrete 0.033s (30.000 fps)
`

func TestScanFindsUsableDevices(t *testing.T) {
	dev := deviceDir(t, "video0", "video1", "video2")

	runner := &fakeRunner{
		info: map[string]string{
			filepath.Join(dev, "video0"): "	Card type : Front Cam: Front Cam\n	Driver name : uvcvideo\n	Bus info : usb-1\n",
			filepath.Join(dev, "video1"): "	Card type : Front Cam Metadata\n	Driver name : uvcvideo\n",
			filepath.Join(dev, "video2"): "	Card type : Side Cam\n	Driver name : uvcvideo\n	Bus info : usb-2\n",
		},
		formats: map[string]string{
			filepath.Join(dev, "video0"): goodFormats,
			filepath.Join(dev, "video1"): "", // metadata node, no capture formats
			filepath.Join(dev, "video2"): goodFormats,
		},
	}

	reg := New(WithDeviceDir(dev), WithByIDDir(filepath.Join(dev, "missing")), WithRunner(runner.run))
	devices, err := reg.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2 (metadata node excluded): %+v", len(devices), devices)
	}
	if devices[0].Index != 0 || devices[1].Index != 2 {
		t.Errorf("devices out of discovery order: %d, %d", devices[0].Index, devices[1].Index)
	}
	if devices[0].Name != "Front Cam" {
		t.Errorf("Name = %q, want redundancy collapsed to Front Cam", devices[0].Name)
	}
	if devices[1].BusInfo != "usb-2" {
		t.Errorf("BusInfo = %q", devices[1].BusInfo)
	}
}

func TestScanSkipsFailingDevice(t *testing.T) {
	dev := deviceDir(t, "video0", "video1")

	runner := &fakeRunner{
		info: map[string]string{
			filepath.Join(dev, "video1"): "	Card type : Good Cam\n	Driver name : uvcvideo\n",
		},
		formats: map[string]string{
			filepath.Join(dev, "video1"): goodFormats,
		},
		err: map[string]error{
			filepath.Join(dev, "video0"): errors.New("v4l2-ctl: exit status 1"),
		},
	}

	reg := New(WithDeviceDir(dev), WithByIDDir(filepath.Join(dev, "missing")), WithRunner(runner.run))
	devices, err := reg.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Good Cam" {
		t.Fatalf("got %+v, want only the healthy device", devices)
	}
}

func TestScanResolvesStableAliases(t *testing.T) {
	dev := deviceDir(t, "video0")

	byID, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	alias := filepath.Join(byID, "usb-Acme_Cam_1234-video-index0")
	if err := os.Symlink(filepath.Join(dev, "video0"), alias); err != nil {
		t.Fatal(err)
	}
	// Sibling links that are not main video nodes are ignored.
	if err := os.Symlink(filepath.Join(dev, "video0"), filepath.Join(byID, "usb-Acme_Cam_1234-video-index1")); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{
		info: map[string]string{
			filepath.Join(dev, "video0"): "	Card type : Acme Cam\n	Driver name : uvcvideo\n",
		},
		formats: map[string]string{
			filepath.Join(dev, "video0"): goodFormats,
		},
	}

	reg := New(WithDeviceDir(dev), WithByIDDir(byID), WithRunner(runner.run))
	devices, err := reg.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}

	got := devices[0]
	if got.StableAliasPath != alias {
		t.Errorf("StableAliasPath = %q, want %q", got.StableAliasPath, alias)
	}
	if got.PrimaryPath() != alias {
		t.Errorf("PrimaryPath = %q, want the alias to win", got.PrimaryPath())
	}
	if got.FallbackPath() != filepath.Join(dev, "video0") {
		t.Errorf("FallbackPath = %q", got.FallbackPath())
	}
}

func TestScanCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := New(WithDeviceDir(t.TempDir()), WithRunner((&fakeRunner{}).run))
	if _, err := reg.Scan(ctx); err == nil {
		t.Error("Scan() with canceled context should fail")
	}
}

func TestScanEmptyHost(t *testing.T) {
	reg := New(WithDeviceDir(t.TempDir()), WithByIDDir(filepath.Join(t.TempDir(), "nope")), WithRunner((&fakeRunner{}).run))
	devices, err := reg.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices on an empty host", len(devices))
	}
}
