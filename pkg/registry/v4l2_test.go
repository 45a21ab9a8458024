package registry

import (
	"testing"
)

const sampleInfo = `Driver Info:
	Driver name      : uvcvideo
	Card type        : HD Pro Webcam C920
	Bus info         : usb-0000:00:14.0-3
	Driver version   : 6.8.12
	Capabilities     : 0x84a00001
`

func TestParseInfo(t *testing.T) {
	info := parseInfo(sampleInfo)

	if info.Name != "HD Pro Webcam C920" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Driver != "uvcvideo" {
		t.Errorf("Driver = %q", info.Driver)
	}
	if info.BusInfo != "usb-0000:00:14.0-3" {
		t.Errorf("BusInfo = %q", info.BusInfo)
	}
}

func TestParseInfoEmpty(t *testing.T) {
	info := parseInfo("")
	if info.Name != "" || info.Driver != "" || info.BusInfo != "" {
		t.Errorf("parseInfo(\"\") = %+v, want zero value", info)
	}
}

const sampleFormats = `ioctl: VIDIOC_ENUM_FMT
	Type: Video Capture

	[0]: 'MJPG' (Motion-JPEG, compressed)
		Size: Discrete 1920x1080
			Interval: Discrete 0.033s (30.000 fps)
			Interval: Discrete 0.042s (24.000 fps)
		Size: Discrete 1280x720
			Interval: Discrete 0.033s (30.000 fps)
	[1]: 'YUYV' (YUYV 4:2:2)
		Size: Discrete 1920x1080
			Interval: Discrete 0.200s (5.000 fps)
		Size: Discrete 640x480
			Interval: Discrete 0.033s (30.000 fps)
`

func TestParseFormats(t *testing.T) {
	caps := parseFormats(sampleFormats)

	if len(caps) != 3 {
		t.Fatalf("got %d capabilities, want 3 (sizes deduped): %+v", len(caps), caps)
	}

	// Sorted by pixel count descending.
	if caps[0].Resolution() != "1920x1080" {
		t.Errorf("caps[0] = %s, want 1920x1080 first", caps[0].Resolution())
	}
	if caps[1].Resolution() != "1280x720" {
		t.Errorf("caps[1] = %s, want 1280x720", caps[1].Resolution())
	}
	if caps[2].Resolution() != "640x480" {
		t.Errorf("caps[2] = %s, want 640x480", caps[2].Resolution())
	}

	// 1920x1080 appears under MJPG first and YUYV later: keeps the first
	// format, merges the rates.
	if caps[0].PixelFormat != "MJPG" {
		t.Errorf("PixelFormat = %q, want MJPG", caps[0].PixelFormat)
	}
	if len(caps[0].FrameRates) != 3 {
		t.Errorf("FrameRates = %v, want 3 merged rates", caps[0].FrameRates)
	}
	if caps[0].MaxFPS() != 30 {
		t.Errorf("MaxFPS = %v, want 30", caps[0].MaxFPS())
	}

	// Rates are sorted descending within a capability.
	rates := caps[0].FrameRates
	for i := 1; i < len(rates); i++ {
		if rates[i] > rates[i-1] {
			t.Errorf("FrameRates not descending: %v", rates)
		}
	}
}

func TestParseFormatsSkipsRatelessSizes(t *testing.T) {
	out := `	[0]: 'MJPG' (Motion-JPEG, compressed)
		Size: Discrete 3840x2160
		Size: Discrete 1280x720
			Interval: Discrete 0.033s (30.000 fps)
`
	caps := parseFormats(out)
	if len(caps) != 1 {
		t.Fatalf("got %d capabilities, want 1 (no-rate size skipped)", len(caps))
	}
	if caps[0].Resolution() != "1280x720" {
		t.Errorf("caps[0] = %s, want 1280x720", caps[0].Resolution())
	}
}

func TestParseFormatsEmpty(t *testing.T) {
	if caps := parseFormats(""); len(caps) != 0 {
		t.Errorf("parseFormats(\"\") = %+v, want none", caps)
	}
}
