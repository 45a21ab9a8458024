package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Capability describes one supported frame size and the rates it streams at.
type Capability struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	PixelFormat string    `json:"pixel_format"`
	FrameRates  []float64 `json:"frame_rates"` // sorted descending
}

// Resolution returns the "WxH" form of the capability.
func (c Capability) Resolution() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// MaxFPS returns the highest supported frame rate, or 0 if none reported.
func (c Capability) MaxFPS() float64 {
	if len(c.FrameRates) == 0 {
		return 0
	}
	return c.FrameRates[0]
}

// Display returns a human-readable summary like "1920x1080 @30fps".
func (c Capability) Display() string {
	if len(c.FrameRates) <= 1 {
		return fmt.Sprintf("%s @%.0ffps", c.Resolution(), c.MaxFPS())
	}
	return fmt.Sprintf("%s @%.0ffps(%d rates)", c.Resolution(), c.MaxFPS(), len(c.FrameRates))
}

// Device identifies one physical camera found by a scan.
// Devices are immutable once constructed; a rescan builds a fresh set.
type Device struct {
	Index           int          `json:"index"`
	CanonicalPath   string       `json:"canonical_path"`
	StableAliasPath string       `json:"stable_alias_path,omitempty"`
	Name            string       `json:"name"`
	Driver          string       `json:"driver"`
	BusInfo         string       `json:"bus_info"`
	Capabilities    []Capability `json:"capabilities"`
}

// PrimaryPath returns the preferred path for opening the device.
// The by-id alias survives reboots and re-plugging, so it wins when present.
func (d Device) PrimaryPath() string {
	if d.StableAliasPath != "" {
		return d.StableAliasPath
	}
	return d.CanonicalPath
}

// FallbackPath returns the enumerable device path.
func (d Device) FallbackPath() string {
	return d.CanonicalPath
}

// Candidates returns open candidates in fallback order:
// stable alias, canonical path, numeric index.
func (d Device) Candidates() []any {
	out := make([]any, 0, 3)
	if d.StableAliasPath != "" {
		out = append(out, d.StableAliasPath)
	}
	out = append(out, d.CanonicalPath, d.Index)
	return out
}

// DisplayName returns a formatted name showing both paths when available.
func (d Device) DisplayName() string {
	if d.StableAliasPath != "" {
		alias := strings.TrimSuffix(filepath.Base(d.StableAliasPath), "-video-index0")
		return fmt.Sprintf("%s - by-id:%s -> %s", d.Name, alias, d.CanonicalPath)
	}
	return fmt.Sprintf("%s - %s", d.Name, d.CanonicalPath)
}

// BestCapability returns the capability with the largest pixel count,
// or false if the device reported none.
func (d Device) BestCapability() (Capability, bool) {
	if len(d.Capabilities) == 0 {
		return Capability{}, false
	}
	return d.Capabilities[0], true
}

// sortCapabilities orders entries by pixel count descending,
// breaking ties by the highest reported frame rate.
func sortCapabilities(caps []Capability) {
	sort.SliceStable(caps, func(i, j int) bool {
		pi := caps[i].Width * caps[i].Height
		pj := caps[j].Width * caps[j].Height
		if pi != pj {
			return pi > pj
		}
		return caps[i].MaxFPS() > caps[j].MaxFPS()
	})
}

// cleanDeviceName collapses redundant card names like "USB Camera: USB Camera".
func cleanDeviceName(name string) string {
	if idx := strings.Index(name, ":"); idx >= 0 {
		left := strings.TrimSpace(name[:idx])
		right := strings.TrimSpace(name[idx+1:])
		if left == right {
			return left
		}
	}
	return strings.TrimSpace(name)
}
