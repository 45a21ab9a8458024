package registry

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Query timeouts for the external v4l2-ctl tool. A wedged device must not
// stall the whole scan.
const (
	infoTimeout    = 5 * time.Second
	formatsTimeout = 10 * time.Second
)

// CommandRunner executes an external command and returns its stdout.
// Injectable so tests can feed canned v4l2-ctl output.
type CommandRunner func(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)

func execRunner(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// deviceInfo holds the identity fields reported by v4l2-ctl --info.
type deviceInfo struct {
	Name    string
	Driver  string
	BusInfo string
}

// queryInfo asks v4l2-ctl for the card identity of a device.
func (r *Registry) queryInfo(ctx context.Context, devicePath string) (deviceInfo, error) {
	out, err := r.runner(ctx, infoTimeout, "v4l2-ctl", "-d", devicePath, "--info")
	if err != nil {
		return deviceInfo{}, err
	}
	return parseInfo(out), nil
}

func parseInfo(out string) deviceInfo {
	var info deviceInfo
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch {
		case strings.Contains(key, "Card type"):
			info.Name = value
		case strings.Contains(key, "Driver name"):
			info.Driver = value
		case strings.Contains(key, "Bus info"):
			info.BusInfo = value
		}
	}
	return info
}

var (
	formatRe     = regexp.MustCompile(`'([A-Z0-9]+)'`)
	resolutionRe = regexp.MustCompile(`Size: Discrete (\d+)x(\d+)`)
	fpsRe        = regexp.MustCompile(`\(([0-9.]+)\s+fps\)`)
)

// queryCapabilities asks v4l2-ctl for the supported formats of a device.
func (r *Registry) queryCapabilities(ctx context.Context, devicePath string) ([]Capability, error) {
	out, err := r.runner(ctx, formatsTimeout, "v4l2-ctl", "-d", devicePath, "--list-formats-ext")
	if err != nil {
		return nil, err
	}
	return parseFormats(out), nil
}

// parseFormats walks the --list-formats-ext output, which nests frame
// intervals under sizes under pixel formats. A size listed under several
// formats keeps the first format seen and merges its rates.
func parseFormats(out string) []Capability {
	type key struct{ w, h int }
	seen := make(map[key]*Capability)
	order := make([]key, 0, 8)

	currentFormat := ""
	var current *Capability

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.Contains(trimmed, "]:") {
			if m := formatRe.FindStringSubmatch(trimmed); m != nil {
				currentFormat = m[1]
			}
			continue
		}

		if m := resolutionRe.FindStringSubmatch(trimmed); m != nil {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			k := key{w, h}
			if _, ok := seen[k]; !ok {
				format := currentFormat
				if format == "" {
					format = "UNKNOWN"
				}
				seen[k] = &Capability{Width: w, Height: h, PixelFormat: format}
				order = append(order, k)
			}
			current = seen[k]
			continue
		}

		if current != nil && strings.Contains(trimmed, "Interval:") {
			if m := fpsRe.FindStringSubmatch(trimmed); m != nil {
				fps, err := strconv.ParseFloat(m[1], 64)
				if err == nil && !containsRate(current.FrameRates, fps) {
					current.FrameRates = append(current.FrameRates, fps)
				}
			}
		}
	}

	caps := make([]Capability, 0, len(order))
	for _, k := range order {
		c := seen[k]
		if len(c.FrameRates) == 0 {
			continue
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(c.FrameRates)))
		caps = append(caps, *c)
	}
	sortCapabilities(caps)
	return caps
}

func containsRate(rates []float64, fps float64) bool {
	for _, r := range rates {
		if r == fps {
			return true
		}
	}
	return false
}
