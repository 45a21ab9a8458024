// Package registry discovers camera devices on the host.
//
// Discovery shells out to v4l2-ctl for identity and capability, and
// cross-references /dev/v4l/by-id so callers get a stable alias path
// when the OS provides one. A device that reports no capability entries
// cannot stream and is excluded from results.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/courtside/dualcam/internal/log"
)

const aliasSuffix = "-video-index0"

// Registry enumerates camera devices. The zero value is not usable;
// construct with New.
type Registry struct {
	maxDevices int
	devDir     string
	byIDDir    string
	runner     CommandRunner
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxDevices bounds the /dev/videoN scan range.
func WithMaxDevices(n int) Option {
	return func(r *Registry) { r.maxDevices = n }
}

// WithDeviceDir overrides the directory holding videoN nodes (tests).
func WithDeviceDir(dir string) Option {
	return func(r *Registry) { r.devDir = dir }
}

// WithByIDDir overrides the stable-alias directory (tests).
func WithByIDDir(dir string) Option {
	return func(r *Registry) { r.byIDDir = dir }
}

// WithRunner overrides the external command runner (tests).
func WithRunner(run CommandRunner) Option {
	return func(r *Registry) { r.runner = run }
}

// New creates a Registry with default paths and the real command runner.
func New(opts ...Option) *Registry {
	r := &Registry{
		maxDevices: 10,
		devDir:     "/dev",
		byIDDir:    "/dev/v4l/by-id",
		runner:     execRunner,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan enumerates all usable cameras in discovery order (ascending index).
// Per-device failures are logged and skipped; a single unreachable device
// never aborts the scan.
func (r *Registry) Scan(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aliases := r.scanAliases()

	var devices []Device
	for i := 0; i < r.maxDevices; i++ {
		devicePath := filepath.Join(r.devDir, fmt.Sprintf("video%d", i))
		if _, err := os.Stat(devicePath); err != nil {
			continue
		}

		info, err := r.queryInfo(ctx, devicePath)
		if err != nil {
			log.Debug("device info query failed", "path", devicePath, "error", err)
			continue
		}

		caps, err := r.queryCapabilities(ctx, devicePath)
		if err != nil {
			log.Debug("capability query failed", "path", devicePath, "error", err)
			continue
		}
		if len(caps) == 0 {
			// Metadata nodes and other non-streaming devices land here.
			log.Debug("device has no capture capability", "path", devicePath)
			continue
		}

		name := cleanDeviceName(info.Name)
		if name == "" {
			name = fmt.Sprintf("Camera %d", i)
		}

		dev := Device{
			Index:           i,
			CanonicalPath:   devicePath,
			StableAliasPath: aliases[devicePath],
			Name:            name,
			Driver:          info.Driver,
			BusInfo:         info.BusInfo,
			Capabilities:    caps,
		}
		devices = append(devices, dev)
		log.Info("found camera", "name", dev.Name, "path", dev.PrimaryPath(), "capabilities", len(caps))
	}

	return devices, nil
}

// scanAliases maps canonical device paths to their by-id symlinks.
// Only main video nodes (…-video-index0) are considered.
func (r *Registry) scanAliases() map[string]string {
	aliases := make(map[string]string)

	entries, err := os.ReadDir(r.byIDDir)
	if err != nil {
		// No by-id directory is normal on hosts without udev.
		return aliases
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), aliasSuffix) {
			continue
		}
		aliasPath := filepath.Join(r.byIDDir, entry.Name())
		realPath, err := filepath.EvalSymlinks(aliasPath)
		if err != nil {
			log.Warn("could not resolve by-id device", "alias", aliasPath, "error", err)
			continue
		}
		aliases[realPath] = aliasPath
	}
	return aliases
}
