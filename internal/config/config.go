// Package config provides configuration for dualcam commands.
// Values come from defaults, an optional config.yaml, and DUALCAM_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	home, _ := os.UserHomeDir()

	// Defaults
	v.SetDefault("output.dir", filepath.Join(home, "Videos"))
	v.SetDefault("record.fps", 30)
	v.SetDefault("record.width", 1920)
	v.SetDefault("record.height", 1080)
	v.SetDefault("scan.max_devices", 10)
	v.SetDefault("scan.by_id_dir", "/dev/v4l/by-id")
	v.SetDefault("preview.port", "8089")
	v.SetDefault("log.level", "info")

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("output.dir", "DUALCAM_OUTPUT_DIR")
	v.BindEnv("record.fps", "DUALCAM_FPS")
	v.BindEnv("scan.max_devices", "DUALCAM_MAX_DEVICES")
	v.BindEnv("preview.port", "DUALCAM_PREVIEW_PORT")
	v.BindEnv("log.level", "DUALCAM_LOG_LEVEL")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		filepath.Join(home, ".dualcam"),
		"/etc/dualcam",
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// No config file; defaults and env vars apply
	}
}

// GetOutputDir returns the root directory for recordings and photos.
func GetOutputDir() string {
	return v.GetString("output.dir")
}

// GetFPS returns the default recording frame rate.
func GetFPS() int {
	return v.GetInt("record.fps")
}

// GetWidth returns the default capture width.
func GetWidth() int {
	return v.GetInt("record.width")
}

// GetHeight returns the default capture height.
func GetHeight() int {
	return v.GetInt("record.height")
}

// GetMaxDevices returns the upper bound of the /dev/videoN scan range.
func GetMaxDevices() int {
	return v.GetInt("scan.max_devices")
}

// GetByIDDir returns the directory scanned for stable device symlinks.
func GetByIDDir() string {
	return v.GetString("scan.by_id_dir")
}

// GetPreviewPort returns the preview server listen port.
func GetPreviewPort() string {
	return v.GetString("preview.port")
}

// GetLogLevel returns the configured log level.
func GetLogLevel() string {
	return v.GetString("log.level")
}
