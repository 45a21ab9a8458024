package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/courtside/dualcam/internal/config"
	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/registry"
)

// Detection diagnostic: prints everything the registry knows about the
// host's cameras, and whether dual recording is possible.
func main() {
	logLevel := flag.String("log-level", "warn", "Log level")
	maxDevices := flag.Int("max-devices", config.GetMaxDevices(), "Scan /dev/video0..N-1")
	flag.Parse()

	log.Init(*logLevel)

	fmt.Println("Testing camera detection...")
	fmt.Println("==================================================")

	reg := registry.New(
		registry.WithMaxDevices(*maxDevices),
		registry.WithByIDDir(config.GetByIDDir()),
	)
	devices, err := reg.Scan(context.Background())
	if err != nil {
		fmt.Printf("❌ Scan failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nFINAL CAMERA LIST:")
	fmt.Println("==================================================")

	for i, dev := range devices {
		fmt.Printf("%d. %s\n", i+1, dev.DisplayName())
		fmt.Printf("   Driver: %s\n", dev.Driver)
		fmt.Printf("   Primary path: %s\n", dev.PrimaryPath())
		if dev.StableAliasPath != "" {
			fmt.Printf("   Fallback path: %s\n", dev.FallbackPath())
		}
		fmt.Printf("   Resolutions: %d\n", len(dev.Capabilities))
		top := dev.Capabilities
		if len(top) > 3 {
			top = top[:3]
		}
		for _, c := range top {
			fmt.Printf("     %s\n", c.Display())
		}
		if extra := len(dev.Capabilities) - len(top); extra > 0 {
			fmt.Printf("     ... and %d more\n", extra)
		}
		fmt.Println()
	}

	fmt.Printf("Total cameras found: %d\n", len(devices))

	if len(devices) >= 2 {
		fmt.Println("✅ Sufficient cameras for dual recording!")
		fmt.Printf("Camera 1 (Auto): %s\n", devices[0].Name)
		fmt.Printf("Camera 2 (Auto): %s\n", devices[1].Name)
	} else {
		fmt.Println("❌ Insufficient cameras for dual recording.")
	}
}
