// Prints the tuning device as JSON, for checking which CPU features the
// built-in kernels can rely on.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-json"

	"github.com/zuqini/CLTune/internal/device"
)

type output struct {
	GoVersion string      `json:"go_version"`
	GoOS      string      `json:"go_os"`
	GoArch    string      `json:"go_arch"`
	Device    device.Info `json:"device"`
}

func main() {
	out := output{
		GoVersion: runtime.Version(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
		Device:    device.NewCPU().Info(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
