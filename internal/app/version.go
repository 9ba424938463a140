package app

import (
	"fmt"
	"io"
	"runtime"

	"github.com/agbru/deepzoom/internal/compute"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// HasVersionFlag reports whether args ask for the version. It runs before
// flag parsing so -version works alongside otherwise invalid flags.
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-version", "--version", "-V":
			return true
		}
	}
	return false
}

// PrintVersion writes the build information.
func PrintVersion(out io.Writer) {
	fmt.Fprintf(out, "deepzoom %s\n", Version)
	fmt.Fprintf(out, "Commit:     %s\n", Commit)
	fmt.Fprintf(out, "Built:      %s\n", BuildDate)
	fmt.Fprintf(out, "Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Host:       %s\n", compute.Info())
}
