// Package debug holds the process-wide verbose logging switches set from the
// -debug and -debug-frames flags.
package debug

import (
	"fmt"
	"io"
	"os"
)

var (
	// Enabled turns on startup and model diagnostics.
	Enabled bool

	// Frames turns on one or more lines per processed frame. Very noisy at 30 FPS.
	Frames bool

	// Out receives debug output.
	Out io.Writer = os.Stdout
)

// Log prints when Enabled is set.
func Log(format string, args ...any) {
	if Enabled {
		fmt.Fprintf(Out, format, args...)
	}
}

// FrameLog prints when Frames is set.
func FrameLog(format string, args ...any) {
	if Frames {
		fmt.Fprintf(Out, format, args...)
	}
}
