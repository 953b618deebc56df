package eyestate

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy.
var (
	// ErrDeviceUnavailable is returned when the frame source cannot be opened.
	// Fatal, startup only.
	ErrDeviceUnavailable = errors.New("eyestate: frame source unavailable")

	// ErrModelLoad is returned when the classifier artifact or the detector
	// resource is missing or malformed. Fatal, startup only.
	ErrModelLoad = errors.New("eyestate: model load failed")

	// ErrReadFailure is returned when the source stops delivering frames.
	// It ends the loop gracefully.
	ErrReadFailure = errors.New("eyestate: frame read failed")

	// ErrDegenerateRegion is returned for a region with zero width or height.
	// Only that region is skipped.
	ErrDegenerateRegion = errors.New("eyestate: degenerate region")
)

// StageError wraps an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage wraps err with stage context. nil stays nil.
func WrapStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Fatal reports whether err must abort the process.
func Fatal(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrModelLoad)
}

// Exit codes used by the commands.
const (
	ExitOK      = 0
	ExitDevice  = 1
	ExitModel   = 2
	ExitConfig  = 3
	ExitRuntime = 4
)

// ExitCode maps an error to a process exit code. Recoverable conditions
// (read failure, degenerate region) and nil map to ExitOK.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDeviceUnavailable):
		return ExitDevice
	case errors.Is(err, ErrModelLoad):
		return ExitModel
	case errors.Is(err, ErrReadFailure), errors.Is(err, ErrDegenerateRegion):
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	return ExitRuntime
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
