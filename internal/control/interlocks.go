package control

import (
	"fmt"
	"os"
	"path/filepath"
)

// InterlockSource exposes the two operator-controlled safety interlocks the
// engine polls once per cycle. Both are settable at any time; the only
// guarantee is that a change is observed at the next poll.
type InterlockSource interface {
	// StopRequested reports whether the engine should shut down at the
	// next cycle boundary.
	StopRequested() bool

	// KillSwitchEngaged reports whether all trading must be blocked and
	// open positions optionally liquidated.
	KillSwitchEngaged() bool
}

const (
	stopFlagName       = "stop.flag"
	killSwitchFlagName = "kill_switch.flag"
)

// FileInterlocks reads the interlocks from flag files in a control
// directory. An operator engages an interlock by creating the file and
// releases it by deleting the file.
type FileInterlocks struct {
	dir string
}

// NewFileInterlocks creates the control directory if needed and returns a
// file-based interlock source.
func NewFileInterlocks(dir string) (*FileInterlocks, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create control directory: %w", err)
	}
	return &FileInterlocks{dir: dir}, nil
}

// StopRequested reports whether the stop flag file exists
func (f *FileInterlocks) StopRequested() bool {
	return f.flagExists(stopFlagName)
}

// KillSwitchEngaged reports whether the kill switch flag file exists
func (f *FileInterlocks) KillSwitchEngaged() bool {
	return f.flagExists(killSwitchFlagName)
}

func (f *FileInterlocks) flagExists(name string) bool {
	_, err := os.Stat(filepath.Join(f.dir, name))
	return err == nil
}
