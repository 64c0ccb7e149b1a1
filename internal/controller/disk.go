package controller

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Disk performs the two disk-touching operations the state machine needs.
type Disk interface {
	// Touch generates a small amount of durable write activity.
	Touch() error
	// Sync flushes all filesystem buffers to stable storage.
	Sync() error
}

// touchPayload is the fixed content written on every touch. The content is
// irrelevant; only the resulting head movement matters.
var touchPayload = []byte("wdantiparkd\n")

// fileDisk touches a fixed file path and issues whole-system syncs.
type fileDisk struct {
	path string
}

// NewDisk returns a Disk that writes to the given touch file.
func NewDisk(touchFile string) Disk {
	return &fileDisk{path: touchFile}
}

func (d *fileDisk) Touch() error {
	file, err := os.OpenFile(d.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open touch file %q: %w", d.path, err)
	}
	if _, err := file.Write(touchPayload); err != nil {
		file.Close()
		return fmt.Errorf("write touch file %q: %w", d.path, err)
	}
	// fdatasync forces the write to the platter; a buffered write would
	// not move the head and defeats the touch entirely.
	if err := unix.Fdatasync(int(file.Fd())); err != nil {
		file.Close()
		return fmt.Errorf("fdatasync touch file %q: %w", d.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close touch file %q: %w", d.path, err)
	}
	return nil
}

func (d *fileDisk) Sync() error {
	unix.Sync()
	return nil
}
