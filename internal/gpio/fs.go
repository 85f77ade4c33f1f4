package gpio

import (
	"io"
	"os"
)

// File is the subset of *os.File used against sysfs attribute files.
type File interface {
	io.ReadWriteCloser
}

// FS opens sysfs attribute files. It exists so tests can inject failures.
type FS interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
}

// OSFS opens files on the real filesystem.
type OSFS struct{}

// OpenFile implements FS.
func (OSFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}
