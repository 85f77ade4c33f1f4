// Package gpio drives a single GPIO line through the legacy sysfs interface
// (/sys/class/gpio).
//
// A Line never holds a file descriptor between calls: every operation opens
// the attribute file it needs, performs one read or write and closes it again.
// The exported/unexported state lives in the kernel. The Line only tracks
// whether this process has initialized or cleaned it up, so that use before
// Init or after Cleanup fails with a well-defined error.
//
// Typical host usage:
//
//	line, err := gpio.New(gpio.Config{Number: 597})
//	if err != nil {
//		return err
//	}
//	if err := line.Init(); err != nil {
//		return err
//	}
//	defer line.Cleanup()
//
//	_ = line.SetValue(true)
package gpio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/tally/internal/logging"
	"github.com/smazurov/tally/internal/metrics"
)

const (
	// DefaultRoot is the sysfs GPIO class directory.
	DefaultRoot = "/sys/class/gpio"
	// DefaultExportDelay is how long Init waits after opening the export file
	// for the kernel (and udev) to materialize gpio<N>/direction.
	DefaultExportDelay = 100 * time.Millisecond
)

var (
	directionOut = []byte("out")
	levelHigh    = []byte("1")
	levelLow     = []byte("0")
)

// Config identifies the line and how it is accessed.
type Config struct {
	Number int    // kernel GPIO number, e.g. 597
	Root   string // sysfs class directory, defaults to DefaultRoot

	// WatchReady waits for gpio<N>/direction with fsnotify instead of sleeping
	// the full export delay. The delay still bounds the wait.
	WatchReady bool

	// StrictRead makes Value return ErrShortRead when the value file opens but
	// yields no byte. By default such a read reports a low level.
	StrictRead bool
}

// Option configures a Line.
type Option func(*Line)

// WithFS replaces the filesystem used to reach sysfs.
func WithFS(fs FS) Option {
	return func(l *Line) {
		l.fs = fs
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Line) {
		l.logger = logger
	}
}

// WithExportDelay sets the readiness delay applied after export.
// Zero disables the wait entirely.
func WithExportDelay(d time.Duration) Option {
	return func(l *Line) {
		if d < 0 {
			d = 0
		}
		l.exportDelay = d
	}
}

// withSleep swaps the sleep function; used by tests to observe the delay.
func withSleep(sleep func(time.Duration)) Option {
	return func(l *Line) {
		l.sleep = sleep
	}
}

// Line controls one sysfs GPIO line configured as an output.
type Line struct {
	number     int
	label      string
	watchReady bool
	strictRead bool

	exportPath    string
	unexportPath  string
	directionPath string
	valuePath     string

	fs          FS
	logger      *slog.Logger
	exportDelay time.Duration
	sleep       func(time.Duration)

	// mu guards state only; file I/O is not serialized.
	mu    sync.Mutex
	state State
}

// New creates a Line for cfg. It does not touch the filesystem.
func New(cfg Config, opts ...Option) (*Line, error) {
	if cfg.Number < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLine, cfg.Number)
	}

	root := cfg.Root
	if root == "" {
		root = DefaultRoot
	}
	dir := filepath.Join(root, "gpio"+strconv.Itoa(cfg.Number))

	l := &Line{
		number:        cfg.Number,
		label:         strconv.Itoa(cfg.Number),
		watchReady:    cfg.WatchReady,
		strictRead:    cfg.StrictRead,
		exportPath:    filepath.Join(root, "export"),
		unexportPath:  filepath.Join(root, "unexport"),
		directionPath: filepath.Join(dir, "direction"),
		valuePath:     filepath.Join(dir, "value"),
		fs:            OSFS{},
		exportDelay:   DefaultExportDelay,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.GetLogger("gpio")
	}
	l.logger = l.logger.With("line", l.number)

	metrics.SetGPIOState(l.label, int(StateUninitialized))
	return l, nil
}

// Number returns the kernel GPIO number.
func (l *Line) Number() int {
	return l.number
}

// String implements fmt.Stringer.
func (l *Line) String() string {
	return "gpio" + l.label
}

// State returns the lifecycle state of the line.
func (l *Line) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Export asks the kernel to create gpio<N>. It fails when the line is already
// exported, which callers usually ignore.
func (l *Line) Export() error {
	_, err := l.export()
	return err
}

// export also reports whether the export file opened, regardless of how the
// write went.
func (l *Line) export() (bool, error) {
	opened, err := l.write(l.exportPath, []byte(l.label))
	if err != nil {
		metrics.IncGPIOError(l.label, "export")
		return opened, fmt.Errorf("%w: %w", ErrExport, err)
	}
	l.logger.Debug("GPIO line exported", "path", l.exportPath)
	return true, nil
}

// Unexport asks the kernel to remove gpio<N>.
func (l *Line) Unexport() error {
	if err := l.writeFile(l.unexportPath, []byte(l.label)); err != nil {
		metrics.IncGPIOError(l.label, "unexport")
		return fmt.Errorf("%w: %w", ErrUnexport, err)
	}
	l.logger.Debug("GPIO line unexported", "path", l.unexportPath)
	return nil
}

// Init claims the line and configures it as an output.
//
// Export failure is tolerated: the line is most likely exported already by a
// previous run. The readiness wait follows the export open, so it is skipped
// only when the export file could not be opened. Direction is configured
// either way. Only a direction failure is returned, as ErrDirectionConfig,
// and it leaves the line uninitialized even if an earlier Init had succeeded.
// Calling Init again on a ready or closed line repeats the sequence.
//
// Writing the direction resets the level to low. Use Attach to take over a
// line that is already configured without disturbing its level.
func (l *Line) Init() error {
	opened, err := l.export()
	switch {
	case err == nil:
		l.waitReady()
	case opened:
		l.logger.Debug("Export write rejected, waiting for the line anyway", "error", err)
		l.waitReady()
	default:
		l.logger.Debug("Export skipped, assuming line is already exported", "error", err)
	}

	if err := l.writeFile(l.directionPath, directionOut); err != nil {
		metrics.IncGPIOError(l.label, "direction")
		l.logger.Error("Failed to configure GPIO direction", "path", l.directionPath, "error", err)
		l.setState(StateUninitialized)
		return fmt.Errorf("%w: %w", ErrDirectionConfig, err)
	}

	l.setState(StateReady)
	l.logger.Info("GPIO line initialized", "direction", string(directionOut))
	return nil
}

// Attach marks an already exported line ready without exporting it or
// writing its direction, so the current level survives. It only checks that
// gpio<N>/value can be opened; a missing attribute returns ErrNotExported and
// leaves the state unchanged.
func (l *Line) Attach() error {
	f, err := l.fs.OpenFile(l.valuePath, os.O_RDONLY, 0)
	if err != nil {
		metrics.IncGPIOError(l.label, "attach")
		l.logger.Debug("GPIO line not attachable", "path", l.valuePath, "error", err)
		return fmt.Errorf("%w: %w", ErrNotExported, err)
	}
	_ = f.Close()

	l.setState(StateReady)
	l.logger.Debug("GPIO line attached", "path", l.valuePath)
	return nil
}

// SetValue drives the line high (true) or low (false).
func (l *Line) SetValue(value bool) error {
	if err := l.checkReady(); err != nil {
		return err
	}

	level := levelLow
	if value {
		level = levelHigh
	}
	if err := l.writeFile(l.valuePath, level); err != nil {
		metrics.IncGPIOError(l.label, "write")
		l.logger.Error("Failed to write GPIO value", "path", l.valuePath, "error", err)
		return fmt.Errorf("%w: %w", ErrValueWrite, err)
	}

	metrics.SetGPIOValue(l.label, value)
	return nil
}

// Value reads the current logic level. Only the byte '1' is high.
//
// An open failure returns ErrValueRead. A read that yields no byte after a
// successful open reports false with a nil error, unless Config.StrictRead
// is set, in which case ErrShortRead is returned.
func (l *Line) Value() (bool, error) {
	if err := l.checkReady(); err != nil {
		return false, err
	}

	f, err := l.fs.OpenFile(l.valuePath, os.O_RDONLY, 0)
	if err != nil {
		metrics.IncGPIOError(l.label, "read")
		l.logger.Error("Failed to open GPIO value for reading", "path", l.valuePath, "error", err)
		return false, fmt.Errorf("%w: %w", ErrValueRead, err)
	}
	var buf [1]byte
	n, readErr := f.Read(buf[:])
	_ = f.Close()

	if n < 1 {
		if l.strictRead {
			metrics.IncGPIOError(l.label, "read")
			l.logger.Error("Short read from GPIO value", "path", l.valuePath, "error", readErr)
			return false, fmt.Errorf("%w: %s: %v", ErrShortRead, l.valuePath, readErr)
		}
		l.logger.Debug("Empty read from GPIO value, reporting low", "path", l.valuePath, "error", readErr)
		return false, nil
	}

	value := buf[0] == '1'
	metrics.SetGPIOValue(l.label, value)
	return value, nil
}

// Toggle inverts the current level and returns the new one. The read and the
// write are separate syscalls, so concurrent writers can interleave.
func (l *Line) Toggle() (bool, error) {
	current, err := l.Value()
	if err != nil {
		return false, err
	}
	next := !current
	if err := l.SetValue(next); err != nil {
		return current, err
	}
	return next, nil
}

// Cleanup releases the line. Unexport failures are logged and dropped; the
// line is considered closed afterwards either way.
func (l *Line) Cleanup() {
	if err := l.Unexport(); err != nil {
		l.logger.Warn("Unexport failed, ignoring", "error", err)
	}
	l.setState(StateClosed)
	l.logger.Info("GPIO line released")
}

func (l *Line) checkReady() error {
	switch l.State() {
	case StateReady:
		return nil
	case StateClosed:
		return fmt.Errorf("%w: %s", ErrClosed, l)
	default:
		return fmt.Errorf("%w: %s", ErrNotInitialized, l)
	}
}

func (l *Line) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	metrics.SetGPIOState(l.label, int(s))
}

// writeFile opens path write-only, writes data once and closes it. sysfs
// attributes are never created, so the file must already exist.
func (l *Line) writeFile(path string, data []byte) error {
	_, err := l.write(path, data)
	return err
}

// write is writeFile reporting whether the open succeeded.
func (l *Line) write(path string, data []byte) (bool, error) {
	f, err := l.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return false, err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return true, err
}
