package gpio

import "errors"

// Sentinel errors returned by Line operations. Operation errors wrap the
// underlying *os.PathError, so both errors.Is and errors.As work on them.
var (
	ErrInvalidLine     = errors.New("gpio: invalid line number")
	ErrExport          = errors.New("gpio: export failed")
	ErrUnexport        = errors.New("gpio: unexport failed")
	ErrDirectionConfig = errors.New("gpio: direction configuration failed")
	ErrValueWrite      = errors.New("gpio: value write failed")
	ErrValueRead       = errors.New("gpio: value read failed")
	ErrShortRead       = errors.New("gpio: short value read")
	ErrNotExported     = errors.New("gpio: line not exported")
	ErrNotInitialized  = errors.New("gpio: line not initialized")
	ErrClosed          = errors.New("gpio: line closed")
)
