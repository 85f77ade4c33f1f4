package gpio

// State is the in-process lifecycle of a Line. The exported/unexported fact
// itself lives in the kernel; State only tracks what this process did.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
