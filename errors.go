package evloop

import "fmt"

// LoopError is a small negative error sentinel, mirroring libuv's UV_*
// convention (spec.md section 7): callers compare against the exported
// constants rather than parsing strings.
type LoopError int

const (
	// ErrInvalid is returned for a bad argument.
	ErrInvalid LoopError = -1 - iota
	// ErrNoMem is returned when a recoverable allocation failed.
	ErrNoMem
	// ErrNoSys is returned when the platform lacks a required capability.
	ErrNoSys
	// ErrNotSup is returned when an operation is not supported in this
	// configuration.
	ErrNotSup
	// ErrNoEnt surfaces ENOENT from the kernel.
	ErrNoEnt
	// ErrBadF surfaces EBADF from the kernel.
	ErrBadF
	// ErrNoBufs surfaces ENOBUFS from the kernel.
	ErrNoBufs
	// ErrIO surfaces EIO from the kernel.
	ErrIO
	// ErrIntr surfaces EINTR from the kernel (only ever visible to callers
	// that bypass the loop's own EINTR retry logic).
	ErrIntr
)

var errStrings = map[LoopError]string{
	ErrInvalid: "invalid argument",
	ErrNoMem:   "not enough memory",
	ErrNoSys:   "function not implemented",
	ErrNotSup:  "operation not supported",
	ErrNoEnt:   "no such file or directory",
	ErrBadF:    "bad file descriptor",
	ErrNoBufs:  "no buffer space available",
	ErrIO:      "i/o error",
	ErrIntr:    "interrupted system call",
}

func (e LoopError) Error() string {
	if s, ok := errStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("evloop: error %d", int(e))
}

// errnoToLoopError normalizes a raw syscall errno into one of the kinds
// above. Anything unrecognized is surfaced as ErrIO, never as a panic:
// per spec.md section 7, user-visible operations return the kernel error
// transparently.
func errnoToLoopError(err error) LoopError {
	if err == nil {
		return 0
	}
	switch errnoName(err) {
	case "EINVAL":
		return ErrInvalid
	case "ENOMEM":
		return ErrNoMem
	case "ENOSYS":
		return ErrNoSys
	case "ENOTSUP", "EOPNOTSUPP":
		return ErrNotSup
	case "ENOENT":
		return ErrNoEnt
	case "EBADF":
		return ErrBadF
	case "ENOBUFS":
		return ErrNoBufs
	case "EINTR":
		return ErrIntr
	default:
		return ErrIO
	}
}
