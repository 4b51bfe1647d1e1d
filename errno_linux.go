//go:build linux

package evloop

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoName maps a syscall error to the symbolic name errnoToLoopError
// switches on, keeping the mapping table in one place instead of littering
// unix.Errno comparisons across the package.
func errnoName(err error) string {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case unix.EINVAL:
		return "EINVAL"
	case unix.ENOMEM:
		return "ENOMEM"
	case unix.ENOSYS:
		return "ENOSYS"
	case unix.EOPNOTSUPP:
		// On Linux, ENOTSUP and EOPNOTSUPP share the same value.
		return "ENOTSUP"
	case unix.ENOENT:
		return "ENOENT"
	case unix.EBADF:
		return "EBADF"
	case unix.ENOBUFS:
		return "ENOBUFS"
	case unix.EINTR:
		return "EINTR"
	case unix.EEXIST:
		return "EEXIST"
	case unix.EAGAIN:
		return "EAGAIN"
	case unix.EINPROGRESS:
		return "EINPROGRESS"
	default:
		return ""
	}
}

func isEExist(err error) bool {
	return errnoName(err) == "EEXIST"
}

func isEIntr(err error) bool {
	return errnoName(err) == "EINTR"
}
