//go:build linux

package evloop

import "golang.org/x/sys/unix"

// setNonblock and setCloexec mirror core.c's uv__nonblock_fcntl /
// uv__cloexec_fcntl: idempotent flag toggles via fcntl. Unlike the C
// original they have no EINTR retry loop; any fcntl error is returned.

func setNonblock(fd int, set bool) error {
	if err := unix.SetNonblock(fd, set); err != nil {
		return errnoToLoopError(err)
	}
	return nil
}

func setCloexec(fd int, set bool) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return errnoToLoopError(err)
	}
	if set {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags); err != nil {
		return errnoToLoopError(err)
	}
	return nil
}

// closeFD is a thin wrapper matching core.c's uv__close: swallow EINTR and
// EINPROGRESS (the close is in progress, not an error), surface everything
// else.
func closeFD(fd int) error {
	err := unix.Close(fd)
	if err == nil {
		return nil
	}
	if isEIntr(err) || errnoName(err) == "EINPROGRESS" {
		return nil
	}
	return errnoToLoopError(err)
}

// socketCloexecNonblock opens a socket with SOCK_NONBLOCK|SOCK_CLOEXEC set
// atomically, matching core.c's uv__socket. The Linux kernel has supported
// these flags on socket(2) since 2.6.27, so no fallback path is needed the
// way the C original needs one for older/other platforms.
func socketCloexecNonblock(domain, typ, protocol int) (int, error) {
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, protocol)
	if err != nil {
		return -1, errnoToLoopError(err)
	}
	return fd, nil
}
