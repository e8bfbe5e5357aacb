//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// quietInterrupt turns off ECHOCTL on the given terminal so Ctrl+C stopping a watch
// does not leave "^C" in the middle of the last badge line. the returned func restores it.
func quietInterrupt(in *os.File) (restore func()) {
	fd := int(in.Fd()) //nolint:gosec // fd fits int
	noop := func() {}
	if !term.IsTerminal(fd) {
		return noop
	}

	tio, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return noop
	}
	saved := *tio
	tio.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, tio); err != nil {
		return noop
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, ioctlWriteTermios, &saved)
	}
}
