//go:build windows

package main

import "os"

// quietInterrupt does nothing on windows, the console has no ECHOCTL.
func quietInterrupt(*os.File) (restore func()) {
	return func() {}
}
