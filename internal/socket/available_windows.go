//go:build windows

package socket

import (
	"strconv"

	"golang.org/x/sys/windows/registry"
)

// Available returns true if this machine can host the daemon's Unix domain
// socket: rchd's client/daemon IPC and its worker transport both depend on
// it, so a false result means the daemon cannot start at all on this host.
// On Windows that depends on the build; every other OS this package
// supports reports true unconditionally (see available_other.go).
func Available() bool {
	return isAfterBuild17063()
}

// isAfterBuild17063 returns true if the current build (of windows, this file is only compiled for windows) is after 17063
// stolen from: https://github.com/golang/go/blob/76c45877c9e72ccc84db787dc08299e0182e0efb/src/net/unixsock_windows_test.go#L17
func isAfterBuild17063() bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.READ)
	if err != nil {
		return false
	}
	defer k.Close()

	s, _, err := k.GetStringValue("CurrentBuild")
	if err != nil {
		return false
	}
	ver, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return ver >= 17063
}
