//go:build !windows

package socket

// Available reports true unconditionally: every non-Windows OS this package
// supports has had Unix domain sockets for as long as rchd has existed.
func Available() bool {
	return true
}
