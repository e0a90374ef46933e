//go:build !unix

package cpc

// DefaultDialer returns the dialer used when none is configured. Without Unix
// sockets the daemon is reached through the waPC host.
func DefaultDialer() Dialer { return &HostCallDialer{} }
