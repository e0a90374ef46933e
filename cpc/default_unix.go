//go:build unix

package cpc

// DefaultDialer returns the dialer used when none is configured.
func DefaultDialer() Dialer { return &SocketDialer{} }
