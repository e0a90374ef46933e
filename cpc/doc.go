/*
Package cpc provides the connection adapter between an NVM3 session and the
CPC daemon that owns the physical link to the secondary.

A Dialer opens a Channel for a daemon instance. A Channel sends and receives
whole frames, honours the deadline carried by the context of each call, and
reports its health through Alive. Transport failures are reported through a
small set of sentinel errors:

  - ErrWouldBlock: the deadline elapsed before the operation completed.
  - ErrConnectionLost: the link dropped (reset, broken pipe, interrupted).
    The channel is no longer alive and must be dialed again.
  - ErrNotReady: the daemon is reachable but the NVM3 endpoint is not.
  - ErrDaemonUnavailable and ErrEndpoint: the channel cannot be used.

Two dialers are provided. SocketDialer talks to a daemon over its Unix domain
socket. HostCallDialer is used when running as a WebAssembly guest: the host
owns the daemon connection and the channel is driven through waPC host calls.
*/
package cpc
