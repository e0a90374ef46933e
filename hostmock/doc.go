/*
Package hostmock provides pretend hosts, daemons, and devices for testing NVM3
clients without CPC hardware.

Three pieces are available and can be combined:

  - Secondary simulates the NVM3 service of a CPC secondary. It speaks the
    wire protocol from package protocol and keeps objects and counters in
    memory. Counter increments happen under its lock, so they are atomic
    across every channel attached to it.
  - Daemon stands in for the CPC daemon. It implements cpc.Dialer for
    in-process tests, serves the Unix socket protocol with Serve, and plays
    the waPC host for cpc.HostCallDialer through its HostCall method.
  - Mock is a scripted waPC host for asserting raw host calls.

Quick start

	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	d.Secondary().Put(1, []byte("hello"))

	err := nvm3.InitWithConfig(nvm3.Config{Dialer: d})

Fault injection

  - Secondary.FailNext answers the next command of a type with a status,
    for example a busy SlStatus or an ECode.
  - Secondary.SetStaleReplies precedes every reply with frames belonging to
    other exchanges, which clients must ignore.
  - Daemon.SetReady(false) refuses new channels with cpc.ErrNotReady.
  - Daemon.SetMute(true) swallows replies so clients hit their deadline.
  - Daemon.Disconnect drops every open channel with cpc.ErrConnectionLost.

Mock behaviour

  - If Fail is true and Error is set, HostCall returns that error.
  - If Fail is true and Error is nil, HostCall returns ErrOperationFailed.
  - Otherwise HostCall enforces the Expected* fields that are set, runs
    PayloadValidator, and answers from Functions, then Response, then nil.
*/
package hostmock
