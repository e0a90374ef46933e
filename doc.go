/*
Package nvm3 is a client for the NVM3 key/counter store of a CPC secondary.

The store lives on a co-processor. A CPC daemon owns the physical link and
exposes an NVM3 endpoint per daemon instance; this package opens that
endpoint and turns typed storage operations into framed request/response
exchanges.

# Lifecycle

An instance is created with Init, connected with Open, disconnected with
Close and released with Deinit:

	h, err := nvm3.Init()
	if err != nil {
		return err
	}
	defer nvm3.Deinit(h)

	if err := nvm3.Open(h, "cpcd_0", false); err != nil {
		return err
	}
	defer nvm3.Close(h)

	if err := nvm3.WriteData(h, 0x100, []byte("hello")); err != nil {
		return err
	}

Only one instance per process may be open at a time; a second Open fails
with ErrNotClosed. Handles are never reused, so a handle that was
deinitialized keeps failing with ErrNotInitialized.

# Errors

Every failure is an *Error whose Code is one of the ErrorCode values.
Callers branch with errors.Is:

	if errors.Is(err, nvm3.ErrTryAgain) {
		// transient, resubmit
	}

ErrTryAgain is the only code for which retrying without changing any input
is meaningful. The package never retries on its own. A lost daemon
connection is re-dialed once and reported as ErrTryAgain.

# Timeouts

Each remote call blocks at most for the instance timeout, DefaultTimeout
unless changed with SetTimeout. An elapsed timeout is reported as
ErrTryAgain.
*/
package nvm3
