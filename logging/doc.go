/*
Package logging is the process-wide diagnostic sink of the NVM3 client.

The logger is configured once. The first successful call to Init decides the
level, prefix and destination for the lifetime of the process; every later
call is a silent no-op. Until Init succeeds nothing is emitted.

	err := logging.Init(logging.Config{
		Prefix: "nvm3",
		Level:  logging.LevelInfo,
		Path:   "/var/log/nvm3.log",
		Append: true,
	})

Emitters check the level before doing any work, so disabled calls cost a
single atomic load.

	logging.Debug("open", "instance", "cpcd_0")

When running as a WebAssembly guest, Config.HostCall forwards every line to
the host "logging" capability instead of writing it locally.
*/
package logging
