/*
Package kv provides a key/value view of an NVM3 object store.

A Client owns one NVM3 instance: New initializes and opens it, Close closes
and deinitializes it. Data objects are read with Get, which sizes the
object first and then reads exactly that many bytes, so callers never
manage buffers. Counters have their own accessors and are incremented on
the remote device.

Transient failures reported as nvm3.ErrTryAgain are retried up to
Config.Retries times before being returned. Missing objects are reported as
ErrKeyNotFound.

Tests of code depending on KV can use the in-memory double in kv/mock.
*/
package kv
