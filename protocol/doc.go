/*
Package protocol implements the NVM3 wire format spoken between the host and
the NVM3 service running on a CPC secondary.

Every frame starts with an eight byte little-endian header:

	cmd u8 | len u16 | unique_id u32 | transaction_id u8

where len counts the bytes that follow the header. Host commands are built as
Request values, which keep any trailing data borrowed from the caller so that
transports can write the header and the data as separate parts. Secondary
replies are validated with ParseReply and decoded with the Decode* helpers.

Replies that carry the wrong command, unique id, or transaction id are stale:
they belong to an earlier exchange and should be dropped by the reader (see
IsStale). A length mismatch is never stale; it means the frame is corrupt.

The package also exposes the secondary side of the codec (ParseRequest and
the Encode* helpers) so that simulated devices speak exactly the same format.
*/
package protocol
