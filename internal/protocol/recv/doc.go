// Package recv owns inbound message kinds, their typed records, and the
// dispatcher that routes decoded records to handlers.
//
// Field order inside each decoder is part of the wire contract.
package recv
