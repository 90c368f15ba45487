// Package session owns one logical connection's outbound side.
//
// Ownership boundary:
// - handshake frame and protocol build table
// - the shared write buffer and the serialized send path
// - sequence index and sent packet/byte counters
// - data definition bookkeeping
//
// Replies arrive through recv.Dispatcher; matching a reply to its request by
// RequestID or DefineID is the caller's job.
package session
