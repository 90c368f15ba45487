// Package wire owns the little-endian field codec shared by the framer and
// the record decoders.
//
// Ownership boundary:
// - outbound write cursor with reserved header region
// - inbound read cursor with truncation checks
// - fixed-width NUL-padded string slots
package wire
