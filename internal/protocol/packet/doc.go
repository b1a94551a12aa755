// Package packet owns the wire contract for framed messages.
//
// Ownership boundary:
// - fixed header layout and byte order
// - whole-packet encode/decode over any byte stream
// - decode memory limits
package packet
