// Package bif encodes ordered frame sequences into the BIF scrub-preview
// artifact format Plex reads, and decodes artifacts for verification.
//
// The format is a fixed 64-byte header (magic, version, image count, sampling
// interval in milliseconds), an index table of little-endian
// (timestamp ms, byte offset) rows in ascending timestamp order closed by a
// 0xFFFFFFFF terminator row, and the concatenated JPEG payloads. Encoding is
// pure and deterministic: the same input always yields byte-identical output.
package bif
