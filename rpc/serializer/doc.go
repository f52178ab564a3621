// Package serializer provides the message codecs of dNet. The transport never looks
// inside a payload: it frames whatever bytes a serializer produces and hands the
// reassembled bytes back to the same serializer on the receiving side.
//
// Implementations:
//
//   - NewBinarySerializer: compact flag based format. Only present fields are written,
//     variable length fields carry a big-endian u32 length prefix and uuids are
//     written as their raw 16 bytes. Recommended for production.
//
//   - NewJSONSerializer: readable output for debugging and tooling.
//
//   - NewGOBSerializer: Go's gob encoding, kept for compatibility tests.
//
// Server and client must use the same serializer; there is no negotiation.
//
// Thread Safety:
//
//	All serializers are stateless and safe for concurrent use.
package serializer
