// Package cdump implements a deep binary dump/restore codec for C-ABI
// record graphs: structs with ordinary fields, single pointers, C strings,
// pointer-to-array runs, and opaque "dynamic" payloads.
//
// A [Writer] linearizes a record and everything it points to into one
// flat, self-describing buffer: a shallow copy of the record's own bytes
// followed, depth-first, by the deep data of each non-trivial field in
// declaration order. A [Reader] walks the same buffer back into memory in
// one of three ways:
//
//   - [Reader.DeserializeRef] / [DeserializeRef]: construct in place inside
//     the reader's own buffer and hand back a reference into it (zero
//     extra allocation, but the returned tree only lives as long as the
//     reader does).
//   - [DeserializeValue]: same as above, but returns
//     an owned copy of the record's header; the deep subtree is still
//     borrowed from the reader.
//   - [Reader.DeserializeTo] / [DeserializeTo]: refresh a tree the caller
//     already owns, preserving every pointer's identity and only
//     overwriting the bytes each one points to.
//
// Every field's shape is described once, statically, by a [RecordType]
// built from a [FieldList]. Three collaborators can produce one: reflection
// over a Go struct's tags (internal/reflectdesc), a generated descriptor
// from cmd/cdumpgen, or a hand-written YAML descriptor
// (internal/yamldesc) for types reflection cannot see into. All three feed
// [Validate] before a RecordType is used.
//
// Opaque payloads that don't fit the built-in field kinds are handled by
// an externally registered [DynamicCodec].
package cdump
