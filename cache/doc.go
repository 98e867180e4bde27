// Package cache defines the cache collaborator contracts used by the
// repository decorator: the Backend key/value store and the KeyBuilder
// that derives stable cache keys.
//
// # Key Derivation
//
// Keys have the shape {namespace}.{suffix}. The namespace identifies the
// entity type; the suffix identifies the operation's parameters:
//
//   - absent suffix: the bare namespace (fetch-all with default columns)
//   - scalar suffix: appended verbatim (identifier lookups, pre-formatted
//     strings such as "paginate.15")
//   - structured suffix: serialized with stable field order, then digested
//     with SHA-256
//
// Determinism is the load-bearing property. Map keys are sorted before
// serialization and struct fields are emitted in declaration order, so two
// structurally equal descriptors always land on the same key. The digest
// is cryptographic-strength; descriptors differing in any field produce
// different keys with overwhelming probability.
//
// Suffixes containing functions or channels cannot be serialized and fail
// with a KeyDerivationError. That is a programmer error, not a transient
// fault.
//
// # Backend Contract
//
// Backend exposes Has, Get, Remember and Forget. Remember is the
// read-through primitive: fetch-if-present, otherwise compute, store with
// TTL, and return. Entry expiry is owned entirely by the backend; the
// decorator never inspects timestamps.
//
// RememberTyped and GetTyped bridge the any-valued Backend to typed
// callers. Backends that persist serialized payloads (Redis) hand back raw
// bytes that are decoded here; a present entry that cannot be decoded is a
// hard DecodeError rather than a silent refetch, since refetching would
// mask the corruption.
//
// Backend implementations live in internal/cacheinfra and are constructed
// through NewMemoryBackend or the pkg/di container.
package cache
