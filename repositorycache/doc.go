// Package repositorycache implements a cache-aside decorator over a
// repository contract.
//
// # Overview
//
// CachedRepository wraps a Repository implementation together with a
// cache.Backend and a cache.KeyBuilder. Read operations follow the
// read-through protocol; write operations delegate first and then refresh
// the identifier-keyed cache entry for the affected record.
//
// # Read path
//
//  1. Derive the cache key from the operation's identifying parameters:
//     the entity namespace plus a scalar or digested-descriptor suffix.
//  2. On a backend hit, return the cached value. The hit is authoritative
//     even if the underlying store has changed since; staleness is
//     bounded only by the TTL, which is an explicit trade-off.
//  3. On a miss, delegate to the base repository, store the result under
//     the key with the configured TTL, and return it.
//
// Each public read operation names its own delegate call and its own key
// derivation explicitly, so the operation-to-key mapping is statically
// verifiable. The requested projection participates in the key whenever
// it is narrower than the default, since serving a partial record under
// the all-columns key would corrupt callers expecting full columns.
//
// FindBy and FindWhere are defined in terms of Where plus taking the
// first result; they inherit its caching and never write a second entry
// for the same logical condition.
//
// # Write path
//
// Create and Update delegate to the base repository first, so a failure
// there never touches the cache. On success the identifier-keyed entry
// for the returned record is forgotten and immediately repopulated with
// the fresh record. Delete resolves the record via Find (a missing
// identifier propagates before any cache mutation), forgets the
// identifier key, then performs the deletion.
//
// Writes invalidate only the identifier-keyed entry. Entries produced by
// All, Where, and Paginate are not touched and may serve results that
// predate the write until their TTL expires. This is a documented design
// property, asserted by tests so it cannot be "fixed" silently; callers
// needing read-after-write consistency for collection views should lower
// the TTL or bypass the decorator for those reads.
//
// # Errors
//
// Failures from either collaborator propagate unmodified: no retries, no
// cache-bypass fallback, no masking. An unserializable query descriptor
// fails key derivation with a cache.KeyDerivationError before any
// collaborator is called.
package repositorycache
