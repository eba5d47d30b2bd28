// Package session keeps the client's credentials valid across an
// unbounded sequence of concurrent API calls.
//
// Three pieces cooperate:
//
//   - Store owns the persisted credentials (access token, refresh
//     token, absolute expiry, optional API key). It is fail-soft: a
//     broken filesystem degrades to an empty session, never an error.
//   - Refresher renews the access token against an ordered list of
//     candidate endpoints. Concurrent callers share a single in-flight
//     network refresh via singleflight; a definitive 401 clears the
//     session, while pure network failures leave it untouched.
//   - HeaderProvider resolves the header set for each outgoing call,
//     refreshing an expiring token first and falling back to the static
//     API key when no session exists.
//
// A Watcher can additionally reload the store when another process
// rewrites the credentials file.
//
// The Store is the single writer of credential state; everything else
// reads snapshots. All types are safe for concurrent use.
package session
