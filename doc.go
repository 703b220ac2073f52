// Package auth provides the session core of the blog: signed access
// tokens, refresh token rotation backed by a shared session cache, and
// the HTTP helpers that deliver token pairs through cookies or JSON bodies.
//
// Claims:
//   - ClaimsAssembler builds one uniform ClaimsIdentity from the identity
//     store, whether the subject logged in with a password or through an
//     external provider. Roles are read fresh on every issuance.
//   - TokenCodec signs and verifies HS256 access tokens. Retired keys keep
//     verifying tokens issued before a key rotation, looked up by kid.
//
// Sessions:
//   - TokenIssuer mints pairs, SessionCache maps each live refresh token to
//     the access token it was issued with.
//   - RotationGuard exchanges a pair at most once. The cache entry is
//     superseded atomically, so a replayed or concurrently refreshed pair is
//     rejected with ErrStaleOrReplayed.
//
// HTTP:
//   - Channel reads pairs from the body or from cookies and writes them
//     back through the channel selected by the X-Set-Cookie header.
//   - ProtectedRoute authenticates the access token scheme and BanGate
//     rejects banned subjects right after it.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther,
//     RotationGuard and BanGate. Sinks run best-effort (errors are logged)
//     so you can forward to a database or queue without blocking
//     authentication.
package auth
