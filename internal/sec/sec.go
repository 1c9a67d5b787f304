// Package sec provides the credential and session-token primitives for the
// auth middleware.
//
// # Passwords
//
// Passwords are hashed with argon2id and stored in the PHC string format,
// parameters and a fresh random salt embedded in the encoded hash. Comparison
// is constant time and tolerant of malformed stored hashes. [NeedsRehash]
// detects hashes produced with outdated parameters so logins can transparently
// upgrade them.
//
// # Session tokens
//
// [NewSessionKey] draws session tokens from crypto/rand. The cookie carrying a
// token is signed with HMAC-SHA256 via [SignCookie] and [VerifyCookie]; a
// tampered or unsigned cookie value never resolves to a token.
package sec
