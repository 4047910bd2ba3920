// Package auth implements a credential lifecycle engine: identity
// registration with uniqueness enforcement, password based login, and
// signed session token issuance and validation.
//
// The package is transport agnostic. The core pieces are:
//   - HashPassword / ComparePasswordAndHash: bcrypt credential hashing.
//   - TokenService: HS256 JWT issuance and validation with identity claims
//     (subject, username, email, iat, exp).
//   - Users / RepositoryManager: Bun backed persistence with unique
//     username and email constraints as the single serialization point for
//     concurrent registrations.
//   - Auther: orchestrates Register, Login, CurrentIdentity, and
//     VerifyToken over the pieces above.
//
// An optional HTTP layer (AuthController, RouteAuthenticator, and the
// middleware/jwtware subpackage) exposes the same operations as a JSON API
// on top of go-router.
//
// Tokens are bearer credentials: there is no server side revocation store,
// and logout only clears the client cookie. A token stays valid until its
// natural expiry.
package auth
