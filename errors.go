package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeEmailTaken flags a registration rejected because the email is in use
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeUsernameTaken flags a registration rejected because the username is in use
	TextCodeUsernameTaken = "USERNAME_TAKEN"
	// TextCodeRegistrationFailed flags a registration that lost the uniqueness race
	TextCodeRegistrationFailed = "REGISTRATION_FAILED"
	// TextCodeInvalidCredentials is the uniform login rejection code
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeTokenExpired flags a token past its exp claim
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags a token we could not parse or verify
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeDuplicateIdentity flags a repository level unique constraint violation
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
)

// ErrEmailTaken is returned when registering with an email that already has an identity.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken is returned when registering with a username that already has an identity.
var ErrUsernameTaken = goerrors.New("username already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrRegistrationFailed is returned when the repository rejects a create that
// passed the pre checks, i.e. a concurrent registration won the race. The
// service does not retry; idempotent retry policy belongs to the caller.
var ErrRegistrationFailed = goerrors.New("registration failed", goerrors.CategoryConflict).
	WithTextCode(TextCodeRegistrationFailed).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is the single rejection for unknown identifier and
// wrong password alike. Keep it uniform: distinguishing the two would let a
// caller enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens whose exp claim has passed.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers every other token rejection: bad structure, bad
// signature, wrong signing method.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrNoEmptyString rejects empty plaintext passwords before hashing
var ErrNoEmptyString = errors.New("password should not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("mismatched password and hash")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDuplicateKeyError reports whether err looks like a unique constraint
// violation. The repository layer hides the driver error behind a generic
// message, keeping the constraint text only in the cause, so we walk the
// whole chain: Source on rich errors, Unwrap on everything else. sqlite and
// postgres are the engines we run against.
func IsDuplicateKeyError(err error) bool {
	for err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			if richErr.TextCode == TextCodeDuplicateIdentity {
				return true
			}
			if containsDuplicateKeyText(richErr.Message) {
				return true
			}
			err = richErr.Source
			continue
		}

		if containsDuplicateKeyText(err.Error()) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func containsDuplicateKeyText(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
