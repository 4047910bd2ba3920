package auth

// TokenValidator checks a raw token and returns its claims. The token
// service implements it for locally issued tokens; hosts plug their own
// implementations through WithTokenValidator for tokens minted elsewhere.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a plain function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface. A nil func fails closed.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator chains validators for deployments that accept tokens
// from more than one issuer. A malformed verdict means "not one of mine,
// try the next"; expiry and any other verdict stops the chain, since the
// token was recognized but rejected.
type MultiTokenValidator struct {
	chain []TokenValidator
}

// NewMultiTokenValidator builds the chain, skipping nil entries.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	chain := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			chain = append(chain, v)
		}
	}
	return &MultiTokenValidator{chain: chain}
}

// Validate tries each validator in registration order. When every validator
// reports malformed, the last such error is returned; an empty chain rejects
// everything.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.chain {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if !IsMalformedError(err) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
