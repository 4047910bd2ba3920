package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther orchestrates the credential lifecycle: registration with
// uniqueness checks, password login, token issuance, and token backed
// identity lookup.
type Auther struct {
	repo            RepositoryManager
	hasher          PasswordAuthenticator
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		repo:            repo,
		hasher:          BcryptHasher{},
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithPasswordAuthenticator swaps the bcrypt hasher, mostly for tests.
func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithTokenValidator installs validators for externally issued tokens.
// Passing more than one chains them: a token one issuer does not recognize
// falls through to the next.
func (s *Auther) WithTokenValidator(validators ...TokenValidator) *Auther {
	switch len(validators) {
	case 0:
	case 1:
		if validators[0] != nil {
			s.tokenValidator = validators[0]
		}
	default:
		s.tokenValidator = NewMultiTokenValidator(validators...)
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates a new identity and returns a freshly issued session
// token. Email and username are checked before the (expensive) hash is
// computed; the repository's unique constraints remain the source of truth,
// so a create that loses the race comes back as ErrRegistrationFailed.
func (s *Auther) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	if existing, err := s.repo.Users().FindByEmail(ctx, email); err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	if existing, err := s.repo.Users().FindByUsername(ctx, username); err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created
		return nil
	})

	if err != nil {
		if IsDuplicateKeyError(err) {
			// lost the race after the pre checks; no retry, the caller decides
			s.logger.Warn("registration lost uniqueness race", "email", user.Email)
			return nil, ErrRegistrationFailed
		}
		s.logger.Error("registration failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	return s.issueAuthResult(user)
}

// Login verifies a password against the identity matching identifier and
// returns a session token. The identifier is classified as an email when it
// contains an '@', otherwise as a username. A username that itself contains
// an '@' is therefore misclassified; known tradeoff, kept deliberately.
// Unknown identity and wrong password are indistinguishable to the caller.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	user, err := s.findByLoginIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login lookup failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	// best effort bookkeeping; a failed write never fails the login
	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	return s.issueAuthResult(user)
}

// VerifyToken validates a raw token and returns its claims.
func (s *Auther) VerifyToken(raw string) (AuthClaims, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}
	return validator.Validate(raw)
}

// CurrentIdentity validates a token and loads the identity record behind
// its subject claim.
func (s *Auther) CurrentIdentity(ctx context.Context, raw string) (*User, error) {
	claims, err := s.VerifyToken(raw)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrUnableToMapClaims
	}

	user, err := s.repo.Users().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return user, nil
}

func (s Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.VerifyToken(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) findByLoginIdentifier(ctx context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.Users().FindByEmail(ctx, identifier)
	}
	return s.repo.Users().FindByUsername(ctx, identifier)
}

func (s *Auther) issueAuthResult(user *User) (*AuthResult, error) {
	claims := s.newJWTClaims(NewIdentityFromUser(user))

	token, err := s.tokenService.SignClaims(claims)
	if err != nil {
		s.logger.Error("failed to sign session token", "error", err)
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: claims.Expires(),
	}, nil
}

func (s *Auther) newJWTClaims(identity Identity) *JWTClaims {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(s.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(s.audience))
		copy(aud, s.audience)
	}

	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.tokenExpiration) * time.Hour)),
		},
		UID:               identity.ID(),
		PreferredUsername: identity.Username(),
		EmailAddress:      identity.Email(),
	}
}
